// Package publish pushes detections to downstream consumers over NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/schema"
)

// Publisher publishes detections to a NATS subject, one message per
// detection.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher connects to NATS.
func NewPublisher(cfg config.NATSConfig, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("caseforge"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &Publisher{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

// PublishDetections publishes each detection as its own message, tagged with
// the run it came from. Stops at the first failure.
func (p *Publisher) PublishDetections(ctx context.Context, runID string, detections []schema.Detection) error {
	for _, det := range detections {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := json.Marshal(det)
		if err != nil {
			return fmt.Errorf("failed to serialize detection: %w", err)
		}

		msg := &nats.Msg{
			Subject: p.subject,
			Data:    data,
			Header: nats.Header{
				"Run-Id":         []string{runID},
				"Detection-Type": []string{det.DetectionType},
				"Src-Ip":         []string{det.SrcIP},
			},
		}
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("failed to publish detection: %w", err)
		}
	}

	p.logger.Info("published detections",
		zap.String("run_id", runID),
		zap.String("subject", p.subject),
		zap.Int("count", len(detections)))
	return nil
}

// Close drains the connection so queued messages are delivered before
// shutdown.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
