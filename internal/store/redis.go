package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/caseforge/caseforge/internal/config"
	"github.com/caseforge/caseforge/internal/pipeline"
)

const (
	runKeyPrefix = "caseforge:run:"
	runIndexKey  = "caseforge:runs"

	// Run IDs retained in the index; the keyed entries expire on their own
	// TTL.
	runIndexLimit = 100
)

// RunArchive persists run results to Redis so they survive restarts.
type RunArchive struct {
	client *redis.Client
	cfg    config.RedisConfig
	logger *zap.Logger
}

// NewRunArchive connects to Redis and verifies the connection.
func NewRunArchive(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RunArchive, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
		DB:   cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RunArchive{client: client, cfg: cfg, logger: logger}, nil
}

// Archive stores a run result under its run ID and pushes the ID onto the
// recent-runs index.
func (a *RunArchive) Archive(ctx context.Context, result *pipeline.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize run result: %w", err)
	}

	key := runKeyPrefix + result.RunID
	if err := a.client.Set(ctx, key, data, a.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("failed to store run result: %w", err)
	}

	pipe := a.client.TxPipeline()
	pipe.LPush(ctx, runIndexKey, result.RunID)
	pipe.LTrim(ctx, runIndexKey, 0, runIndexLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update run index: %w", err)
	}

	a.logger.Info("archived run", zap.String("run_id", result.RunID))
	return nil
}

// Get loads an archived run result.
func (a *RunArchive) Get(ctx context.Context, runID string) (*pipeline.Result, error) {
	data, err := a.client.Get(ctx, runKeyPrefix+runID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run result: %w", err)
	}

	var result pipeline.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode run result: %w", err)
	}
	return &result, nil
}

// RecentRunIDs returns the most recently archived run IDs, newest first.
func (a *RunArchive) RecentRunIDs(ctx context.Context) ([]string, error) {
	ids, err := a.client.LRange(ctx, runIndexKey, 0, runIndexLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return ids, nil
}

// Close releases the Redis connection.
func (a *RunArchive) Close() error {
	return a.client.Close()
}
