// Package store keeps completed run results available for the API: a
// bounded in-memory store for serving, and an optional Redis archive.
package store

import (
	"github.com/hashicorp/golang-lru/v2"

	"github.com/caseforge/caseforge/internal/pipeline"
)

// MemoryStore holds the most recent run results, evicting the oldest when
// capacity is reached. Safe for concurrent use.
type MemoryStore struct {
	cache *lru.Cache[string, *pipeline.Result]
}

// NewMemoryStore creates a store bounded to capacity runs.
func NewMemoryStore(capacity int) (*MemoryStore, error) {
	cache, err := lru.New[string, *pipeline.Result](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{cache: cache}, nil
}

// Put records a completed run.
func (s *MemoryStore) Put(result *pipeline.Result) {
	s.cache.Add(result.RunID, result)
}

// Get returns the run with the given ID.
func (s *MemoryStore) Get(runID string) (*pipeline.Result, bool) {
	return s.cache.Get(runID)
}

// List returns all retained runs, most recent first.
func (s *MemoryStore) List() []*pipeline.Result {
	keys := s.cache.Keys()
	results := make([]*pipeline.Result, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if result, ok := s.cache.Peek(keys[i]); ok {
			results = append(results, result)
		}
	}
	return results
}

// Len returns the number of retained runs.
func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
