package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseforge/caseforge/internal/pipeline"
)

func TestMemoryStorePutGet(t *testing.T) {
	s, err := NewMemoryStore(10)
	require.NoError(t, err)

	result := &pipeline.Result{RunID: "run-1", EventCount: 5}
	s.Put(result)

	got, ok := s.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, result, got)

	_, ok = s.Get("run-2")
	assert.False(t, ok)
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s, err := NewMemoryStore(10)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s.Put(&pipeline.Result{RunID: fmt.Sprintf("run-%d", i)})
	}

	results := s.List()
	require.Len(t, results, 3)
	assert.Equal(t, "run-2", results[0].RunID)
	assert.Equal(t, "run-0", results[2].RunID)
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	s, err := NewMemoryStore(2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s.Put(&pipeline.Result{RunID: fmt.Sprintf("run-%d", i)})
	}

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("run-0")
	assert.False(t, ok)
	_, ok = s.Get("run-2")
	assert.True(t, ok)
}
