package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPartition_CoversAllRows(t *testing.T) {
	s := New(zap.NewNop(), Options{Workers: 3})
	defer s.Close()

	var mu sync.Mutex
	seen := make([]int, 10)
	err := s.Partition(context.Background(), len(seen), func(_ context.Context, lo, hi int) error {
		mu.Lock()
		defer mu.Unlock()
		for i := lo; i < hi; i++ {
			seen[i]++
		}
		return nil
	})
	require.NoError(t, err)
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
}

func TestPartition_Empty(t *testing.T) {
	s := New(nil, Options{})
	called := false
	err := s.Partition(context.Background(), 0, func(context.Context, int, int) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Positive(t, s.Workers())
}

func TestPartition_PropagatesError(t *testing.T) {
	s := New(zap.NewNop(), Options{Workers: 4})
	boom := errors.New("boom")

	err := s.Partition(context.Background(), 100, func(_ context.Context, lo, _ int) error {
		if lo == 0 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestClose(t *testing.T) {
	s := New(zap.NewNop(), Options{Workers: 1})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.Partition(context.Background(), 1, func(context.Context, int, int) error { return nil })
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.NotEmpty(t, s.ID())
}
