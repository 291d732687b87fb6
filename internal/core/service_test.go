package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/sms-spam-pipeline/internal/table"
	"github.com/mikey/sms-spam-pipeline/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// keywordModel scores 0.9 for texts containing "win", 0.1 otherwise
type keywordModel struct {
	id    string
	calls int
	err   error
}

func (m *keywordModel) ID() string { return m.id }

func (m *keywordModel) Transform(_ context.Context, t *table.Table) (*table.Table, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	texts, err := t.Strings("text")
	if err != nil {
		return nil, err
	}
	spam := make([]float64, len(texts))
	for i, text := range texts {
		if strings.Contains(text, "win") {
			spam[i] = 0.9
		} else {
			spam[i] = 0.1
		}
	}
	return t.With(table.FloatColumn("spam", spam))
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	getErr  error
}

func newMapCache() *mapCache { return &mapCache{entries: make(map[string]*CacheEntry)} }

func (c *mapCache) Get(_ context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	e, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return e, nil
}

func (c *mapCache) Set(_ context.Context, e *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Key] = e
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Cleanup(context.Context) error { return nil }
func (c *mapCache) Stop()                         {}

func newDetector(model Classifier, cache CacheRepository) *Detector {
	return NewDetector(model, cache, utils.NewTextProcessor(zap.NewNop(), 4096), zap.NewNop(), DetectorOptions{
		Threshold:    DefaultThreshold,
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	})
}

func TestDetector_IsSpam(t *testing.T) {
	d := newDetector(&keywordModel{id: "m1"}, nil)

	spam, err := d.IsSpam(context.Background(), "win now")
	require.NoError(t, err)
	assert.True(t, spam)

	spam, err = d.IsSpam(context.Background(), "see you at lunch")
	require.NoError(t, err)
	assert.False(t, spam)
}

func TestDetector_UsesCache(t *testing.T) {
	model := &keywordModel{id: "m1"}
	cache := newMapCache()
	d := newDetector(model, cache)

	first, err := d.Score(context.Background(), "win now")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.InDelta(t, 0.9, first.Score, 1e-9)

	second, err := d.Score(context.Background(), "win now")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 1, model.calls)
	assert.Len(t, cache.entries, 1)

	// another model never sees the first one's entries
	other := newDetector(&keywordModel{id: "m2"}, cache)
	third, err := other.Score(context.Background(), "win now")
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, cache.entries, 2)
}

func TestDetector_CacheErrorsAreNotFatal(t *testing.T) {
	cache := newMapCache()
	cache.getErr = errors.New("db down")
	d := newDetector(&keywordModel{id: "m1"}, cache)

	result, err := d.Score(context.Background(), "win now")
	require.NoError(t, err)
	assert.True(t, result.IsSpam)
}

func TestDetector_ModelError(t *testing.T) {
	boom := errors.New("boom")
	d := newDetector(&keywordModel{id: "m1", err: boom}, nil)

	_, err := d.IsSpam(context.Background(), "win now")
	assert.ErrorIs(t, err, boom)
}

func TestDetector_AnalyzeMessage(t *testing.T) {
	d := newDetector(&keywordModel{id: "m1"}, nil)

	result, err := d.AnalyzeMessage(context.Background(), &Message{ID: "abc", Text: "win a prize"})
	require.NoError(t, err)
	assert.Equal(t, "abc", result.ProcessingID)
	assert.Equal(t, "m1", result.ModelUsed)
	assert.True(t, result.IsSpam)

	result, err = d.AnalyzeMessage(context.Background(), &Message{Text: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.ProcessingID)
}

func TestIsSpam(t *testing.T) {
	model := &keywordModel{id: "m1"}

	spam, err := IsSpam(context.Background(), "win now", model, 0.5)
	require.NoError(t, err)
	assert.True(t, spam)

	// strictly greater than the threshold
	spam, err = IsSpam(context.Background(), "win now", model, 0.9)
	require.NoError(t, err)
	assert.False(t, spam)
}

func TestPredict_MissingProbabilityColumn(t *testing.T) {
	model := &keywordModel{id: "m1"}
	_, err := Predict(context.Background(), model, "hi", "ham")
	assert.ErrorIs(t, err, table.ErrMissingColumn)
}
