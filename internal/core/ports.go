package core

import (
	"context"
	"errors"

	"github.com/mikey/sms-spam-pipeline/internal/table"
)

// ErrCacheMiss is returned by a CacheRepository when no live entry exists for a key
var ErrCacheMiss = errors.New("cache entry not found")

// Classifier is a fitted pipeline model
type Classifier interface {
	// ID identifies the fitted model; predictions are cached per model
	ID() string

	// Transform scores every row of a (text) table
	Transform(ctx context.Context, t *table.Table) (*table.Table, error)
}

// CacheRepository defines the interface for caching predictions
type CacheRepository interface {
	// Get retrieves a live cache entry, or ErrCacheMiss
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error

	// Stop ends background cleanup and releases resources
	Stop()
}
