package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/sms-spam-pipeline/internal/core"
	"go.uber.org/zap"
)

// sqlCache holds the queries shared by the SQL backends. Timestamps are
// stored as unix milliseconds so expiry comparisons do not depend on the
// database's date handling.
type sqlCache struct {
	db      *sql.DB
	logger  *zap.Logger
	janitor *janitor
	now     func() time.Time
}

func newSQLCache(db *sql.DB, logger *zap.Logger, cleanupFreq time.Duration) *sqlCache {
	c := &sqlCache{db: db, logger: logger, now: time.Now}
	c.janitor = startJanitor(cleanupFreq, logger, c.Cleanup)
	return c
}

// Get retrieves a live cache entry
func (c *sqlCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	entry := core.CacheEntry{Key: key}
	var lastSeen, expiresAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT is_spam, score, last_seen, expires_at FROM prediction_cache WHERE cache_key = ? AND expires_at > ?`,
		key, c.now().UnixMilli(),
	).Scan(&entry.IsSpam, &entry.Score, &lastSeen, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	entry.LastSeen = time.UnixMilli(lastSeen)
	entry.ExpiresAt = time.UnixMilli(expiresAt)
	return &entry, nil
}

// Set stores a cache entry, replacing any previous one for the key
func (c *sqlCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	_, err := c.db.ExecContext(ctx,
		`REPLACE INTO prediction_cache (cache_key, is_spam, score, last_seen, expires_at) VALUES (?, ?, ?, ?, ?)`,
		entry.Key, entry.IsSpam, entry.Score, entry.LastSeen.UnixMilli(), entry.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *sqlCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM prediction_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Cleanup removes expired entries
func (c *sqlCache) Cleanup(ctx context.Context) error {
	result, err := c.db.ExecContext(ctx, `DELETE FROM prediction_cache WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		c.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int64("expired_count", rowsAffected))
	}
	return nil
}

// Stop stops the background cleanup task and closes the database connection
func (c *sqlCache) Stop() {
	c.janitor.stop()
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close cache database", zap.Error(err))
	}
}
