package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the CacheRepository interface
type MySQLCache struct {
	*sqlCache
}

// NewMySQLCache connects to the database at dsn
func NewMySQLCache(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	c, err := NewMySQLCacheFromDB(db, logger, cleanupFreq)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewMySQLCacheFromDB creates the cache on an open connection pool
func NewMySQLCacheFromDB(db *sql.DB, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLCache, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS prediction_cache (
		cache_key VARCHAR(64) PRIMARY KEY,
		is_spam BOOLEAN NOT NULL,
		score DOUBLE NOT NULL,
		last_seen BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		INDEX idx_expires_at (expires_at)
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLCache{sqlCache: newSQLCache(db, logger, cleanupFreq)}, nil
}
