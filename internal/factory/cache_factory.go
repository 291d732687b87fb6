package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/sms-spam-pipeline/internal/adapters/cache"
	"github.com/mikey/sms-spam-pipeline/internal/config"
	"github.com/mikey/sms-spam-pipeline/internal/core"
	"go.uber.org/zap"
)

// CacheFactory opens the prediction cache named by cache.type
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCacheRepository opens the configured cache. It returns a nil
// repository when caching is disabled; nothing is created on disk then.
func (f *CacheFactory) CreateCacheRepository() (core.CacheRepository, error) {
	cc, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}
	if !cc.Enabled {
		f.logger.Info("Prediction cache disabled")
		return nil, nil
	}

	f.logger.Info("Opening prediction cache",
		zap.String("type", cc.Type),
		zap.Duration("ttl", cc.TTL),
		zap.Duration("cleanup_frequency", cc.CleanupFrequency))

	switch cc.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger, cc.CleanupFrequency), nil
	case "sqlite":
		return f.openSQLite(cc)
	case "mysql":
		repo, err := cache.NewMySQLCache(cc.MySQLDSN, f.logger, cc.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cc.Type)
	}
}

func (f *CacheFactory) openSQLite(cc config.CacheConfig) (core.CacheRepository, error) {
	if err := os.MkdirAll(filepath.Dir(cc.SQLitePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
	}
	repo, err := cache.NewSQLiteCache(cc.SQLitePath, f.logger, cc.CleanupFrequency)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
