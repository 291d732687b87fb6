package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/sms-spam-pipeline/internal/core"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a cache entry is absent or expired
var ErrNotFound = core.ErrCacheMiss

// janitor runs a cleanup function on a ticker until stopped
type janitor struct {
	stopCh chan struct{}
	once   sync.Once
}

func startJanitor(freq time.Duration, logger *zap.Logger, cleanup func(context.Context) error) *janitor {
	j := &janitor{stopCh: make(chan struct{})}
	if freq <= 0 {
		return j
	}

	go func() {
		ticker := time.NewTicker(freq)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := cleanup(context.Background()); err != nil {
					logger.Error("Failed to clean up cache", zap.Error(err))
				}
			case <-j.stopCh:
				return
			}
		}
	}()
	return j
}

func (j *janitor) stop() {
	j.once.Do(func() { close(j.stopCh) })
}
