package session

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrSessionClosed is returned when work is submitted to a closed session
var ErrSessionClosed = errors.New("session closed")

// Options configures a Session
type Options struct {
	AppName string
	Workers int
}

// Session is the execution handle shared by the loader and the pipeline.
// It owns the worker budget used for partition-parallel row transforms.
type Session struct {
	id      string
	appName string
	workers int
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a new session
func New(logger *zap.Logger, opts Options) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s := &Session{
		id:      uuid.NewString(),
		appName: opts.AppName,
		workers: workers,
		logger:  logger,
	}
	logger.Info("Session started",
		zap.String("session_id", s.id),
		zap.String("app", s.appName),
		zap.Int("workers", s.workers))
	return s
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Workers returns the worker budget
func (s *Session) Workers() int { return s.workers }

// Logger returns the session logger
func (s *Session) Logger() *zap.Logger { return s.logger }

// Partition splits [0,n) into contiguous ranges and runs fn on each range
// concurrently, bounded by the worker budget. The first error cancels the rest.
func (s *Session) Partition(ctx context.Context, n int, fn func(ctx context.Context, lo, hi int) error) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}
	if n == 0 {
		return nil
	}

	parts := s.workers
	if parts > n {
		parts = n
	}
	size := (n + parts - 1) / parts

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, lo, hi)
		})
	}
	return g.Wait()
}

// Close ends the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("Session closed", zap.String("session_id", s.id))
	return nil
}
