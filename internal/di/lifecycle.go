package di

import (
	"errors"
	"sync"
)

// Lifecycle collects stop hooks for the resources a container actually built
type Lifecycle struct {
	mu    sync.Mutex
	hooks []func() error
}

// Append registers a hook; hooks run in reverse order of registration
func (l *Lifecycle) Append(hook func() error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook)
}

// Stop runs every registered hook once and joins their errors
func (l *Lifecycle) Stop() error {
	l.mu.Lock()
	hooks := l.hooks
	l.hooks = nil
	l.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
