package lock

import (
	"context"
	"sync/atomic"
)

// Local is a process-local SweepLock backed by an atomic flag. Suitable for
// single-instance deployments and tests; multi-instance deployments should
// use the Redis lock instead.
type Local struct {
	held atomic.Bool
}

// NewLocal creates a process-local sweep lock.
func NewLocal() *Local {
	return &Local{}
}

// TryAcquire implements SweepLock.
func (l *Local) TryAcquire(_ context.Context) (bool, error) {
	return l.held.CompareAndSwap(false, true), nil
}

// Release implements SweepLock.
func (l *Local) Release(_ context.Context) error {
	l.held.Store(false)
	return nil
}
