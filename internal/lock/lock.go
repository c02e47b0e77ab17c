// Package lock provides the sweep re-entrancy guard.
//
// Bulk sweeps must never run twice concurrently, including across deployed
// instances. The guard is an explicit lock object rather than an in-process
// flag: the Redis implementation coordinates across instances, the local
// implementation covers single-instance deployments and tests.
package lock

import "context"

// SweepLock guards a bulk sweep against concurrent runs.
type SweepLock interface {
	// TryAcquire attempts to take the lock without blocking. Returns false
	// when another sweep currently holds it.
	TryAcquire(ctx context.Context) (bool, error)

	// Release gives the lock back. Releasing a lock this instance does not
	// hold is a no-op.
	Release(ctx context.Context) error
}
