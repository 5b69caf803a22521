package ports

import (
	"context"
	"time"
)

// UnlockFunc is a function that releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker defines the interface for distributed concurrency control.
// It allows the Session Manager to coordinate session leases across replicas.
type DistributedLocker interface {
	// Lock acquires a lock for the given key (e.g., session ID).
	// It blocks until the lock is acquired or the context is done. The lock
	// expires on its own after ttl if never released.
	// Returns an UnlockFunc that MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
