package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/swapflow/internal/logging"
	"github.com/aretw0/swapflow/pkg/domain"
	"github.com/aretw0/swapflow/pkg/ports"
)

const (
	// DefaultLeaseTTL bounds how long a crashed holder can block a session across replicas.
	DefaultLeaseTTL = 2 * time.Minute
	// DefaultLeaseWait bounds how long a request queues behind another one.
	DefaultLeaseWait = 10 * time.Second
)

// lockEntry holds the lease slot and the reference count.
type lockEntry struct {
	slot chan struct{}
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused lease entries.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active leases

	locker    ports.DistributedLocker // Optional distributed locker
	logger    *slog.Logger
	leaseTTL  time.Duration
	leaseWait time.Duration
	now       func() time.Time
	onBusy    func()
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLease configures the distributed lease lifetime and the maximum queueing time.
func WithLease(ttl, wait time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.leaseTTL = ttl
		}
		if wait > 0 {
			m.leaseWait = wait
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithBusyHook is called every time a lease could not be acquired in time.
func WithBusyHook(fn func()) Option {
	return func(m *Manager) {
		m.onBusy = fn
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		locks:     make(map[string]*lockEntry),
		logger:    logging.NewNop(),
		leaseTTL:  DefaultLeaseTTL,
		leaseWait: DefaultLeaseWait,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lease entry and increments its reference count.
// The caller MUST call release(sessionID) when done with the entry.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{slot: make(chan struct{}, 1)}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Lease runs fn while holding the exclusive lease for the session.
// A request that cannot obtain the lease within the wait budget fails with
// domain.ErrSessionBusy and fn is not called.
func (m *Manager) Lease(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, m.leaseWait)
	defer cancel()

	entry := m.acquire(sessionID)
	defer m.release(sessionID)

	select {
	case entry.slot <- struct{}{}:
	case <-waitCtx.Done():
		return m.busy(ctx, sessionID, waitCtx.Err())
	}
	defer func() { <-entry.slot }()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(waitCtx, sessionID, m.leaseTTL)
		if err != nil {
			if waitCtx.Err() != nil {
				return m.busy(ctx, sessionID, err)
			}
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager) busy(ctx context.Context, sessionID string, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if m.onBusy != nil {
		m.onBusy()
	}
	m.logger.Warn("Session lease not acquired", "session_id", sessionID, "err", cause)
	return fmt.Errorf("%w: %v", domain.ErrSessionBusy, cause)
}

// Transact loads (or creates) the session under its lease, hands it to fn and
// persists whatever fn returns exactly once, including when fn fails.
// A nil session from fn persists the loaded one unchanged.
func (m *Manager) Transact(ctx context.Context, sessionID string, fn func(context.Context, *domain.Session) (*domain.Session, error)) error {
	return m.Lease(ctx, sessionID, func(ctx context.Context) error {
		current, err := m.store.Load(ctx, sessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			current = domain.NewSession(sessionID, m.now())
		} else if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}

		next, fnErr := fn(ctx, current)
		if next == nil {
			next = current
		}
		next.ID = sessionID
		next.UpdatedAt = m.now()

		// The save must land even if the client went away mid-request.
		if err := m.store.Save(context.WithoutCancel(ctx), sessionID, next); err != nil {
			return errors.Join(fnErr, fmt.Errorf("failed to save session: %w", err))
		}
		return fnErr
	})
}

// Load retrieves an existing session under its lease.
func (m *Manager) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s *domain.Session
	err := m.Lease(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = m.store.Load(ctx, sessionID)
		return err
	})
	return s, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.Lease(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
