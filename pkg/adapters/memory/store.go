package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/swapflow/pkg/domain"
)

type record struct {
	data      []byte
	expiresAt time.Time
}

// Store implements ports.SessionStore in memory.
// Safe for concurrent use. Expired sessions are treated as absent and pruned lazily.
type Store struct {
	data map[string]record
	mu   sync.RWMutex
	ttl  time.Duration
	now  func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the session lifetime. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]record),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists the session in memory.
func (s *Store) Save(ctx context.Context, sessionID string, session *domain.Session) error {
	// Serialize to keep stored copies isolated from the caller.
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	rec := record{data: data}
	if s.ttl > 0 {
		rec.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = rec
	return nil
}

// Load retrieves the session from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	rec, ok := s.data[sessionID]
	s.mu.RUnlock()

	if !ok || s.expired(rec) {
		return nil, domain.ErrSessionNotFound
	}

	var session domain.Session
	if err := json.Unmarshal(rec.data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns live sessions and drops expired ones.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]string, 0, len(s.data))
	for id, rec := range s.data {
		if s.expired(rec) {
			delete(s.data, id)
			continue
		}
		sessions = append(sessions, id)
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (s *Store) expired(rec record) bool {
	return !rec.expiresAt.IsZero() && !s.now().Before(rec.expiresAt)
}
