package ports

import (
	"context"

	"github.com/aretw0/swapflow/pkg/domain"
)

// SessionStore persists session records with a bounded lifetime.
type SessionStore interface {
	// Save upserts the session. Each save restarts its TTL.
	Save(ctx context.Context, sessionID string, session *domain.Session) error

	// Load retrieves a session.
	// Returns domain.ErrSessionNotFound if the session does not exist or has expired.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the ids of live sessions.
	List(ctx context.Context) ([]string, error)
}
