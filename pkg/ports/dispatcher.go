package ports

import (
	"context"

	"github.com/aretw0/swapflow/pkg/domain"
)

// ActionDispatcher routes one inbound event to the workflow step that owns it.
// Transports implement nothing but the translation into this call.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, sessionID string, identity domain.Identity, event domain.Event) (domain.Reply, error)
}
