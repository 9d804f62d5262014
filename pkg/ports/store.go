package ports

import (
	"context"

	"github.com/aretw0/itpbot/pkg/domain"
)

// SessionStore defines the interface for persisting conversation sessions.
// Reads and writes are not transactional: the last write wins.
type SessionStore interface {
	// Save persists the session under the given key.
	Save(ctx context.Context, key string, session *domain.Session) error

	// Load retrieves the session for a key.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, key string) (*domain.Session, error)

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys of the stored sessions.
	List(ctx context.Context) ([]string, error)
}
