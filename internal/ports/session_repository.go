package ports

import (
	"context"

	"github.com/rcc-labs/rcc/internal/domain"
)

// SessionRepository persists session checkpoints. Save overwrites the
// checkpoint for the session in place and must be atomic (write to a
// temp file, then rename) so a crash never leaves a torn checkpoint.
type SessionRepository interface {
	// Save persists the session, keyed by its session id.
	Save(ctx context.Context, s *domain.Session) error

	// Load retrieves a previously saved session by id.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)
}
