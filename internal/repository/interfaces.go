package repository

import (
	"context"

	"manualsmap/internal/session"
)

// SessionRepository stores the live map sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *session.Session) error
	GetByID(ctx context.Context, id string) (*session.Session, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
