package store

import (
	"context"
	"errors"
	"time"

	"vendora.app/internal/backend"
)

// ErrNotFound indicates the session record does not exist or has expired.
var ErrNotFound = errors.New("store: session not found")

// Record is the server-side half of a gateway session: the backend bearer
// token plus the minimal profile needed to restore state after a reload.
type Record struct {
	SID       string
	Token     string
	User      backend.UserProfile
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore persists session records keyed by gateway session id.
type SessionStore interface {
	Save(ctx context.Context, rec *Record) error
	Find(ctx context.Context, sid string) (*Record, error)
	Delete(ctx context.Context, sid string) error
}
