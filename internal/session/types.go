package session

import (
	"context"

	"vendora.app/internal/backend"
)

// Session is a read-only snapshot of one client's authentication state.
// Initialized becomes true exactly once, after the first attempt to restore
// a persisted session; until then consumers must not treat the absence of a
// user as "logged out".
type Session struct {
	Token       string
	User        *backend.UserProfile
	Initialized bool
}

// PendingTwoFactor holds the state between a challenged login and the code
// exchange. At most one exists per client session; it is destroyed by a
// successful verification, an explicit cancel, or a new login attempt.
type PendingTwoFactor struct {
	Email      string
	User       *backend.UserProfile
	AdminEntry bool
}

// LoginOptions tune a login attempt.
type LoginOptions struct {
	// AdminEntry forces the real credential path and marks the attempt for
	// the admin allow-list check layered on top of authentication.
	AdminEntry bool
}

// LoginResult is the client-visible outcome of a login attempt.
type LoginResult struct {
	User              *backend.UserProfile
	RequiresTwoFactor bool
}

// Backend is the subset of the commerce API the session service depends on.
type Backend interface {
	Login(ctx context.Context, email, password string, adminEntry bool) (backend.LoginResult, error)
	VerifyCode(ctx context.Context, email, code string) (backend.VerifyResult, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, token string) (*backend.UserProfile, error)
}

// Listener observes session transitions. Fired synchronously after every
// establishment and every logout; the notification cache hangs off this.
type Listener interface {
	SessionChanged(ctx context.Context, sess Session)
}
