package session

import "errors"

var (
	// ErrInvalidInput rejects empty credentials before any backend call.
	ErrInvalidInput = errors.New("session: email and password are required")
	// ErrInvalidCredentials surfaces a backend credential rejection. The
	// session is left untouched.
	ErrInvalidCredentials = errors.New("session: invalid email or password")
	// ErrNoPendingChallenge means VerifyCode was called without a matching
	// pending challenge. Invariant violation on the caller's side, never a
	// backend call.
	ErrNoPendingChallenge = errors.New("session: no pending two-factor challenge")
	// ErrCodeFormat rejects codes that are not exactly 6 digits before any
	// backend call, so a server-side attempt is not wasted.
	ErrCodeFormat = errors.New("session: verification code must be 6 digits")
	// ErrCodeRejected surfaces a backend code rejection (wrong, expired, or
	// too many attempts). The pending challenge is preserved for retry.
	ErrCodeRejected = errors.New("session: verification code rejected")
)
