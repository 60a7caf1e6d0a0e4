package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"vendora.app/internal/backend"
	"vendora.app/internal/store"
)

const defaultSessionTTL = 24 * time.Hour

// Service owns one client's session state. It is the sole writer of that
// state: login, verify and logout are the only mutations, and persistence is
// kept consistent with the in-memory view on every one of them.
type Service struct {
	mu        sync.Mutex
	sid       string
	backend   Backend
	records   store.SessionStore
	now       func() time.Time
	ttl       time.Duration
	listeners []Listener

	initialized bool
	token       string
	user        *backend.UserProfile
	pending     *PendingTwoFactor
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithTTL configures how long a persisted session survives.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithListener registers a session-change observer at construction time.
func WithListener(l Listener) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// NewService constructs the session service for one client session id.
func NewService(sid string, b Backend, records store.SessionStore, opts ...ServiceOption) *Service {
	svc := &Service{
		sid:     sid,
		backend: b,
		records: records,
		now:     time.Now,
		ttl:     defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SID returns the gateway session identifier.
func (s *Service) SID() string { return s.sid }

// Current returns a snapshot of the session state.
func (s *Service) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Service) snapshot() Session {
	sess := Session{Token: s.token, Initialized: s.initialized}
	if s.user != nil {
		u := *s.user
		sess.User = &u
	}
	return sess
}

// Initialized reports whether the persisted-session resolution has run.
func (s *Service) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Resolve restores a persisted session record, if any. It runs its logic at
// most once; later calls are no-ops. Consumers must not redirect on an
// absent user before Resolve has completed.
func (s *Service) Resolve(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true
	s.mu.Unlock()

	rec, err := s.records.Find(ctx, s.sid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		// Resolution failures leave the session anonymous rather than
		// blocking the client.
		return err
	}

	s.mu.Lock()
	s.token = rec.Token
	user := rec.User
	s.user = &user
	sess := s.snapshot()
	s.mu.Unlock()

	s.fireChanged(ctx, sess)
	return nil
}

// Login submits credentials. A previous pending challenge and error state are
// always discarded first. On a two-factor challenge the session stays
// anonymous and the pending state records the email and partial profile.
func (s *Service) Login(ctx context.Context, email, password string, opts LoginOptions) (LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidInput
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	res, err := s.backend.Login(ctx, email, password, opts.AdminEntry)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Unauthorized() {
			return LoginResult{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return LoginResult{}, err
	}

	if res.RequiresTwoFactor {
		s.mu.Lock()
		s.pending = &PendingTwoFactor{
			Email:      email,
			User:       res.User,
			AdminEntry: opts.AdminEntry,
		}
		s.mu.Unlock()
		return LoginResult{User: res.User, RequiresTwoFactor: true}, nil
	}

	if res.User == nil || res.Token == "" {
		return LoginResult{}, fmt.Errorf("session: backend returned no token or profile")
	}
	if err := s.establish(ctx, res.Token, *res.User); err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: res.User}, nil
}

// VerifyCode exchanges a 6-digit code for a session. Malformed codes and a
// missing challenge fail locally without a network call; backend rejections
// keep the challenge so the user may retry without re-entering credentials.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (*backend.UserProfile, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending == nil || pending.Email != email {
		return nil, ErrNoPendingChallenge
	}
	if !validCode(code) {
		return nil, ErrCodeFormat
	}

	res, err := s.backend.VerifyCode(ctx, email, code)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return nil, fmt.Errorf("%w: %s", ErrCodeRejected, apiErr.Message)
		}
		return nil, err
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	if err := s.establish(ctx, res.Token, res.User); err != nil {
		return nil, err
	}
	user := res.User
	return &user, nil
}

// Pending returns a copy of the pending challenge, if any.
func (s *Service) Pending() *PendingTwoFactor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// CancelTwoFactor discards the pending challenge. Purely local.
func (s *Service) CancelTwoFactor() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Logout clears the session unconditionally and synchronously. Server-side
// token invalidation is best-effort in the background and never blocks or
// fails the client-visible logout. Safe to call repeatedly.
func (s *Service) Logout(ctx context.Context) {
	s.mu.Lock()
	token := s.token
	wasUser := s.user != nil
	s.token = ""
	s.user = nil
	s.pending = nil
	s.initialized = true
	sess := s.snapshot()
	s.mu.Unlock()

	// Local state is cleared regardless; a record that outlives a failed
	// delete dies at its TTL.
	_ = s.records.Delete(ctx, s.sid)
	if token != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.backend.Logout(ctx, token)
		}()
	}
	if wasUser {
		s.fireChanged(ctx, sess)
	}
}

// RefreshProfile re-fetches the profile so verification flags reflect the
// backend's current view. Role changes are not applied: role is immutable
// for the session lifetime.
func (s *Service) RefreshProfile(ctx context.Context) error {
	s.mu.Lock()
	token := s.token
	current := s.user
	s.mu.Unlock()
	if token == "" || current == nil {
		return nil
	}

	fresh, err := s.backend.Profile(ctx, token)
	if err != nil {
		return err
	}
	fresh.Role = current.Role

	s.mu.Lock()
	s.user = fresh
	rec := s.record()
	s.mu.Unlock()
	return s.records.Save(ctx, rec)
}

// establish persists the record first and commits the in-memory state only
// on success, so a failed persist never leaves a session that claims to be
// signed in.
func (s *Service) establish(ctx context.Context, token string, user backend.UserProfile) error {
	now := s.now().UTC()
	rec := &store.Record{
		SID:       s.sid,
		Token:     token,
		User:      user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.records.Save(ctx, rec); err != nil {
		return fmt.Errorf("session: persist record: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.initialized = true
	sess := s.snapshot()
	s.mu.Unlock()

	s.fireChanged(ctx, sess)
	return nil
}

// record builds the persistence view. Caller holds the lock.
func (s *Service) record() *store.Record {
	now := s.now().UTC()
	rec := &store.Record{
		SID:       s.sid,
		Token:     s.token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if s.user != nil {
		rec.User = *s.user
	}
	return rec
}

func (s *Service) fireChanged(ctx context.Context, sess Session) {
	for _, l := range s.listeners {
		l.SessionChanged(ctx, sess)
	}
}

func validCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
