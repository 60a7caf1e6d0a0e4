package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"vendora.app/internal/backend"
	"vendora.app/internal/store"
)

type fakeBackend struct {
	mu           sync.Mutex
	loginCalls   int
	verifyCalls  int
	logoutCalls  int
	profileCalls int

	lastLoginEmail string
	lastAdminEntry bool

	loginResult  backend.LoginResult
	loginErr     error
	verifyResult backend.VerifyResult
	verifyErr    error
	profile      *backend.UserProfile
	profileErr   error
}

func (f *fakeBackend) Login(ctx context.Context, email, password string, adminEntry bool) (backend.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	f.lastLoginEmail = email
	f.lastAdminEntry = adminEntry
	return f.loginResult, f.loginErr
}

func (f *fakeBackend) VerifyCode(ctx context.Context, email, code string) (backend.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	return f.verifyResult, f.verifyErr
}

func (f *fakeBackend) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return nil
}

func (f *fakeBackend) Profile(ctx context.Context, token string) (*backend.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	return f.profile, f.profileErr
}

func (f *fakeBackend) verifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifyCalls
}

type recordingListener struct {
	mu   sync.Mutex
	seen []Session
}

func (l *recordingListener) SessionChanged(ctx context.Context, sess Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = append(l.seen, sess)
}

func (l *recordingListener) last() (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.seen) == 0 {
		return Session{}, false
	}
	return l.seen[len(l.seen)-1], true
}

func newTestService(t *testing.T, fb *fakeBackend, opts ...ServiceOption) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	svc := NewService("sid-1", fb, mem, opts...)
	if err := svc.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return svc, mem
}

func ownerProfile() backend.UserProfile {
	return backend.UserProfile{
		ID:    "u-owner",
		Name:  "Aigerim",
		Email: "owner@x.com",
		Role:  backend.RoleOwner,
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	fb := &fakeBackend{}
	svc, _ := newTestService(t, fb)

	if _, err := svc.Login(context.Background(), "", "secret", LoginOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "", LoginOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if fb.loginCalls != 0 {
		t.Fatalf("expected no backend calls, got %d", fb.loginCalls)
	}
}

func TestLoginRejectedLeavesSessionUntouched(t *testing.T) {
	fb := &fakeBackend{
		loginErr: &backend.APIError{Status: http.StatusUnauthorized, Message: "invalid email or password"},
	}
	svc, _ := newTestService(t, fb)

	_, err := svc.Login(context.Background(), "a@x.com", "wrong", LoginOptions{})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	sess := svc.Current()
	if sess.User != nil || sess.Token != "" {
		t.Fatalf("session mutated by rejected login: %+v", sess)
	}
	if !sess.Initialized {
		t.Fatalf("session should stay initialized")
	}
}

func TestLoginChallengeCreatesPendingWithoutSession(t *testing.T) {
	partial := ownerProfile()
	fb := &fakeBackend{
		loginResult: backend.LoginResult{RequiresTwoFactor: true, User: &partial},
	}
	svc, _ := newTestService(t, fb)

	res, err := svc.Login(context.Background(), "Owner@X.com", "correct", LoginOptions{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.RequiresTwoFactor {
		t.Fatalf("expected two-factor challenge")
	}
	pending := svc.Pending()
	if pending == nil || pending.Email != "owner@x.com" {
		t.Fatalf("unexpected pending challenge: %+v", pending)
	}
	if svc.Current().User != nil {
		t.Fatalf("session must stay anonymous until the code exchange")
	}
}

func TestLoginSuccessEstablishesSession(t *testing.T) {
	user := ownerProfile()
	fb := &fakeBackend{
		loginResult: backend.LoginResult{Token: "tok-1", User: &user},
	}
	listener := &recordingListener{}
	svc, mem := newTestService(t, fb, WithListener(listener))

	res, err := svc.Login(context.Background(), "owner@x.com", "correct", LoginOptions{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.RequiresTwoFactor {
		t.Fatalf("did not expect a challenge")
	}
	sess := svc.Current()
	if sess.User == nil || sess.User.ID != "u-owner" || sess.Token != "tok-1" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	rec, err := mem.Find(context.Background(), "sid-1")
	if err != nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if rec.Token != "tok-1" || rec.User.ID != "u-owner" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	last, ok := listener.last()
	if !ok || last.User == nil || last.User.ID != "u-owner" {
		t.Fatalf("listener did not observe establishment")
	}
}

func TestVerifyCodeRejectsMalformedLocally(t *testing.T) {
	partial := ownerProfile()
	fb := &fakeBackend{
		loginResult: backend.LoginResult{RequiresTwoFactor: true, User: &partial},
	}
	svc, _ := newTestService(t, fb)
	if _, err := svc.Login(context.Background(), "owner@x.com", "correct", LoginOptions{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	for _, code := range []string{"", "123", "1234567", "12345a", "12 456"} {
		if _, err := svc.VerifyCode(context.Background(), "owner@x.com", code); !errors.Is(err, ErrCodeFormat) {
			t.Fatalf("code %q: expected ErrCodeFormat, got %v", code, err)
		}
	}
	if fb.verifyCount() != 0 {
		t.Fatalf("malformed codes must not reach the backend, got %d calls", fb.verifyCount())
	}
	if svc.Pending() == nil {
		t.Fatalf("pending challenge must survive local validation failures")
	}
}

func TestVerifyCodeWithoutPendingChallenge(t *testing.T) {
	fb := &fakeBackend{}
	svc, _ := newTestService(t, fb)

	if _, err := svc.VerifyCode(context.Background(), "owner@x.com", "123456"); !errors.Is(err, ErrNoPendingChallenge) {
		t.Fatalf("expected ErrNoPendingChallenge, got %v", err)
	}
	if fb.verifyCount() != 0 {
		t.Fatalf("invariant violation must not reach the backend")
	}
}

func TestVerifyCodeSuccessClearsPending(t *testing.T) {
	partial := ownerProfile()
	user := ownerProfile()
	fb := &fakeBackend{
		loginResult:  backend.LoginResult{RequiresTwoFactor: true, User: &partial},
		verifyResult: backend.VerifyResult{Token: "tok-2", User: user},
	}
	svc, _ := newTestService(t, fb)
	if _, err := svc.Login(context.Background(), "owner@x.com", "correct", LoginOptions{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := svc.VerifyCode(context.Background(), "owner@x.com", "123456")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if got.Role != backend.RoleOwner {
		t.Fatalf("unexpected role: %s", got.Role)
	}
	if svc.Pending() != nil {
		t.Fatalf("pending challenge must be destroyed by a successful exchange")
	}
	sess := svc.Current()
	if sess.User == nil || sess.Token != "tok-2" {
		t.Fatalf("session not established: %+v", sess)
	}
}

func TestVerifyCodeRejectionPreservesChallenge(t *testing.T) {
	partial := ownerProfile()
	fb := &fakeBackend{
		loginResult: backend.LoginResult{RequiresTwoFactor: true, User: &partial},
		verifyErr:   &backend.APIError{Status: http.StatusUnauthorized, Message: "code expired, request a new one"},
	}
	svc, _ := newTestService(t, fb)
	if _, err := svc.Login(context.Background(), "owner@x.com", "correct", LoginOptions{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	_, err := svc.VerifyCode(context.Background(), "owner@x.com", "999999")
	if !errors.Is(err, ErrCodeRejected) {
		t.Fatalf("expected ErrCodeRejected, got %v", err)
	}
	if svc.Pending() == nil {
		t.Fatalf("challenge must be preserved so the user can retry")
	}
	if svc.Current().User != nil {
		t.Fatalf("session must stay anonymous after a rejected code")
	}

	// Retry path: the backend accepts the second attempt.
	fb.mu.Lock()
	fb.verifyErr = nil
	fb.verifyResult = backend.VerifyResult{Token: "tok-3", User: ownerProfile()}
	fb.mu.Unlock()
	if _, err := svc.VerifyCode(context.Background(), "owner@x.com", "123456"); err != nil {
		t.Fatalf("retry VerifyCode: %v", err)
	}
}

func TestCancelThenLoginDoesNotLeakEmail(t *testing.T) {
	partial := ownerProfile()
	fb := &fakeBackend{
		loginResult: backend.LoginResult{RequiresTwoFactor: true, User: &partial},
	}
	svc, _ := newTestService(t, fb)
	if _, err := svc.Login(context.Background(), "owner@x.com", "correct", LoginOptions{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	svc.CancelTwoFactor()
	if svc.Pending() != nil {
		t.Fatalf("cancel must clear the pending challenge")
	}

	other := backend.UserProfile{ID: "u-2", Email: "other@x.com", Role: backend.RoleStaff}
	fb.mu.Lock()
	fb.loginResult = backend.LoginResult{RequiresTwoFactor: true, User: &other}
	fb.mu.Unlock()
	if _, err := svc.Login(context.Background(), "other@x.com", "pw", LoginOptions{}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	pending := svc.Pending()
	if pending == nil || pending.Email != "other@x.com" {
		t.Fatalf("previous challenge leaked into the new attempt: %+v", pending)
	}
}

type failingStore struct {
	store.SessionStore
	saveErr error
}

func (f *failingStore) Save(ctx context.Context, rec *store.Record) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.SessionStore.Save(ctx, rec)
}

func TestLoginPersistFailureDoesNotEstablishSession(t *testing.T) {
	user := ownerProfile()
	fb := &fakeBackend{
		loginResult: backend.LoginResult{Token: "tok-1", User: &user},
	}
	listener := &recordingListener{}
	st := &failingStore{SessionStore: store.NewMemory(), saveErr: errors.New("db down")}
	svc := NewService("sid-1", fb, st, WithListener(listener))
	if err := svc.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if _, err := svc.Login(context.Background(), "owner@x.com", "pw", LoginOptions{}); err == nil {
		t.Fatalf("expected an error from the failed persist")
	}

	// The reported failure must match what a follow-up snapshot shows.
	sess := svc.Current()
	if sess.User != nil || sess.Token != "" {
		t.Fatalf("session established despite failed persist: %+v", sess)
	}
	if _, ok := listener.last(); ok {
		t.Fatalf("listeners fired for a session that was never established")
	}
}

func TestLogoutIsSynchronousAndIdempotent(t *testing.T) {
	user := ownerProfile()
	fb := &fakeBackend{
		loginResult: backend.LoginResult{Token: "tok-1", User: &user},
	}
	svc, mem := newTestService(t, fb)
	if _, err := svc.Login(context.Background(), "owner@x.com", "correct", LoginOptions{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	svc.Logout(context.Background())
	first := svc.Current()
	svc.Logout(context.Background())
	second := svc.Current()

	if first.User != nil || second.User != nil || first.Token != "" || second.Token != "" {
		t.Fatalf("logout left session state behind: %+v / %+v", first, second)
	}
	if !first.Initialized || !second.Initialized {
		t.Fatalf("logout must not reset initialization")
	}
	if _, err := mem.Find(context.Background(), "sid-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("persisted record must be gone, got %v", err)
	}
}

func TestResolveRestoresPersistedSessionOnce(t *testing.T) {
	fb := &fakeBackend{}
	mem := store.NewMemory()
	user := ownerProfile()
	seed := NewService("sid-1", fb, mem)
	if err := seed.Resolve(context.Background()); err != nil {
		t.Fatalf("seed Resolve: %v", err)
	}
	fb.loginResult = backend.LoginResult{Token: "tok-1", User: &user}
	if _, err := seed.Login(context.Background(), "owner@x.com", "pw", LoginOptions{}); err != nil {
		t.Fatalf("seed Login: %v", err)
	}

	// A fresh service for the same sid simulates a page reload.
	listener := &recordingListener{}
	svc := NewService("sid-1", fb, mem, WithListener(listener))
	if svc.Initialized() {
		t.Fatalf("service must start uninitialized")
	}
	if err := svc.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	sess := svc.Current()
	if !sess.Initialized || sess.User == nil || sess.Token != "tok-1" {
		t.Fatalf("persisted session not restored: %+v", sess)
	}
	if last, ok := listener.last(); !ok || last.User == nil {
		t.Fatalf("resolution with a user must notify listeners")
	}

	if err := svc.Resolve(context.Background()); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	listener.mu.Lock()
	n := len(listener.seen)
	listener.mu.Unlock()
	if n != 1 {
		t.Fatalf("Resolve ran twice, listeners fired %d times", n)
	}
}

func TestRefreshProfileKeepsRoleImmutable(t *testing.T) {
	user := ownerProfile()
	refreshed := ownerProfile()
	refreshed.Role = backend.RoleStaff // backend drift must not change the session role
	refreshed.VerificationStatus = backend.VerificationVerified
	fb := &fakeBackend{
		loginResult: backend.LoginResult{Token: "tok-1", User: &user},
		profile:     &refreshed,
	}
	svc, _ := newTestService(t, fb)
	if _, err := svc.Login(context.Background(), "owner@x.com", "pw", LoginOptions{}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.RefreshProfile(context.Background()); err != nil {
		t.Fatalf("RefreshProfile: %v", err)
	}
	sess := svc.Current()
	if sess.User.Role != backend.RoleOwner {
		t.Fatalf("role must be immutable for the session lifetime, got %s", sess.User.Role)
	}
	if sess.User.VerificationStatus != backend.VerificationVerified {
		t.Fatalf("verification flags should refresh, got %q", sess.User.VerificationStatus)
	}
}
