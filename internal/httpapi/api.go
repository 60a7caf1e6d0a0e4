package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"vendora.app/internal/audit"
	"vendora.app/internal/backend"
	"vendora.app/internal/config"
	"vendora.app/internal/ids"
	"vendora.app/internal/notify"
	"vendora.app/internal/obs"
	"vendora.app/internal/session"
	"vendora.app/internal/store"
)

const sessionCookieName = "vendora_session"

// clientIdleTTL bounds how long an untouched registry entry survives.
// Signed-in state lives in the session store, so pruning only costs a
// store lookup on the next request.
const clientIdleTTL = 30 * time.Minute

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks readiness of the gateway's dependencies.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// client bundles the per-session service with its notification cache. One
// exists per gateway session id. seen is guarded by API.mu.
type client struct {
	svc   *session.Service
	cache *notify.Cache
	seen  time.Time
}

// API is the gateway's HTTP layer.
type API struct {
	mux        *http.ServeMux
	cfg        config.Config
	backend    *backend.Client
	records    store.SessionStore
	cookies    *session.CookieCodec
	readyProbe ReadyProbe
	version    string

	mu      sync.Mutex
	clients map[string]*client

	rateBurst  int
	ratePerSec int
}

// New wires the gateway routes.
func New(cfg config.Config, bc *backend.Client, records store.SessionStore, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		cfg:        cfg,
		backend:    bc,
		records:    records,
		cookies:    session.NewCookieCodec(cfg.SessionSecret, "vendora", cfg.SessionTTL),
		readyProbe: rp,
		version:    version,
		clients:    make(map[string]*client),
		rateBurst:  cfg.RateBurst,
		ratePerSec: cfg.RatePerSec,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth flow
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/admin/auth/login", a.handleAdminLogin)
	a.mux.HandleFunc("/v1/auth/verify-code", a.handleVerifyCode)
	a.mux.HandleFunc("/v1/auth/cancel", a.handleCancelTwoFactor)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/forgot-password", a.handleForgotPassword)
	a.mux.HandleFunc("/v1/auth/reset-password", a.handleResetPassword)
	a.mux.HandleFunc("/v1/session", a.handleSession)

	// notifications
	a.mux.HandleFunc("/v1/notifications", a.handleNotifications)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	// Anonymous visitors and expired sessions would otherwise pile up in the
	// registry forever. Swept the same way as the rate-limit buckets.
	go func() {
		ticker := time.NewTicker(time.Minute)
		for range ticker.C {
			a.pruneClients(time.Now())
		}
	}()

	return a
}

// pruneClients evicts registry entries idle past clientIdleTTL. A signed-in
// session survives eviction: its record is in the store and the next request
// rebuilds the entry.
func (a *API) pruneClients(now time.Time) {
	a.mu.Lock()
	for sid, cl := range a.clients {
		if now.Sub(cl.seen) > clientIdleTTL {
			delete(a.clients, sid)
		}
	}
	a.mu.Unlock()
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// clientFor resolves the caller's session from the signed cookie, minting a
// new session id (and cookie) when absent or invalid. The returned context
// carries the session id for audit events.
func (a *API) clientFor(w http.ResponseWriter, r *http.Request) (*client, context.Context) {
	sid := ""
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		if decoded, err := a.cookies.Decode(cookie.Value); err == nil {
			sid = decoded
		}
	}
	if sid == "" {
		sid = ids.New()
		a.setSessionCookie(w, r, sid)
	}

	ctx := audit.WithSessionID(r.Context(), sid)

	a.mu.Lock()
	cl, ok := a.clients[sid]
	if !ok {
		cache := notify.NewCache(a.backend)
		svc := session.NewService(sid, a.backend, a.records,
			session.WithTTL(a.cfg.SessionTTL),
			session.WithListener(cache),
		)
		cl = &client{svc: svc, cache: cache}
		a.clients[sid] = cl
	}
	cl.seen = time.Now()
	a.mu.Unlock()

	if err := cl.svc.Resolve(ctx); err != nil {
		obs.LogEvent("warn", "session_resolve_failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
	}
	return cl, ctx
}

func (a *API) setSessionCookie(w http.ResponseWriter, r *http.Request, sid string) {
	value, err := a.cookies.Encode(sid)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(a.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// dropClient removes the runtime registry entry after logout. The persisted
// record is already gone; a fresh cookie starts a fresh session.
func (a *API) dropClient(sid string) {
	a.mu.Lock()
	delete(a.clients, sid)
	a.mu.Unlock()
}

// --- service endpoints ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "vendora-gateway",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "vendora-gateway",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
