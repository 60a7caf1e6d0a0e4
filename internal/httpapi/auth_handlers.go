package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vendora.app/internal/audit"
	"vendora.app/internal/backend"
	"vendora.app/internal/obs"
	"vendora.app/internal/route"
	"vendora.app/internal/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type sessionResponse struct {
	Initialized bool                 `json:"initialized"`
	User        *backend.UserProfile `json:"user,omitempty"`
	State       string               `json:"state"`
	Route       string               `json:"route,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, session.LoginOptions{})
}

// handleAdminLogin is the admin-only entry point: the credential check is the
// same, but an allow-list runs after authentication succeeds. Roles outside
// the list are logged out immediately and redirected to the public site.
func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	a.login(w, r, session.LoginOptions{AdminEntry: true})
}

func (a *API) login(w http.ResponseWriter, r *http.Request, opts session.LoginOptions) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cl, ctx := a.clientFor(w, r)
	res, err := cl.svc.Login(ctx, req.Email, req.Password, opts)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			obs.AuthLogins.WithLabelValues("rejected").Inc()
			_ = audit.LogEvent(ctx, "auth.login.failed", map[string]any{
				"email":       strings.ToLower(strings.TrimSpace(req.Email)),
				"admin_entry": opts.AdminEntry,
			})
		}
		a.writeServiceError(w, r, err)
		return
	}

	if res.RequiresTwoFactor {
		obs.AuthLogins.WithLabelValues("challenge").Inc()
		_ = audit.LogEvent(ctx, "auth.login.challenge", map[string]any{
			"email":       strings.ToLower(strings.TrimSpace(req.Email)),
			"admin_entry": opts.AdminEntry,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"requires_two_factor": true,
			"email":               strings.ToLower(strings.TrimSpace(req.Email)),
		})
		return
	}

	if opts.AdminEntry && !a.enforceAdminEntry(ctx, w, r, cl, res.User) {
		return
	}

	obs.AuthLogins.WithLabelValues("ok").Inc()
	_ = audit.LogEvent(ctx, "auth.login.ok", map[string]any{
		"user_id":     res.User.ID,
		"role":        string(res.User.Role),
		"admin_entry": opts.AdminEntry,
	})
	a.writeSessionEstablished(w, cl)
}

func (a *API) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cl, ctx := a.clientFor(w, r)
	// The pending challenge is consumed by a successful verify, so read the
	// entry-point marker before the exchange.
	adminEntry := false
	if p := cl.svc.Pending(); p != nil {
		adminEntry = p.AdminEntry
	}

	user, err := cl.svc.VerifyCode(ctx, req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrCodeFormat):
			obs.TwoFactorVerifications.WithLabelValues("malformed").Inc()
		case errors.Is(err, session.ErrCodeRejected):
			obs.TwoFactorVerifications.WithLabelValues("rejected").Inc()
			_ = audit.LogEvent(ctx, "auth.verify.failed", map[string]any{
				"email": strings.ToLower(strings.TrimSpace(req.Email)),
			})
		}
		a.writeServiceError(w, r, err)
		return
	}

	if adminEntry && !a.enforceAdminEntry(ctx, w, r, cl, user) {
		return
	}

	obs.TwoFactorVerifications.WithLabelValues("ok").Inc()
	_ = audit.LogEvent(ctx, "auth.verify.ok", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	a.writeSessionEstablished(w, cl)
}

// enforceAdminEntry applies the allow-list after a successful authentication
// on the admin entry point. Returns false when the caller was rejected and
// the response already written.
func (a *API) enforceAdminEntry(ctx context.Context, w http.ResponseWriter, r *http.Request, cl *client, user *backend.UserProfile) bool {
	if route.AdminEntryAllowed(user.Role) {
		return true
	}
	// Authentication succeeded; authorization did not. Destroy the fresh
	// session and send the caller to the public site.
	cl.svc.Logout(ctx)
	a.clearSessionCookie(w, r)
	a.dropClient(cl.svc.SID())

	obs.AuthLogins.WithLabelValues("role_denied").Inc()
	_ = audit.LogEvent(ctx, "auth.admin.role_denied", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	writeJSON(w, http.StatusForbidden, map[string]any{
		"error":    "this account cannot access the admin console",
		"redirect": route.PublicSiteURL,
	})
	return false
}

func (a *API) writeSessionEstablished(w http.ResponseWriter, cl *client) {
	sess := cl.svc.Current()
	state := route.Evaluate(sess)
	writeJSON(w, http.StatusOK, sessionResponse{
		Initialized: sess.Initialized,
		User:        sess.User,
		State:       state.String(),
		Route:       route.Destination(state),
	})
}

func (a *API) handleCancelTwoFactor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	cl, _ := a.clientFor(w, r)
	cl.svc.CancelTwoFactor()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	cl, ctx := a.clientFor(w, r)
	cl.svc.Logout(ctx)
	a.clearSessionCookie(w, r)
	a.dropClient(cl.svc.SID())
	_ = audit.LogEvent(ctx, "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	cl, ctx := a.clientFor(w, r)
	if r.URL.Query().Get("refresh") == "1" {
		if err := cl.svc.RefreshProfile(ctx); err != nil {
			obs.LogEvent("warn", "profile_refresh_failed", map[string]any{
				"error": err.Error(),
			})
		}
	}
	sess := cl.svc.Current()
	state := route.Evaluate(sess)
	writeJSON(w, http.StatusOK, sessionResponse{
		Initialized: sess.Initialized,
		User:        sess.User,
		State:       state.String(),
		Route:       route.Destination(state),
	})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if err := a.backend.ForgotPassword(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Token) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "token and password are required")
		return
	}
	if err := a.backend.ResetPassword(r.Context(), strings.TrimSpace(req.Token), req.Password); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// writeServiceError maps session and backend errors onto HTTP statuses.
// Authentication failures carry their message through to the user; backend
// transport failures collapse to a generic 502.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidInput),
		errors.Is(err, session.ErrCodeFormat),
		errors.Is(err, session.ErrNoPendingChallenge):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrInvalidCredentials),
		errors.Is(err, session.ErrCodeRejected):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			writeError(w, r, apiErr.Status, apiErr.Message)
			return
		}
		writeError(w, r, http.StatusBadGateway, "backend unavailable")
	}
}
