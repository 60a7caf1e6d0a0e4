package httpapi

import (
	"net/http"
	"strings"

	"vendora.app/internal/backend"
)

type notificationsResponse struct {
	Items  []backend.Notification `json:"items"`
	Unread int                    `json:"unread"`
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	cl, ctx := a.clientFor(w, r)
	if cl.svc.Current().User == nil {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}
	if r.URL.Query().Get("refresh") == "1" {
		// Failures leave the cached list in place; the list itself is the
		// response either way.
		_ = cl.cache.Refresh(ctx)
	}
	writeJSON(w, http.StatusOK, notificationsResponse{
		Items:  cl.cache.List(),
		Unread: cl.cache.UnreadCount(),
	})
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")

	cl, ctx := a.clientFor(w, r)
	if cl.svc.Current().User == nil {
		writeError(w, r, http.StatusUnauthorized, "not signed in")
		return
	}

	if path == "read-all" {
		cl.cache.MarkAllAsRead(ctx)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	id := strings.TrimSuffix(path, "/read")
	if id == "" || id == path || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	cl.cache.MarkAsRead(ctx, id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
