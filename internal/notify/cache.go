package notify

import (
	"context"
	"sync"

	"vendora.app/internal/backend"
	"vendora.app/internal/obs"
	"vendora.app/internal/session"
)

// Backend is the subset of the commerce API the cache depends on.
type Backend interface {
	Notifications(ctx context.Context, token string) ([]backend.Notification, error)
	MarkNotificationRead(ctx context.Context, token, id string) error
	MarkAllNotificationsRead(ctx context.Context, token string) error
}

// Cache holds one client session's notification list. It is the sole writer
// of notification read-state on the gateway side. The cache is empty whenever
// the session has no user; every transition to anonymous clears it rather
// than merely stopping fetches.
//
// Read receipts are optimistic without rollback: the local flag flips first
// and a failed backend confirmation is swallowed. Low-stakes, eventually
// consistent, and deliberate.
type Cache struct {
	backend Backend

	// mu guards everything below.
	mu      sync.Mutex
	gen     uint64
	token   string
	userID  string
	order   []string
	records map[string]backend.Notification
}

// NewCache creates an empty cache bound to a backend client.
func NewCache(b Backend) *Cache {
	return &Cache{
		backend: b,
		records: make(map[string]backend.Notification),
	}
}

var _ session.Listener = (*Cache)(nil)

// SessionChanged implements session.Listener. A new user triggers a wholesale
// load; an anonymous session clears the cache. A refresh of the same user's
// profile changes nothing.
func (c *Cache) SessionChanged(ctx context.Context, sess session.Session) {
	c.mu.Lock()
	if sess.User == nil {
		c.gen++
		c.token = ""
		c.userID = ""
		c.clearLocked()
		c.mu.Unlock()
		return
	}
	if sess.User.ID == c.userID && sess.Token == c.token {
		c.mu.Unlock()
		return
	}
	c.gen++
	c.token = sess.Token
	c.userID = sess.User.ID
	c.clearLocked()
	c.mu.Unlock()

	if err := c.Refresh(ctx); err != nil {
		obs.LogEvent("warn", "notification_load_failed", map[string]any{"error": err.Error()})
	}
}

// Refresh fetches the full list and replaces the cache wholesale. A fetch
// completing after the session changed underneath is discarded, never
// applied to the new user's cache.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	gen := c.gen
	c.mu.Unlock()
	if token == "" {
		return nil
	}

	items, err := c.backend.Notifications(ctx, token)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		// Stale fetch: the session changed while the request was in flight.
		return nil
	}
	c.clearLocked()
	for _, n := range items {
		if _, ok := c.records[n.ID]; ok {
			continue
		}
		c.order = append(c.order, n.ID)
		c.records[n.ID] = n
	}
	obs.NotificationRefresh.Inc()
	return nil
}

// List returns the cached notifications in server order.
func (c *Cache) List() []backend.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]backend.Notification, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.records[id])
	}
	return out
}

// UnreadCount returns the number of unread records.
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, id := range c.order {
		if !c.records[id].Read {
			n++
		}
	}
	return n
}

// MarkAsRead flips the local read flag immediately, then confirms with the
// backend. Confirmation failures do not roll the flag back.
func (c *Cache) MarkAsRead(ctx context.Context, id string) {
	c.mu.Lock()
	rec, ok := c.records[id]
	token := c.token
	if ok && !rec.Read {
		rec.Read = true
		c.records[id] = rec
	}
	c.mu.Unlock()
	if !ok || token == "" {
		return
	}

	if err := c.backend.MarkNotificationRead(ctx, token, id); err != nil {
		obs.LogEvent("warn", "notification_mark_read_failed", map[string]any{
			"notification_id": id,
			"error":           err.Error(),
		})
	}
}

// MarkAllAsRead applies the same optimistic policy to every record at once.
func (c *Cache) MarkAllAsRead(ctx context.Context) {
	c.mu.Lock()
	token := c.token
	for id, rec := range c.records {
		if !rec.Read {
			rec.Read = true
			c.records[id] = rec
		}
	}
	c.mu.Unlock()
	if token == "" {
		return
	}

	if err := c.backend.MarkAllNotificationsRead(ctx, token); err != nil {
		obs.LogEvent("warn", "notification_mark_all_read_failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// clearLocked empties the cache. Caller holds the lock.
func (c *Cache) clearLocked() {
	c.order = c.order[:0]
	c.records = make(map[string]backend.Notification)
}
