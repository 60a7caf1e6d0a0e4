package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client talks to the commerce backend over HTTP/JSON. Every request carries
// the tenant header; authenticated requests add a bearer token per call.
type Client struct {
	baseURL    string
	tenant     string
	httpClient *http.Client
}

// Option configures Client behavior.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (useful for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a backend client for the given base URL and tenant identifier.
func New(baseURL, tenant string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     tenant,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login checks credentials. The admin entry point always hits the real
// credential path on the backend.
func (c *Client) Login(ctx context.Context, email, password string, adminEntry bool) (LoginResult, error) {
	req := map[string]any{
		"email":    email,
		"password": password,
	}
	if adminEntry {
		req["admin_entry"] = true
	}
	var res LoginResult
	if err := c.post(ctx, "/auth/login", "", req, &res); err != nil {
		return LoginResult{}, err
	}
	return res, nil
}

// VerifyCode exchanges a two-factor code, together with the challenged email,
// for a session token.
func (c *Client) VerifyCode(ctx context.Context, email, code string) (VerifyResult, error) {
	req := map[string]string{
		"email": email,
		"code":  code,
	}
	var res VerifyResult
	if err := c.post(ctx, "/auth/verify-code", "", req, &res); err != nil {
		return VerifyResult{}, err
	}
	return res, nil
}

// Logout invalidates the token server-side. Best-effort: callers treat
// failures as non-fatal.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.post(ctx, "/auth/logout", token, nil, nil)
}

// ForgotPassword requests a password-reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.post(ctx, "/auth/forgot-password", "", map[string]string{"email": email}, nil)
}

// ResetPassword completes a password reset using the emailed token.
func (c *Client) ResetPassword(ctx context.Context, resetToken, password string) error {
	req := map[string]string{
		"token":    resetToken,
		"password": password,
	}
	return c.post(ctx, "/auth/reset-password", "", req, nil)
}

// Profile re-fetches the authenticated user's profile, including current
// verification flags.
func (c *Client) Profile(ctx context.Context, token string) (*UserProfile, error) {
	var res UserProfile
	if err := c.get(ctx, "/auth/profile", token, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Notifications fetches the full notification list for the token's user.
func (c *Client) Notifications(ctx context.Context, token string) ([]Notification, error) {
	var res struct {
		Items []Notification `json:"items"`
	}
	if err := c.get(ctx, "/notifications", token, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// MarkNotificationRead confirms a single read receipt.
func (c *Client) MarkNotificationRead(ctx context.Context, token, id string) error {
	return c.post(ctx, "/notifications/"+url.PathEscape(id)+"/read", token, nil, nil)
}

// MarkAllNotificationsRead confirms read receipts for every notification.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, token string) error {
	return c.post(ctx, "/notifications/read-all", token, nil, nil)
}
