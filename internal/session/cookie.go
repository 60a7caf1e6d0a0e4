package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidCookie indicates the session cookie failed validation.
var ErrInvalidCookie = errors.New("session: invalid cookie")

// CookieCodec signs and verifies the HTTP-only session cookie. The cookie
// carries only the gateway session id; the backend token never leaves the
// server side.
type CookieCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type cookieClaims struct {
	jwt.RegisteredClaims
}

// NewCookieCodec builds a codec with the given HS256 secret.
func NewCookieCodec(secret, issuer string, ttl time.Duration) *CookieCodec {
	return &CookieCodec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithNow overrides the codec clock. Only intended for test use.
func (c *CookieCodec) WithNow(fn func() time.Time) *CookieCodec {
	if fn != nil {
		c.now = fn
	}
	return c
}

// Encode signs a cookie value for the given session id.
func (c *CookieCodec) Encode(sid string) (string, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return "", errors.New("session: sid is required")
	}
	now := c.now().UTC()
	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   sid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies a cookie value and returns the session id.
func (c *CookieCodec) Decode(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrInvalidCookie
	}
	parsed, err := jwt.ParseWithClaims(value, &cookieClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidCookie
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", ErrInvalidCookie
	}
	claims, ok := parsed.Claims.(*cookieClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidCookie
	}
	if claims.Issuer != c.issuer || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidCookie
	}
	return claims.Subject, nil
}
