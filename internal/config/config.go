package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults are safe for local development only; production deployments are
// expected to override at least the session secret.
const (
	defaultListenAddr    = ":8080"
	defaultBackendURL    = "http://localhost:8081"
	defaultTenant        = "vendora-dev"
	defaultSessionSecret = "vendora-dev-secret"
	defaultSessionTTL    = 24 * time.Hour
	defaultRateBurst     = 20
	defaultRatePerSec    = 10
)

// Config carries all externally supplied settings for the gateway.
type Config struct {
	ListenAddr    string
	BackendURL    string
	Tenant        string
	SessionSecret string
	SessionTTL    time.Duration
	PostgresDSN   string
	RateBurst     int
	RatePerSec    int
}

// FromEnv reads configuration from VENDORA_* environment variables, falling
// back to local-development defaults for anything unset.
func FromEnv() Config {
	return Config{
		ListenAddr:    getenv("VENDORA_LISTEN", defaultListenAddr),
		BackendURL:    strings.TrimRight(getenv("VENDORA_BACKEND_URL", defaultBackendURL), "/"),
		Tenant:        getenv("VENDORA_TENANT", defaultTenant),
		SessionSecret: getenv("VENDORA_SESSION_SECRET", defaultSessionSecret),
		SessionTTL:    getdur("VENDORA_SESSION_TTL", defaultSessionTTL),
		PostgresDSN:   getenv("VENDORA_PG_DSN", ""),
		RateBurst:     getint("VENDORA_RATE_BURST", defaultRateBurst),
		RatePerSec:    getint("VENDORA_RATE_PER_SEC", defaultRatePerSec),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getdur(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
