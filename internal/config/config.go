// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads the service configuration from the environment.
package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	NetworkBluesky  = "bluesky"
	NetworkMastodon = "mastodon"

	minPageSize = 1
	maxPageSize = 100
)

type AppConfig struct {
	ListenAddr string

	Network             string
	BlueskyServiceURL   string
	BlueskyAppViewURL   string
	MastodonInstanceURL string
	HTTPTimeout         time.Duration

	PageSize             int
	ReconcileMaxAttempts int
	ReconcileBackoff     time.Duration

	ScopeIdleTTL  time.Duration
	SweepInterval time.Duration

	SessionSecret []byte
	DatabaseURL   string

	LogLevel string
	LogDev   bool
}

// FromEnv reads every setting with its default. Malformed values are
// errors rather than silently defaulted.
func FromEnv() (*AppConfig, error) {
	c := &AppConfig{
		ListenAddr:          getenv("HTTP_LISTEN_ADDR", ":8080"),
		Network:             strings.ToLower(getenv("NETWORK", NetworkBluesky)),
		BlueskyServiceURL:   getenv("BLUESKY_SERVICE_URL", "https://bsky.social"),
		BlueskyAppViewURL:   getenv("BLUESKY_APPVIEW_URL", "https://public.api.bsky.app"),
		MastodonInstanceURL: getenv("MASTODON_INSTANCE_URL", "https://mastodon.social"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		LogLevel:            strings.ToLower(getenv("LOG_LEVEL", "info")),
	}

	var err error

	if c.Network != NetworkBluesky && c.Network != NetworkMastodon {
		return nil, fmt.Errorf("NETWORK must be %q or %q, got %q", NetworkBluesky, NetworkMastodon, c.Network)
	}

	if c.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.ReconcileBackoff, err = getenvDuration("RECONCILE_BACKOFF", time.Second); err != nil {
		return nil, err
	}
	if c.ScopeIdleTTL, err = getenvDuration("SCOPE_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if c.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if c.PageSize, err = getenvInt("PAGE_SIZE", 20); err != nil {
		return nil, err
	}
	if c.PageSize < minPageSize {
		c.PageSize = minPageSize
	}
	if c.PageSize > maxPageSize {
		c.PageSize = maxPageSize
	}

	if c.ReconcileMaxAttempts, err = getenvInt("RECONCILE_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if c.ReconcileMaxAttempts < 1 {
		return nil, fmt.Errorf("RECONCILE_MAX_ATTEMPTS must be at least 1, got %d", c.ReconcileMaxAttempts)
	}

	if c.LogDev, err = getenvBool("LOG_DEV", false); err != nil {
		return nil, err
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("LOG_LEVEL %q not recognized", c.LogLevel)
	}

	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		c.SessionSecret = []byte(secret)
	} else {
		c.SessionSecret = make([]byte, 32)
		if _, err := rand.Read(c.SessionSecret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}

	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", k, v)
	}
	return d, nil
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	iv, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return iv, nil
}

func getenvBool(k string, def bool) (bool, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", k, err)
	}
	return b, nil
}
