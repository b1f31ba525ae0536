// internal/config/config.go
//
// Process configuration read from the environment.
// main loads an optional .env file (godotenv) before calling Load, so every
// value below can live in either place.
//
// Environment variables:
//   PORT             listen port (default 5000)
//   LOG_LEVEL        zerolog level (default info)
//   LOG_FILE         rotating log file; empty logs to stderr only
//   SESSION_SECRET   cookie signing secret (>= 16 bytes); generated when empty
//   SESSION_BACKEND  "cookie" (default) or "memory"
//   SESSION_COOKIE   cookie name (default guess_session)
//   SESSION_MAX_AGE  session lifetime as a Go duration (default 744h)
//   APP_ENV          "production" turns on Secure cookies
//   HISTORY_DSN      sqlite://path | postgres://… ; empty disables history
//   TELEMETRY_DIR    directory for OpenTelemetry exports; empty disables

package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/robalobadob/guessnumber/internal/session"
)

// Session backends.
const (
	BackendCookie = "cookie"
	BackendMemory = "memory"
)

// Config holds everything main needs to wire the server.
type Config struct {
	Port     int
	LogLevel zerolog.Level
	LogFile  string

	SessionSecret    []byte
	SessionGenerated bool // true when SessionSecret was generated at startup
	SessionBackend   string
	SessionCookie    string
	SessionMaxAge    time.Duration
	Production       bool

	HistoryDSN   string
	TelemetryDir string
}

// Addr is the listen address for http.Server.
func (c Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// SessionOptions converts the session settings for the session package.
func (c Config) SessionOptions() session.Options {
	return session.Options{
		CookieName: c.SessionCookie,
		MaxAge:     c.SessionMaxAge,
		Secure:     c.Production,
		Secret:     c.SessionSecret,
	}
}

// Load reads and validates the environment.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		LogFile:        getEnv("LOG_FILE", ""),
		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", BackendCookie)),
		SessionCookie:  getEnv("SESSION_COOKIE", session.DefaultCookieName),
		Production:     strings.EqualFold(getEnv("APP_ENV", "development"), "production"),
		HistoryDSN:     getEnv("HISTORY_DSN", ""),
		TelemetryDir:   getEnv("TELEMETRY_DIR", ""),
	}

	port, err := strconv.Atoi(getEnv("PORT", "5000"))
	if err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: invalid port %q", os.Getenv("PORT")))
	}
	cfg.Port = port

	lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = lvl

	switch cfg.SessionBackend {
	case BackendCookie, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("SESSION_BACKEND: unknown backend %q", cfg.SessionBackend))
	}

	maxAge, err := time.ParseDuration(getEnv("SESSION_MAX_AGE", "744h"))
	if err != nil || maxAge <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_AGE: invalid duration %q", os.Getenv("SESSION_MAX_AGE")))
	}
	cfg.SessionMaxAge = maxAge

	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		if len(secret) < session.MinSecretLen {
			errs = append(errs, fmt.Errorf("SESSION_SECRET: must be at least %d bytes", session.MinSecretLen))
		}
		cfg.SessionSecret = []byte(secret)
	} else {
		generated, err := randomSecret()
		if err != nil {
			errs = append(errs, fmt.Errorf("SESSION_SECRET: %w", err))
		}
		cfg.SessionSecret = generated
		cfg.SessionGenerated = true
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// randomSecret returns 32 random bytes hex encoded.
func randomSecret() ([]byte, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	return []byte(hex.EncodeToString(b[:])), nil
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
