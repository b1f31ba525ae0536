package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guessnumber/internal/config"
	"github.com/robalobadob/guessnumber/internal/game"
	"github.com/robalobadob/guessnumber/internal/history"
	"github.com/robalobadob/guessnumber/internal/httpserver"
	"github.com/robalobadob/guessnumber/internal/logging"
	"github.com/robalobadob/guessnumber/internal/session"
	"github.com/robalobadob/guessnumber/internal/telemetry"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logs, err := logging.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	defer logs.Close()

	if cfg.SessionGenerated {
		log.Warn().Msg("SESSION_SECRET not set; using a random secret, sessions will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.TelemetryDir, version, 30*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up telemetry")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown")
		}
	}()

	hist, err := history.Open(ctx, cfg.HistoryDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open round history")
	}
	defer hist.Close()

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up sessions")
	}

	srv, err := httpserver.New(game.New(nil), sessions, hist)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	log.Info().
		Int("port", cfg.Port).
		Str("sessions", cfg.SessionBackend).
		Bool("history", cfg.HistoryDSN != "").
		Bool("telemetry", cfg.TelemetryDir != "").
		Str("version", version).
		Msg("starting guessnumber")
	if err := srv.Run(ctx, cfg.Addr()); err != nil {
		log.Error().Err(err).Msg("server exited")
		return
	}
	log.Info().Msg("bye")
}

// newSessionStore builds the configured backend. The memory backend's
// janitor runs until ctx is cancelled.
func newSessionStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	opts := cfg.SessionOptions()
	if cfg.SessionBackend == config.BackendMemory {
		mem, err := session.NewMemoryStore(opts)
		if err != nil {
			return nil, err
		}
		go mem.Run(ctx, 10*time.Minute)
		return mem, nil
	}
	return session.NewCookieStore(opts)
}
