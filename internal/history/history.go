// internal/history/history.go
//
// Round history for the game.
// Responsibilities:
//   - Record every won round (visitor, secret, guess count, finish time).
//   - Aggregate per-visitor stats shown under the game form.
//
// Backends are chosen by DSN (see Open):
//   - ""                          → Nop (history disabled)
//   - "sqlite://path", "file:…",
//     or a bare filesystem path   → SQLite (mattn/go-sqlite3)
//   - "postgres://…",
//     "postgresql://…"            → PostgreSQL (pgx pool)
//
// Writes are best effort from the caller's point of view: the game never
// fails a request because history could not be stored.

package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnsupportedDSN is returned by Open for DSNs it cannot route.
var ErrUnsupportedDSN = errors.New("unsupported history DSN")

// Round is a finished (won) round.
type Round struct {
	VisitorID  string
	Secret     int
	Guesses    int
	FinishedAt time.Time
}

// Stats aggregates a visitor's won rounds.
type Stats struct {
	RoundsWon    int
	BestGuesses  int // fewest guesses in a won round; 0 when RoundsWon == 0
	TotalGuesses int
}

// AverageGuesses returns the mean guesses per won round.
func (s Stats) AverageGuesses() float64 {
	if s.RoundsWon == 0 {
		return 0
	}
	return float64(s.TotalGuesses) / float64(s.RoundsWon)
}

// Repository persists rounds.
type Repository interface {
	// RecordRound stores a won round.
	RecordRound(ctx context.Context, r Round) error

	// VisitorStats aggregates all rounds of visitorID.
	VisitorStats(ctx context.Context, visitorID string) (Stats, error)

	// Close releases the underlying connection(s).
	Close() error
}

// Nop discards rounds and reports empty stats.
type Nop struct{}

func (Nop) RecordRound(context.Context, Round) error            { return nil }
func (Nop) VisitorStats(context.Context, string) (Stats, error) { return Stats{}, nil }
func (Nop) Close() error                                        { return nil }

// Open routes dsn to a backend and applies its migrations.
func Open(ctx context.Context, dsn string) (Repository, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return Nop{}, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		repo, err := NewPostgresRepository(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "file:"), !strings.Contains(dsn, "://"):
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, redact(dsn))
	}

	repo, err := NewSQLiteRepository(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// redact drops everything after the scheme so credentials never reach logs.
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "…"
	}
	return dsn
}
