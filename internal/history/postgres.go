package history

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guessnumber/assets"
)

// PostgresRepository stores rounds in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to connStr, checks the connection and
// applies the embedded schema. The caller is responsible for calling Close.
func NewPostgresRepository(ctx context.Context, connStr string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	var user, database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&user, &database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("query postgres: %w", err)
	}
	log.Info().Str("database", database).Str("user", user).Msg("connected to postgres")

	r := &PostgresRepository{pool: pool}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// migrate runs every schema file; they are written to be re-runnable.
func (r *PostgresRepository) migrate(ctx context.Context) error {
	fsys, err := assets.Migrations("postgres")
	if err != nil {
		return err
	}
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		body, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		if _, err := r.pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply %s: %w", f, err)
		}
		log.Debug().Str("migration", f).Msg("applied")
	}
	return nil
}

// RecordRound inserts a won round.
func (r *PostgresRepository) RecordRound(ctx context.Context, rd Round) error {
	finished := rd.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
        INSERT INTO rounds (visitor_id, secret, guesses, finished_at)
        VALUES ($1, $2, $3, $4)`,
		rd.VisitorID, rd.Secret, rd.Guesses, finished.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// VisitorStats aggregates the visitor's rounds.
func (r *PostgresRepository) VisitorStats(ctx context.Context, visitorID string) (Stats, error) {
	var st Stats
	var total int64
	err := r.pool.QueryRow(ctx, `
        SELECT COUNT(1), COALESCE(MIN(guesses), 0), COALESCE(SUM(guesses), 0)
        FROM rounds
        WHERE visitor_id=$1`, visitorID,
	).Scan(&st.RoundsWon, &st.BestGuesses, &total)
	if err != nil {
		return Stats{}, fmt.Errorf("visitor stats: %w", err)
	}
	st.TotalGuesses = int(total)
	return st, nil
}

// Close closes the pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
