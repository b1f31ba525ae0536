package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/robalobadob/guessnumber/internal/game"
)

// GameMetrics records game activity.
type GameMetrics struct {
	guesses       metric.Int64Counter
	roundsStarted metric.Int64Counter
	roundsWon     metric.Int64Counter
	guessesPerWin metric.Int64Histogram
}

// NewGameMetrics creates the game instruments on meter.
func NewGameMetrics(meter metric.Meter) (*GameMetrics, error) {
	guesses, err := meter.Int64Counter("game.submissions",
		metric.WithDescription("Guess form submissions by outcome"))
	if err != nil {
		return nil, err
	}
	started, err := meter.Int64Counter("game.rounds.started",
		metric.WithDescription("Rounds started, by reason"))
	if err != nil {
		return nil, err
	}
	won, err := meter.Int64Counter("game.rounds.won",
		metric.WithDescription("Rounds finished with a correct guess"))
	if err != nil {
		return nil, err
	}
	perWin, err := meter.Int64Histogram("game.rounds.guesses",
		metric.WithDescription("Guesses needed to win a round"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5, 6, 7, 8, 10, 15, 20, 50))
	if err != nil {
		return nil, err
	}
	return &GameMetrics{guesses: guesses, roundsStarted: started, roundsWon: won, guessesPerWin: perWin}, nil
}

// Submission counts one form submission.
func (m *GameMetrics) Submission(ctx context.Context, o game.Outcome) {
	m.guesses.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(o))))
	if o == game.OutcomeNewRound {
		m.RoundStarted(ctx, "after_win")
	}
}

// RoundStarted counts a new round. reason is "first_visit", "reset" or
// "after_win".
func (m *GameMetrics) RoundStarted(ctx context.Context, reason string) {
	m.roundsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RoundWon records a win after guesses attempts.
func (m *GameMetrics) RoundWon(ctx context.Context, guesses int) {
	m.roundsWon.Add(ctx, 1)
	m.guessesPerWin.Record(ctx, int64(guesses))
}
