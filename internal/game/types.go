// internal/game/types.go
//
// Core type definitions for the guess-the-number game.
// Defines:
//   - Tone: semantic severity of a feedback message.
//   - State: per-visitor round state persisted by the session store.
//   - Outcome: what a single submission did to the round.
//   - View: read-only projection used by the page renderer.

package game

// Range of the secret number (inclusive).
const (
	MinSecret = 1
	MaxSecret = 100
)

// Tone classifies a feedback message.
// Possible values:
//   - "neutral":   prompts and round starts.
//   - "low-alert": the guess was below the secret.
//   - "caution":   the guess was above the secret.
//   - "success":   the guess was correct.
//   - "alert":     the input could not be used as a guess.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	ToneLowAlert Tone = "low-alert"
	ToneCaution  Tone = "caution"
	ToneSuccess  Tone = "success"
	ToneAlert    Tone = "alert"
)

// Color returns the CSS background color used for a tone.
// Unknown tones fall back to the neutral grey.
func (t Tone) Color() string {
	switch t {
	case ToneLowAlert, ToneAlert:
		return "#dc3545"
	case ToneCaution:
		return "#ffc107"
	case ToneSuccess:
		return "#28a745"
	default:
		return "#6c757d"
	}
}

// State holds the round state of a single visitor.
type State struct {
	Secret  int    // Target value in [MinSecret, MaxSecret]; 0 while no round is in progress.
	Guesses int    // Accepted guesses in the current round.
	Message string // Last feedback shown to the player.
	Tone    Tone   // Severity of Message.
	Won     bool   // Set by a correct guess, cleared by the next submission.
}

// InProgress reports whether a round has been initialized.
func (s State) InProgress() bool { return s.Secret != 0 }

// Outcome describes how SubmitGuess resolved.
type Outcome string

const (
	OutcomeNewRound Outcome = "new_round" // submission after a win; nothing evaluated
	OutcomeInvalid  Outcome = "invalid"
	OutcomeLow      Outcome = "low"
	OutcomeHigh     Outcome = "high"
	OutcomeCorrect  Outcome = "correct"
)

// View is what the page shows for a State.
type View struct {
	Message string
	Color   string
	Guesses int
	Min     int
	Max     int
}
