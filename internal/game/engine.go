// internal/game/engine.go
//
// Game engine for a single guess-the-number session.
// Responsibilities:
//   - Start rounds with a fresh secret drawn from a Source.
//   - Parse and evaluate guesses (low / high / correct).
//   - Track the won flag and roll over to a new round on the next submission.
//   - Project state into a View for rendering.
//
// Notes:
//   - The engine never touches HTTP or storage; callers load a State,
//     mutate it through the engine and persist it again.
//   - Guesses outside [MinSecret, MaxSecret] are compared like any other
//     integer and get ordinary low/high feedback, including integers too
//     large for int.
package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidGuessFormat is returned when a submission cannot be evaluated:
// the input is not an integer or no round is in progress.
var ErrInvalidGuessFormat = errors.New("invalid guess format")

// Feedback text shown to the player.
const (
	msgStart    = "Enter a number below to start playing!"
	msgNewRound = "🔄 New round! I picked a new number between 1 and 100."
	msgInvalid  = "🤔 Please enter a valid number."
)

// Engine applies game rules to a State.
type Engine struct {
	src Source
}

// New constructs an engine drawing secrets from src.
// A nil src falls back to the crypto-backed default.
func New(src Source) *Engine {
	if src == nil {
		src = CryptoSource()
	}
	return &Engine{src: src}
}

// Initialize starts a new round: fresh secret, zero guesses, neutral prompt,
// won flag cleared.
func (e *Engine) Initialize(st *State) {
	st.Secret = e.src.Between(MinSecret, MaxSecret)
	st.Guesses = 0
	st.Message = msgStart
	st.Tone = ToneNeutral
	st.Won = false
}

// Reset is Initialize under the name used by the reset entry point.
func (e *Engine) Reset(st *State) { e.Initialize(st) }

// SubmitGuess applies one form submission to st.
//
// After a win the submission only starts a new round and raw is ignored.
// Otherwise raw must parse as an integer while a round is in progress; on
// failure st keeps its secret and counter, gets the invalid-input message and
// the returned error wraps ErrInvalidGuessFormat. The state is always left
// ready to be persisted, even when an error is returned.
func (e *Engine) SubmitGuess(st *State, raw string) (Outcome, error) {
	if st.Won {
		e.Initialize(st)
		st.Message = msgNewRound
		return OutcomeNewRound, nil
	}

	guess, err := parseGuess(raw)
	if err == nil && !st.InProgress() {
		err = fmt.Errorf("%w: no round in progress", ErrInvalidGuessFormat)
	}
	if err != nil {
		st.Message = msgInvalid
		st.Tone = ToneAlert
		return OutcomeInvalid, err
	}

	st.Guesses++
	switch {
	case guess.n < st.Secret:
		st.Message = fmt.Sprintf("🔻 Too low! Try something higher than %s.", guess.text)
		st.Tone = ToneLowAlert
		return OutcomeLow, nil
	case guess.n > st.Secret:
		st.Message = fmt.Sprintf("🔺 Too high! Try something lower than %s.", guess.text)
		st.Tone = ToneCaution
		return OutcomeHigh, nil
	default:
		st.Message = fmt.Sprintf("🎉 Correct! You found the number %d in %s!", st.Secret, pluralGuesses(st.Guesses))
		st.Tone = ToneSuccess
		st.Won = true
		return OutcomeCorrect, nil
	}
}

// Render projects st into the fields the page displays.
func Render(st State) View {
	return View{
		Message: st.Message,
		Color:   st.Tone.Color(),
		Guesses: st.Guesses,
		Min:     MinSecret,
		Max:     MaxSecret,
	}
}

// guessValue is a parsed guess. text is what the feedback echoes; n is
// clamped to the int range for integers too large to represent, which still
// compares correctly against any secret.
type guessValue struct {
	n    int
	text string
}

// parseGuess accepts an optionally signed base-10 integer with surrounding
// whitespace.
func parseGuess(raw string) (guessValue, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return guessValue{}, fmt.Errorf("%w: empty input", ErrInvalidGuessFormat)
	}
	n, err := strconv.Atoi(s)
	if err == nil {
		return guessValue{n: n, text: strconv.Itoa(n)}, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		// Atoi reports the clamped bound alongside ErrRange, but may stop
		// before a trailing non-digit.
		if text, ok := canonicalDigits(s); ok {
			return guessValue{n: n, text: text}, nil
		}
	}
	return guessValue{}, fmt.Errorf("%w: %q", ErrInvalidGuessFormat, s)
}

// canonicalDigits validates an optionally signed run of decimal digits and
// returns it without a plus sign or leading zeros.
func canonicalDigits(s string) (string, bool) {
	sign := ""
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = "-", s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	if digits := strings.TrimLeft(s, "0"); digits != "" {
		return sign + digits, true
	}
	return "0", true
}

func pluralGuesses(n int) string {
	if n == 1 {
		return "1 guess"
	}
	return strconv.Itoa(n) + " guesses"
}
