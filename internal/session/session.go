// internal/session/session.go
//
// Per-visitor session storage for the game.
// Responsibilities:
//   - Identify visitors through a signed cookie.
//   - Load and save the visitor's game.State between requests.
//
// Two backends implement Store:
//   - CookieStore: the whole state travels in the cookie (secret sealed).
//   - MemoryStore: the cookie carries the session id only; state stays in
//     process memory.
//
// A missing, expired or tampered cookie is reported as ErrNoSession /
// ErrInvalidSession; callers start a fresh session in both cases.

package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/robalobadob/guessnumber/internal/game"
)

var (
	// ErrNoSession means the request carried no session cookie, or the
	// session it names is no longer known.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession means a cookie was present but failed verification.
	ErrInvalidSession = errors.New("invalid session")
)

// Session is one visitor's identity plus round state.
type Session struct {
	ID    string
	State game.State
}

// New returns a session with a fresh random identifier and no round.
func New() *Session {
	return &Session{ID: uuid.NewString()}
}

// Store loads and saves sessions for HTTP requests.
type Store interface {
	// Load returns the session carried by r.
	Load(r *http.Request) (*Session, error)

	// Save persists s and writes the cookie that identifies it.
	Save(w http.ResponseWriter, s *Session) error
}

// Options configure both backends.
type Options struct {
	CookieName string           // Defaults to DefaultCookieName.
	MaxAge     time.Duration    // Cookie and token lifetime. Defaults to DefaultMaxAge.
	Secure     bool             // Set the Secure cookie attribute.
	Secret     []byte           // Signing secret; keys are derived from it.
	Now        func() time.Time // Clock; defaults to time.Now.
}

const (
	DefaultCookieName = "guess_session"
	DefaultMaxAge     = 31 * 24 * time.Hour
)

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = DefaultCookieName
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// setCookie writes the session token with the usual security attributes.
func (o Options) setCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// token extracts the raw session token from r.
func (o Options) token(r *http.Request) (string, error) {
	c, err := r.Cookie(o.CookieName)
	if err != nil || c.Value == "" {
		return "", ErrNoSession
	}
	return c.Value, nil
}
