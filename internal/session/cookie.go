package session

import (
	"net/http"
)

// CookieStore keeps the entire session inside the signed cookie. Nothing is
// held server side, so any number of processes can share it as long as they
// use the same secret.
type CookieStore struct {
	opts  Options
	codec *codec
}

// NewCookieStore validates opts and derives the cookie keys.
func NewCookieStore(opts Options) (*CookieStore, error) {
	opts = opts.withDefaults()
	c, err := newCodec(opts.Secret, opts.MaxAge, opts.Now)
	if err != nil {
		return nil, err
	}
	return &CookieStore{opts: opts, codec: c}, nil
}

// Load decodes the session from the request cookie.
func (cs *CookieStore) Load(r *http.Request) (*Session, error) {
	tok, err := cs.opts.token(r)
	if err != nil {
		return nil, err
	}
	return cs.codec.decode(tok)
}

// Save re-issues the cookie with the current state and a fresh expiry.
func (cs *CookieStore) Save(w http.ResponseWriter, s *Session) error {
	tok, exp, err := cs.codec.encode(s.ID, &s.State)
	if err != nil {
		return err
	}
	cs.opts.setCookie(w, tok, exp)
	return nil
}
