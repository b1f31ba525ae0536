package session

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/robalobadob/guessnumber/internal/game"
)

// MinSecretLen is the shortest signing secret accepted.
const MinSecretLen = 16

// HKDF info labels; changing one invalidates every issued cookie.
const (
	infoSign = "guessnumber session signing v1"
	infoSeal = "guessnumber round sealing v1"
)

// claims is the JWT payload. The secret number is sealed, everything else
// is what the page shows anyway.
type claims struct {
	jwt.RegisteredClaims
	Sealed  string    `json:"sec,omitempty"`
	Guesses int       `json:"g,omitempty"`
	Message string    `json:"msg,omitempty"`
	Tone    game.Tone `json:"tone,omitempty"`
	Won     bool      `json:"won,omitempty"`
}

// codec signs session tokens (HS256) and seals round secrets
// (XChaCha20-Poly1305, bound to the session id).
type codec struct {
	signKey []byte
	aead    cipher.AEAD
	maxAge  time.Duration
	now     func() time.Time
}

func newCodec(secret []byte, maxAge time.Duration, now func() time.Time) (*codec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLen)
	}
	signKey, err := deriveKey(secret, infoSign, 32)
	if err != nil {
		return nil, err
	}
	sealKey, err := deriveKey(secret, infoSeal, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(sealKey)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &codec{signKey: signKey, aead: aead, maxAge: maxAge, now: now}, nil
}

func deriveKey(secret []byte, info string, n int) ([]byte, error) {
	key := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %q: %w", info, err)
	}
	return key, nil
}

// encode issues a token for id. When st is nil only the identity is
// encoded (memory backend).
func (c *codec) encode(id string, st *game.State) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.maxAge)
	cl := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if st != nil {
		if st.InProgress() {
			sealed, err := c.seal(id, st.Secret)
			if err != nil {
				return "", time.Time{}, err
			}
			cl.Sealed = sealed
		}
		cl.Guesses = st.Guesses
		cl.Message = st.Message
		cl.Tone = st.Tone
		cl.Won = st.Won
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return tok, exp, nil
}

// decode verifies tok and returns the session it carries.
func (c *codec) decode(tok string) (*Session, error) {
	var cl claims
	_, err := jwt.ParseWithClaims(tok, &cl, func(*jwt.Token) (interface{}, error) {
		return c.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if cl.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}

	s := &Session{
		ID: cl.Subject,
		State: game.State{
			Guesses: cl.Guesses,
			Message: cl.Message,
			Tone:    cl.Tone,
			Won:     cl.Won,
		},
	}
	if cl.Sealed != "" {
		secret, err := c.open(cl.Subject, cl.Sealed)
		if err != nil {
			return nil, err
		}
		s.State.Secret = secret
	}
	return s, nil
}

func (c *codec) seal(id string, secret int) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+8+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("seal nonce: %w", err)
	}
	out := c.aead.Seal(nonce, nonce, []byte(strconv.Itoa(secret)), []byte(id))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (c *codec) open(id, sealed string) (int, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return 0, fmt.Errorf("%w: sealed secret: %v", ErrInvalidSession, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return 0, fmt.Errorf("%w: sealed secret too short", ErrInvalidSession)
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], []byte(id))
	if err != nil {
		return 0, fmt.Errorf("%w: sealed secret: %v", ErrInvalidSession, err)
	}
	n, err := strconv.Atoi(string(plain))
	if err != nil || n < game.MinSecret || n > game.MaxSecret {
		return 0, fmt.Errorf("%w: sealed secret out of range", ErrInvalidSession)
	}
	return n, nil
}
