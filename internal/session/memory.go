// internal/session/memory.go
//
// In-memory session backend.
// The cookie only carries a signed session id; round state is held in a map.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Load hands out copies, so handlers never share a State.
//   - State is lost when the process restarts; visitors then get a new round.
//   - Idle sessions are evicted by Sweep / Run once older than MaxAge.

package session

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/guessnumber/internal/game"
)

// entry is one stored session.
type entry struct {
	state game.State
	seen  time.Time // last Save
}

// MemoryStore is a Store keeping state in process memory.
type MemoryStore struct {
	opts  Options
	codec *codec

	mu       sync.RWMutex      // guards sessions
	sessions map[string]*entry // keyed by Session.ID
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore(opts Options) (*MemoryStore, error) {
	opts = opts.withDefaults()
	c, err := newCodec(opts.Secret, opts.MaxAge, opts.Now)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{opts: opts, codec: c, sessions: make(map[string]*entry)}, nil
}

// Load verifies the id cookie and returns a copy of the stored state.
func (m *MemoryStore) Load(r *http.Request) (*Session, error) {
	tok, err := m.opts.token(r)
	if err != nil {
		return nil, err
	}
	s, err := m.codec.decode(tok)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[s.ID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown id %s", ErrNoSession, s.ID)
	}
	return &Session{ID: s.ID, State: e.state}, nil
}

// Save stores a copy of s.State and refreshes the id cookie.
func (m *MemoryStore) Save(w http.ResponseWriter, s *Session) error {
	tok, exp, err := m.codec.encode(s.ID, nil)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions[s.ID] = &entry{state: s.State, seen: m.opts.Now()}
	m.mu.Unlock()

	m.opts.setCookie(w, tok, exp)
	return nil
}

// Len reports the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions not saved within MaxAge and returns how many were
// removed.
func (m *MemoryStore) Sweep() int {
	cutoff := m.opts.Now().Add(-m.opts.MaxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, e := range m.sessions {
		if e.seen.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Int("remaining", m.Len()).Msg("session sweep")
			}
		}
	}
}
