package session

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/robalobadob/guessnumber/internal/game"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// roundTrip saves s through st and returns a request carrying the issued cookie.
func roundTrip(t *testing.T, st Store, s *Session) (*http.Request, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, st.Save(rec, s))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	return req, cookies[0]
}

func sampleState() game.State {
	return game.State{
		Secret:  42,
		Guesses: 3,
		Message: "🔻 Too low! Try something higher than 10.",
		Tone:    game.ToneLowAlert,
	}
}

func TestNewSessionHasUniqueID(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.State.InProgress())
}

func TestStoresRoundTrip(t *testing.T) {
	stores := map[string]func(Options) (Store, error){
		"cookie": func(o Options) (Store, error) { return NewCookieStore(o) },
		"memory": func(o Options) (Store, error) { return NewMemoryStore(o) },
	}
	for name, mk := range stores {
		t.Run(name, func(t *testing.T) {
			st, err := mk(Options{Secret: testSecret})
			require.NoError(t, err)

			s := New()
			s.State = sampleState()
			req, c := roundTrip(t, st, s)

			assert.Equal(t, DefaultCookieName, c.Name)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/", c.Path)
			assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

			got, err := st.Load(req)
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)
			assert.Equal(t, s.State, got.State)
		})
	}
}

func TestCookieStore_WonStateAndNoRound(t *testing.T) {
	st, err := NewCookieStore(Options{Secret: testSecret})
	require.NoError(t, err)

	won := New()
	won.State = game.State{Secret: 7, Guesses: 1, Message: "🎉", Tone: game.ToneSuccess, Won: true}
	req, _ := roundTrip(t, st, won)
	got, err := st.Load(req)
	require.NoError(t, err)
	assert.Equal(t, won.State, got.State)

	empty := New()
	req, _ = roundTrip(t, st, empty)
	got, err = st.Load(req)
	require.NoError(t, err)
	assert.False(t, got.State.InProgress())
}

func TestLoadWithoutCookie(t *testing.T) {
	st, err := NewCookieStore(Options{Secret: testSecret})
	require.NoError(t, err)

	_, err = st.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCookieStore_SecretNotReadable(t *testing.T) {
	st, err := NewCookieStore(Options{Secret: testSecret})
	require.NoError(t, err)

	s := New()
	s.State = sampleState()
	_, c := roundTrip(t, st, s)

	var cl claims
	_, _, err = jwt.NewParser().ParseUnverified(c.Value, &cl)
	require.NoError(t, err)
	assert.NotEmpty(t, cl.Sealed)
	assert.NotEqual(t, "42", cl.Sealed)
	raw, err := base64.RawURLEncoding.DecodeString(cl.Sealed)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "42")
	assert.Equal(t, 3, cl.Guesses)
}

func TestCookieStore_RejectsTampering(t *testing.T) {
	st, err := NewCookieStore(Options{Secret: testSecret})
	require.NoError(t, err)

	s := New()
	s.State = sampleState()
	_, c := roundTrip(t, st, s)

	t.Run("modified payload", func(t *testing.T) {
		parts := strings.Split(c.Value, ".")
		require.Len(t, parts, 3)
		parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x","g":0,"exp":9999999999}`))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: c.Name, Value: strings.Join(parts, ".")})

		_, err := st.Load(req)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("different secret", func(t *testing.T) {
		other, err := NewCookieStore(Options{Secret: []byte("another-secret-of-enough-length")})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)

		_, err = other.Load(req)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("sealed secret moved to another session", func(t *testing.T) {
		// Re-sign a token that reuses the sealed secret under a new subject.
		var cl claims
		_, _, err := jwt.NewParser().ParseUnverified(c.Value, &cl)
		require.NoError(t, err)
		cl.Subject = "someone-else"
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(st.codec.signKey)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: c.Name, Value: tok})

		_, err = st.Load(req)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: c.Name, Value: "not-a-token"})

		_, err := st.Load(req)
		assert.ErrorIs(t, err, ErrInvalidSession)
	})
}

func TestCookieStore_Expiry(t *testing.T) {
	clk := newClock()
	st, err := NewCookieStore(Options{Secret: testSecret, MaxAge: time.Hour, Now: clk.Now})
	require.NoError(t, err)

	s := New()
	s.State = sampleState()
	req, c := roundTrip(t, st, s)
	assert.Equal(t, clk.Now().Add(time.Hour).Unix(), c.Expires.Unix())

	clk.Advance(59 * time.Minute)
	_, err = st.Load(req)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)
	_, err = st.Load(req)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestOptions(t *testing.T) {
	_, err := NewCookieStore(Options{Secret: []byte("short")})
	assert.Error(t, err)
	_, err = NewMemoryStore(Options{})
	assert.Error(t, err)

	st, err := NewCookieStore(Options{Secret: testSecret, CookieName: "custom", Secure: true})
	require.NoError(t, err)
	_, c := roundTrip(t, st, New())
	assert.Equal(t, "custom", c.Name)
	assert.True(t, c.Secure)
}

func TestMemoryStore_CookieCarriesOnlyID(t *testing.T) {
	st, err := NewMemoryStore(Options{Secret: testSecret})
	require.NoError(t, err)

	s := New()
	s.State = sampleState()
	_, c := roundTrip(t, st, s)

	var cl claims
	_, _, err = jwt.NewParser().ParseUnverified(c.Value, &cl)
	require.NoError(t, err)
	assert.Equal(t, s.ID, cl.Subject)
	assert.Empty(t, cl.Sealed)
	assert.Zero(t, cl.Guesses)
	assert.Empty(t, cl.Message)
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	st, err := NewMemoryStore(Options{Secret: testSecret})
	require.NoError(t, err)

	s := New()
	s.State = sampleState()
	req, _ := roundTrip(t, st, s)

	got, err := st.Load(req)
	require.NoError(t, err)
	got.State.Guesses = 99

	again, err := st.Load(req)
	require.NoError(t, err)
	assert.Equal(t, 3, again.State.Guesses)
}

func TestMemoryStore_UnknownID(t *testing.T) {
	a, err := NewMemoryStore(Options{Secret: testSecret})
	require.NoError(t, err)
	b, err := NewMemoryStore(Options{Secret: testSecret})
	require.NoError(t, err)

	req, _ := roundTrip(t, a, New())

	_, err = b.Load(req)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryStore_Sweep(t *testing.T) {
	clk := newClock()
	st, err := NewMemoryStore(Options{Secret: testSecret, MaxAge: time.Hour, Now: clk.Now})
	require.NoError(t, err)

	old := New()
	roundTrip(t, st, old)
	clk.Advance(45 * time.Minute)
	fresh := New()
	roundTrip(t, st, fresh)
	require.Equal(t, 2, st.Len())

	clk.Advance(30 * time.Minute)
	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 1, st.Len())

	clk.Advance(time.Hour)
	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 0, st.Len())
}

func TestMemoryStore_RunStopsWithContext(t *testing.T) {
	clk := newClock()
	st, err := NewMemoryStore(Options{Secret: testSecret, MaxAge: time.Minute, Now: clk.Now})
	require.NoError(t, err)
	roundTrip(t, st, New())
	clk.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		st.Run(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return st.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestMemoryStore_ConcurrentVisitors(t *testing.T) {
	st, err := NewMemoryStore(Options{Secret: testSecret})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := New()
			s.State = game.State{Secret: i%100 + 1, Guesses: i}
			req, _ := roundTrip(t, st, s)
			got, err := st.Load(req)
			if assert.NoError(t, err) {
				assert.Equal(t, i, got.State.Guesses)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 32, st.Len())
}
