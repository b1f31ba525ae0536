// internal/httpserver/server.go
//
// HTTP front door for the guess-the-number game.
// Responsibilities:
//   - Router + middleware (request IDs, real IP, access log, panic recovery,
//     timeouts).
//   - GET  /       render the current round (starting one if needed).
//   - POST /       apply the "guess" form field, then redirect to GET /.
//   - GET  /reset  start a new round, then redirect to GET /.
//   - Load/save the visitor session around every mutation.
//   - Best-effort round history and metrics.
//
// Notes:
//   - Mutating routes always answer 303 See Other so a browser refresh never
//     resubmits the form.
//   - An invalid guess is feedback, not a failure: it is rendered on the
//     page and never turns into a 4xx/5xx.

package httpserver

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/robalobadob/guessnumber/assets"
	"github.com/robalobadob/guessnumber/internal/game"
	"github.com/robalobadob/guessnumber/internal/history"
	"github.com/robalobadob/guessnumber/internal/session"
	"github.com/robalobadob/guessnumber/internal/telemetry"
)

const instrumentationName = "github.com/robalobadob/guessnumber/internal/httpserver"

// maxFormBytes bounds the POST body; a guess is a handful of digits.
const maxFormBytes = 4 << 10

// Server bundles router, game engine, session store and history.
type Server struct {
	r        *chi.Mux
	engine   *game.Engine
	sessions session.Store
	history  history.Repository
	page     *template.Template
	metrics  *telemetry.GameMetrics
	tracer   trace.Tracer
}

// Option customizes a Server.
type Option func(*options)

type options struct {
	meters  metric.MeterProvider
	tracers trace.TracerProvider
}

// WithMeterProvider records game metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meters = mp }
}

// WithTracerProvider starts spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracers = tp }
}

// New constructs a Server, installs middleware, and registers routes.
// A nil hist disables round history.
func New(eng *game.Engine, sessions session.Store, hist history.Repository, opts ...Option) (*Server, error) {
	o := options{meters: otel.GetMeterProvider(), tracers: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	if hist == nil {
		hist = history.Nop{}
	}
	page, err := assets.PageTemplate()
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewGameMetrics(o.meters.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}

	s := &Server{
		r:        chi.NewRouter(),
		engine:   eng,
		sessions: sessions,
		history:  hist,
		page:     page,
		metrics:  metrics,
		tracer:   o.tracers.Tracer(instrumentationName),
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(hlog.NewHandler(log.Logger))     // request-scoped logger
	s.r.Use(hlog.AccessHandler(accessLog))   // one line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(noStore)                         // page reflects session state

	// --- game ---
	s.r.Get("/", s.handleIndex)
	s.r.Post("/", s.handleGuess)
	s.r.Get("/reset", s.handleReset)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.r.ServeHTTP(w, r) }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ----------------------------- middleware ----------------------------------

// accessLog writes one structured line per request.
func accessLog(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
}

// noStore keeps browsers and proxies from caching the page.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ GAME ---------------------------------------

// pageData is the template input.
type pageData struct {
	View  game.View
	Stats *history.Stats // nil hides the stats line
}

// handleIndex renders the current round. A visitor without a round gets one
// started and persisted; otherwise GET never changes the session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := s.loadSession(r)

	if !sess.State.InProgress() {
		s.engine.Initialize(&sess.State)
		s.metrics.RoundStarted(ctx, "first_visit")
		if !s.saveSession(w, r, sess) {
			return
		}
	}

	data := pageData{View: game.Render(sess.State), Stats: s.visitorStats(ctx, sess.ID)}
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render page")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// handleGuess applies the submitted guess and redirects back to the page.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "game.submit_guess")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	raw := r.PostFormValue("guess") // missing or unreadable → "" → invalid guess

	sess := s.loadSession(r)
	if !sess.State.InProgress() {
		s.engine.Initialize(&sess.State)
		s.metrics.RoundStarted(ctx, "first_visit")
	}

	out, err := s.engine.SubmitGuess(&sess.State, raw)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Str("session", sess.ID).Msg("invalid guess")
	}
	span.SetAttributes(
		attribute.String("game.outcome", string(out)),
		attribute.Int("game.guesses", sess.State.Guesses),
	)
	s.metrics.Submission(ctx, out)

	if out == game.OutcomeCorrect {
		s.metrics.RoundWon(ctx, sess.State.Guesses)
		s.recordRound(ctx, r, sess)
	}

	if !s.saveSession(w, r, sess) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleReset starts a new round regardless of the current state.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.loadSession(r)
	s.engine.Reset(&sess.State)
	s.metrics.RoundStarted(r.Context(), "reset")

	if !s.saveSession(w, r, sess) {
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ----------------------------- helpers -------------------------------------

// loadSession returns the visitor's session or a fresh one. Invalid cookies
// are logged and replaced.
func (s *Server) loadSession(r *http.Request) *session.Session {
	sess, err := s.sessions.Load(r)
	if err == nil {
		return sess
	}
	if errors.Is(err, session.ErrInvalidSession) {
		hlog.FromRequest(r).Info().Err(err).Msg("discarding invalid session cookie")
	}
	return session.New()
}

// saveSession persists sess; on failure it answers 500 and returns false.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	if err := s.sessions.Save(w, sess); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("session", sess.ID).Msg("save session")
		http.Error(w, "could not save session", http.StatusInternalServerError)
		return false
	}
	return true
}

// recordRound stores a won round (best effort).
func (s *Server) recordRound(ctx context.Context, r *http.Request, sess *session.Session) {
	err := s.history.RecordRound(ctx, history.Round{
		VisitorID:  sess.ID,
		Secret:     sess.State.Secret,
		Guesses:    sess.State.Guesses,
		FinishedAt: time.Now(),
	})
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("session", sess.ID).Msg("record round")
	}
}

// visitorStats loads stats for the page; nil when unavailable or empty.
func (s *Server) visitorStats(ctx context.Context, visitorID string) *history.Stats {
	st, err := s.history.VisitorStats(ctx, visitorID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("session", visitorID).Msg("visitor stats")
		return nil
	}
	if st.RoundsWon == 0 {
		return nil
	}
	return &st
}
