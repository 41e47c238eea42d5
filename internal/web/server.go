// Package web exposes a learner session over HTTP and streams the knowledge
// graph layout over a websocket.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-course/internal/diagnostics"
	"github.com/p-n-ai/pai-course/internal/exam"
	"github.com/p-n-ai/pai-course/internal/session"
)

const (
	defaultMaxUploadBytes = 20 << 20
	defaultTickInterval   = 16 * time.Millisecond
	defaultGraphPoll      = 250 * time.Millisecond
	maxJSONBodyBytes      = 8 << 20
)

// Session is the part of session.Session the handlers drive.
type Session interface {
	Dispatch(ctx context.Context, ev session.Event) error
	Snapshot(ctx context.Context) (session.Snapshot, error)
}

// Config holds HTTP surface settings.
type Config struct {
	MaxUploadBytes int64
	GraphWidth     float64
	GraphHeight    float64
	TickInterval   time.Duration
	// GraphPoll is how often an open graph stream checks the session for a
	// new graph.
	GraphPoll time.Duration
}

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

// Server routes HTTP requests to one learner session.
type Server struct {
	session  Session
	cfg      Config
	failures diagnostics.Store
	checks   map[string]Check
}

// Option configures a Server.
type Option func(*Server)

// WithReadinessCheck adds a named check to /readyz.
func WithReadinessCheck(name string, check Check) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithFailureStore exposes recent intent failures at /diagnostics/failures.
func WithFailureStore(store diagnostics.Store) Option {
	return func(s *Server) { s.failures = store }
}

// NewServer creates a Server.
func NewServer(sess Session, cfg Config, opts ...Option) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.GraphWidth <= 0 {
		cfg.GraphWidth = 800
	}
	if cfg.GraphHeight <= 0 {
		cfg.GraphHeight = 600
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.GraphPoll <= 0 {
		cfg.GraphPoll = defaultGraphPoll
	}
	s := &Server{
		session:  sess,
		cfg:      cfg,
		failures: diagnostics.NopLogger{},
		checks:   make(map[string]Check),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /session/document", s.handleUpload)
	mux.HandleFunc("GET /session", s.handleState)
	mux.HandleFunc("POST /session/module", s.handleModule)
	mux.HandleFunc("POST /session/depth", s.handleDepth)

	mux.HandleFunc("POST /session/exam", s.handleExamRequest)
	mux.HandleFunc("POST /session/exam/answers", s.handleAnswer)
	mux.HandleFunc("POST /session/exam/submit", s.handleSubmit)
	mux.HandleFunc("GET /session/exam/export", s.handleExport)

	mux.HandleFunc("POST /session/chat", s.handleChat)

	mux.HandleFunc("POST /session/speech", s.handleSpeech)
	mux.HandleFunc("GET /session/audio", s.handleAudio)
	mux.HandleFunc("DELETE /session/audio", s.handleStopAudio)

	mux.HandleFunc("GET /session/graph/ws", s.handleGraph)

	mux.HandleFunc("GET /diagnostics/failures", s.handleFailures)

	return mux
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	// Check errors stay in the log; the body only says which checks failed.
	results := make(map[string]string, len(s.checks))
	failed := false
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", diagnostics.Redact(err))
			results[name] = "fail"
			failed = true
			continue
		}
		results[name] = "ok"
	}
	if failed {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": results})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// dispatch sends ev and writes the resulting view with status on success.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev session.Event, status int) {
	if err := s.session.Dispatch(r.Context(), ev); err != nil {
		writeError(w, err)
		return
	}
	snap, err := s.session.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, newView(snap))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func errorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, session.ErrEmptyDocument),
		errors.Is(err, session.ErrEmptyMessage),
		errors.Is(err, session.ErrUnknownModule),
		errors.Is(err, exam.ErrUnknownQuestion),
		errors.Is(err, exam.ErrInvalidOption),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoDocument),
		errors.Is(err, session.ErrNoModule),
		errors.Is(err, session.ErrNoLesson),
		errors.Is(err, session.ErrChatBusy),
		errors.Is(err, exam.ErrNoQuestions),
		errors.Is(err, exam.ErrIncomplete),
		errors.Is(err, exam.ErrSubmitted),
		errors.Is(err, exam.ErrNotSubmitted):
		return http.StatusConflict
	case errors.Is(err, session.ErrClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")
