// Package httpapi exposes the agent over HTTP: session CRUD, out-of-band
// message and confirmation submission, and the long-lived SSE event stream
// that the agent loop writes to.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nevindra/scout"
)

const maxRequestBodyBytes = 1 << 20 // 1MB

// ProviderFactory builds a streaming provider bound to a per-message
// credential.
type ProviderFactory func(token string) scout.StreamProvider

// Server wires the HTTP surface to the store, the stream registry, and the
// agent loop.
type Server struct {
	store       scout.SessionStore
	registry    *scout.StreamRegistry
	tools       *scout.Registry
	newProvider ProviderFactory

	defaultModel  string
	workDir       string
	maxIterations int

	logger *slog.Logger
	tracer scout.Tracer

	keepaliveInterval time.Duration
	confirmTimeout    time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Defaults to a discard logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer enables span emission on loop iterations and tool executions.
func WithTracer(t scout.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithMaxIterations bounds provider-call passes per turn.
func WithMaxIterations(n int) Option {
	return func(s *Server) { s.maxIterations = n }
}

// WithKeepaliveInterval overrides the idle SSE keepalive period.
func WithKeepaliveInterval(d time.Duration) Option {
	return func(s *Server) { s.keepaliveInterval = d }
}

// WithConfirmTimeout overrides how long a tool confirmation may stay
// unanswered before it is treated as a denial.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Server) { s.confirmTimeout = d }
}

// NewServer creates a Server. workDir is the sandbox root for tool
// execution; defaultModel is used when a message does not name one.
func NewServer(store scout.SessionStore, registry *scout.StreamRegistry, tools *scout.Registry, newProvider ProviderFactory, workDir, defaultModel string, opts ...Option) *Server {
	s := &Server{
		store:             store,
		registry:          registry,
		tools:             tools,
		newProvider:       newProvider,
		defaultModel:      defaultModel,
		workDir:           workDir,
		maxIterations:     scout.DefaultMaxIterations,
		logger:            slog.New(slog.DiscardHandler),
		keepaliveInterval: 30 * time.Second,
		confirmTimeout:    300 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", s.handleUpdateSession)

	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleSubmitMessage)
	mux.HandleFunc("POST /api/sessions/{id}/confirm", s.handleSubmitConfirm)
	mux.HandleFunc("POST /api/sessions/{id}/close", s.handleCloseStream)
	mux.HandleFunc("GET /api/sessions/{id}/stream", s.handleStream)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads and unmarshals a bounded request body into v.
func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
