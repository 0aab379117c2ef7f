// Package server exposes a kvlog store over HTTP. It owns request and
// response marshaling and the mapping of engine error kinds onto statuses;
// it contains no storage logic.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/arl/statsviz"

	"kvlog"
)

// Options configures the HTTP server.
type Options struct {
	ListenAddress string
	// DebugEnabled mounts the statsviz runtime dashboard under /debug/viz.
	DebugEnabled bool
	// CompactionThreshold is the dead-byte ratio above which /stats flags
	// the store as needing compaction. The server only advises; it never
	// triggers compaction on its own.
	CompactionThreshold float64
}

// Server serves the store's operation set over HTTP.
type Server struct {
	server  *http.Server
	logger  *slog.Logger
	started bool
	mu      sync.Mutex
}

// New creates and configures a server over st.
func New(st kvlog.Store, opts Options, logger *slog.Logger) *Server {
	logger = logger.With("component", "HTTPServer")

	addr := opts.ListenAddress
	if addr == "" {
		addr = ":8080"
	}

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: newHandler(st, opts, logger),
		},
		logger: logger,
	}
}

// Start runs the server. It blocks until Shutdown or a listener failure.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", "address", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	s.logger.Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

func newHandler(st kvlog.Store, opts Options, logger *slog.Logger) http.Handler {
	h := &handlers{store: st, threshold: opts.CompactionThreshold, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /keys", h.listKeys)
	mux.HandleFunc("GET /keys/{key}", h.getKey)
	mux.HandleFunc("PUT /keys/{key}", h.putKey)
	mux.HandleFunc("DELETE /keys/{key}", h.deleteKey)
	mux.HandleFunc("GET /stats", h.stats)
	mux.HandleFunc("POST /compact", h.compact)

	if opts.DebugEnabled {
		_ = statsviz.Register(mux,
			statsviz.Root("/debug/viz"),
			statsviz.SendFrequency(250*time.Millisecond),
		)
	}

	return requestLogger(logger, mux)
}

// requestLogger wraps next with slog access logging.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
