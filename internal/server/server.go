package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tailcast/internal/engine"
	"tailcast/internal/hub"
	"tailcast/internal/logging"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultCatchupLines = 10
	maxLinesPerRequest  = 10000
)

// Backend is the engine surface the server depends on.
type Backend interface {
	Register(sub hub.Subscriber) error
	Unregister(sub hub.Subscriber)
	CatchUp(n int) ([]string, error)
	Status() engine.Status
}

// Options configures the HTTP surface. CatchupLines is the default n for
// /api/lines; zero is honored and a negative value selects the default.
type Options struct {
	Bind         string
	Token        string
	SendBuffer   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	CatchupLines int
	Logger       *slog.Logger
}

// Server serves subscribers and status endpoints for one Backend.
type Server struct {
	backend Backend
	opts    Options
	logger  *slog.Logger
	router  chi.Router

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// New builds the router. It does not listen until Start.
func New(backend Backend, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.CatchupLines < 0 {
		opts.CatchupLines = defaultCatchupLines
	}
	s := &Server{
		backend: backend,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(opts.Token))
		r.Get("/ws", s.handleWebSocket)
		r.Get("/api/lines", s.handleLines)
		r.Get("/api/status", s.handleStatus)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background until
// ctx ends or Stop is called. A listen failure is returned.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Bind, err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.http = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down. Upgraded WebSocket connections are not
// tracked by http.Server; they end when the engine closes its subscribers.
func (s *Server) Stop() {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", logging.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Status())
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	n := s.opts.CatchupLines
	if raw := strings.TrimSpace(r.URL.Query().Get("n")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = min(parsed, maxLinesPerRequest)
	}
	lines, err := s.backend.CatchUp(n)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, hub.ErrorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, hub.LinesMessage(lines))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", ww.Status()),
				logging.Int("bytes", ww.BytesWritten()),
				logging.Duration("elapsed", time.Since(start)),
				logging.String("remote", r.RemoteAddr),
				logging.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
