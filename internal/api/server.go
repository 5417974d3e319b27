package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"bundlewatch/internal/logging"
	"bundlewatch/internal/remote"
	"bundlewatch/internal/watcher"
)

// Controller is the watcher surface the server exposes.
type Controller interface {
	State() watcher.State
	Stats() watcher.Stats
	Tick(ctx context.Context) error
	Dismiss(ctx context.Context) error
	Reload(ctx context.Context) error
}

// Options configures a Server. Events and Metrics serve /api/events and
// /metrics; a nil handler disables its route. Subscribers reports connected
// event subscribers for status.
type Options struct {
	Bind          string
	Token         string
	RatePerSecond float64
	Burst         int
	Events        http.Handler
	Metrics       http.Handler
	Subscribers   func() int
	Logger        *slog.Logger
}

// Server is the HTTP control API.
type Server struct {
	bind        string
	controller  Controller
	subscribers func() int
	logger      *slog.Logger

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// NewServer builds the router for controller.
func NewServer(controller Controller, opts Options) *Server {
	s := &Server{
		bind:        strings.TrimSpace(opts.Bind),
		controller:  controller,
		subscribers: opts.Subscribers,
		logger:      logging.NewComponentLogger(opts.Logger, "api"),
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/status", s.handleStatus)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(opts.Token))
		r.Use(rateLimitMiddleware(limiter))
		r.Post("/api/check", s.handleCheck)
		r.Post("/api/ignore", s.handleIgnore)
		r.Post("/api/reload", s.handleReload)
	})
	if opts.Events != nil {
		r.Handle("/api/events", opts.Events)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.handler = r
	s.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Start listens on the bind address and serves until ctx ends or Stop.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) status() Status {
	status := FromWatcher(s.controller.State(), s.controller.Stats())
	if s.subscribers != nil {
		status.Subscribers = s.subscribers()
	}
	status.PID = os.Getpid()
	return status
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Tick(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleIgnore(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Dismiss(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.Reload(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("duration", time.Since(start)),
		)
	})
}

func statusFor(err error) int {
	var fetchErr *remote.FetchError
	if errors.As(err, &fetchErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
