// Package http exposes the bot's observability endpoints: liveness,
// readiness and runtime stats. The Discord surface stays the primary
// interface; this server is for process supervisors and uptime checks.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/mentor-hub/learning-mentor/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host is the address to bind (default: "0.0.0.0").
	Host string

	// Port is the port to listen on.
	Port int

	// ReadTimeout is the maximum duration for reading a request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum duration for idle connections.
	IdleTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports whether the bot's state store is usable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// StatsProvider exposes runtime counters for the stats endpoint.
type StatsProvider interface {
	Stats() map[string]any
}

// HealthCheckerFunc adapts a function to the HealthChecker interface.
type HealthCheckerFunc func(ctx context.Context) error

// Check implements HealthChecker.
func (f HealthCheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the observability HTTP server.
type Server struct {
	cfg     Config
	checker HealthChecker
	stats   StatsProvider
	log     *logger.Logger

	httpServer *http.Server
	startedAt  time.Time
	version    string
}

// NewServer builds the server. stats may be nil, in which case the stats
// endpoint only reports uptime.
func NewServer(cfg Config, checker HealthChecker, stats StatsProvider, version string, log *logger.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		checker: checker,
		stats:   stats,
		log:     log.With(logger.Component("http")),
		version: version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/statsz", s.handleStatsz)

	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.recoverMiddleware(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Start listens until the server is shut down. It blocks; run it in a
// goroutine.
func (s *Server) Start() error {
	s.startedAt = time.Now()
	s.log.Info("http server listening", logger.F("addr", s.cfg.Address()))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealthz is liveness: the process is up and serving.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReadyz is readiness: the state store answers.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.checker.Check(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleStatsz dumps runtime counters.
func (s *Server) handleStatsz(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	}
	if s.stats != nil {
		for k, v := range s.stats.Stats() {
			body[k] = v
		}
	}
	s.writeJSON(w, http.StatusOK, body)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE AND HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic in http handler",
					logger.F("path", r.URL.Path),
					logger.F("panic", fmt.Sprint(rec)),
					logger.F("stack", string(debug.Stack())))
				s.writeJSON(w, http.StatusInternalServerError, map[string]any{
					"status": "error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("failed to encode response", logger.Err(err))
	}
}
