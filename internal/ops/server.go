// Package ops serves the metrics and health endpoints of the phonemizer service.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/phonemizer-service/internal/phonemizer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout    = 10 * time.Second
	readHeaderTimeout  = 10 * time.Second
	healthCheckTimeout = 5 * time.Second
)

// Health statuses.
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthChecker probes the phonemization backend.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// StatsSource exposes the manager state.
type StatsSource interface {
	Stats() phonemizer.Stats
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status     string            `json:"status"`
	Message    string            `json:"message,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Phonemizer *phonemizer.Stats `json:"phonemizer,omitempty"`
}

// Server wraps the chi router and the probed dependencies.
type Server struct {
	router    *chi.Mux
	addr      string
	checker   HealthChecker
	stats     StatsSource
	startedAt time.Time
	warmup    time.Duration
	log       *logger.Logger
}

// NewServer creates the ops server. During the warm-up period /healthz
// reports healthy without probing the backend, unless the manager is
// shutting down.
func NewServer(addr string, checker HealthChecker, stats StatsSource, warmup time.Duration, log *logger.Logger) *Server {
	srv := &Server{
		router:    chi.NewRouter(),
		addr:      addr,
		checker:   checker,
		stats:     stats,
		startedAt: time.Now(),
		warmup:    warmup,
		log:       log,
	}

	srv.router.Use(middleware.Recoverer)
	srv.router.Get("/healthz", srv.handleHealthz)
	srv.router.Handle("/metrics", promhttp.Handler())

	return srv
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run serves until ctx is done, then shuts the HTTP server down.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("Ops server listening on %s", s.addr)

		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down ops server: %w", err)
	}

	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.Stats()
	if stats.ShuttingDown {
		s.writeHealth(w, http.StatusServiceUnavailable,
			HealthResponse{Status: statusUnhealthy, Reason: "shutting down", Phonemizer: &stats})

		return
	}

	if time.Since(s.startedAt) < s.warmup {
		s.writeHealth(w, http.StatusOK, HealthResponse{Status: statusHealthy, Message: "warming up"})

		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	err := s.checker.Check(ctx)
	if err != nil {
		s.log.Error("Health check failed: %v", err)
		s.writeHealth(w, http.StatusServiceUnavailable,
			HealthResponse{Status: statusUnhealthy, Reason: "espeak not working", Phonemizer: &stats})

		return
	}

	s.writeHealth(w, http.StatusOK, HealthResponse{Status: statusHealthy, Phonemizer: &stats})
}

func (s *Server) writeHealth(w http.ResponseWriter, status int, body HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		s.log.Error("Failed to encode health response: %v", err)
	}
}
