package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/SebastienMelki/keyportal/internal/observability"
)

// ReadinessChecker reports whether a dependency can serve traffic.
type ReadinessChecker interface {
	HealthCheck(ctx context.Context) error
}

// readinessTimeout bounds all readiness checks for one /ready request.
const readinessTimeout = 3 * time.Second

// Server is the keyportal HTTP server. Modules mount their routes on Mux()
// before Start is called.
type Server struct {
	cfg        Config
	mux        *http.ServeMux
	httpServer *http.Server
	logger     *slog.Logger

	mu     sync.RWMutex
	checks map[string]ReadinessChecker
}

// NewServer creates a Server with /health and /ready mounted and the global
// middleware stack installed. metrics may be nil.
func NewServer(cfg Config, metrics *observability.Metrics, logger *slog.Logger) (*Server, error) {
	if cfg.Addr == "" {
		return nil, ErrAddrRequired
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, ErrInvalidBodyLimit
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RequestsPerSecond <= 0 || cfg.RateLimit.BurstSize <= 0 ||
		cfg.RateLimit.PerClientRPS <= 0 || cfg.RateLimit.PerClientBurst <= 0) {
		return nil, ErrInvalidRateLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		logger: logger.With("component", "http-server"),
		checks: make(map[string]ReadinessChecker),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)

	// HTTPMetrics sits closest to the mux so it sees the matched pattern.
	handler := Chain(s.mux,
		Recovery(logger),
		RequestID,
		ClientAddress(cfg.RateLimit.TrustForwardedFor),
		Logging(logger),
		CORS(cfg.CORS),
		RateLimit(cfg.RateLimit),
		observability.HTTPMetrics(metrics),
	)

	s.httpServer = &http.Server{
		Addr:           cfg.Addr,
		Handler:        handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	return s, nil
}

// Mux returns the ServeMux routes are registered on.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// APIMiddleware returns the middleware for JSON API routes: body size limit,
// per-client rate limit and JSON content type.
func (s *Server) APIMiddleware() []Middleware {
	return []Middleware{
		PerClientRateLimit(s.cfg.RateLimit),
		BodySizeLimit(s.cfg.MaxBodyBytes),
		ContentType,
	}
}

// AddReadinessCheck registers a dependency checked by GET /ready.
func (s *Server) AddReadinessCheck(name string, check ReadinessChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Start listens and serves until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests, up
// to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles GET /health - liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady handles GET /ready - every registered dependency must pass.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]ReadinessChecker, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	s.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	ready := true
	for _, name := range names {
		if err := checks[name].HealthCheck(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": results,
	})
}
