package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sundayezeilo/shortlink/internal/cache"
	"github.com/sundayezeilo/shortlink/internal/config"
	"github.com/sundayezeilo/shortlink/internal/httpx"
	"github.com/sundayezeilo/shortlink/internal/ratelimit"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the components the server routes to or reports on.
type Dependencies struct {
	Handler *shortener.Handler
	Store   Pinger             // database health
	Cache   cache.Backend      // nil when caching is disabled
	Tracker *shortener.Tracker // nil when click tracking is disabled
	Limiter ratelimit.Limiter  // nil disables rate limiting
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config *config.Config
	logger *slog.Logger
	deps   Dependencies
	server *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: cfg,
		logger: logger,
		deps:   deps,
	}
}

// Handler returns the fully wired HTTP handler: routes plus middleware.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start starts the HTTP server and blocks until a shutdown signal arrives or
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	// Listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		s.logger.Info("received shutdown signal", "signal", sig.String())

	case <-ctx.Done():
		s.logger.Info("context cancelled, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// setupRoutes configures all HTTP routes. Health is never rate limited.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	h := s.deps.Handler

	mux.HandleFunc("GET /x/health", s.healthCheckHandler)

	mux.Handle("POST /api/links", s.limited(h.CreateLink))
	mux.Handle("GET /api/links", s.limited(h.ListLinks))
	mux.Handle("GET /api/links/{code}", s.limited(h.GetLink))
	mux.Handle("GET /api/links/{code}/stats", s.limited(h.LinkStats))
	mux.Handle("DELETE /api/links/{code}", s.limited(h.DeactivateLink))
	mux.Handle("GET /{code}", s.limited(h.ResolveLink))

	return mux
}

func (s *Server) limited(fn http.HandlerFunc) http.Handler {
	if s.deps.Limiter == nil {
		return fn
	}
	return httpx.RateLimit(s.deps.Limiter, s.logger)(fn)
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger), // Outermost: catch panics
		httpx.RequestID,          // Add request ID
		httpx.Logger(s.logger),   // Log requests
		httpx.CORS(nil),          // CORS headers (allow all in dev)
	)(handler)
}

type healthResponse struct {
	Status  string                  `json:"status"`
	Service string                  `json:"service"`
	Version string                  `json:"version"`
	Checks  map[string]string       `json:"checks"`
	Cache   *cache.Stats            `json:"cache,omitempty"`
	Tracker *shortener.TrackerStats `json:"tracker,omitempty"`
}

// healthCheckHandler pings the store and cache. A store failure is fatal
// (503); a cache failure only degrades the service.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:  "ok",
		Service: s.config.Observability.ServiceName,
		Version: s.config.Observability.ServiceVersion,
		Checks:  map[string]string{},
	}
	status := http.StatusOK

	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(ctx); err != nil {
			s.logger.ErrorContext(ctx, "health: store unreachable", "error", err.Error())
			resp.Checks["store"] = "unreachable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["store"] = "ok"
		}
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "health: cache unreachable", "error", err.Error())
			resp.Checks["cache"] = "unreachable"
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		} else {
			resp.Checks["cache"] = "ok"
		}
		stats := s.deps.Cache.Stats()
		resp.Cache = &stats
	}

	if s.deps.Tracker != nil {
		stats := s.deps.Tracker.Stats()
		resp.Tracker = &stats
	}

	httpx.WriteJSON(w, status, resp)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
