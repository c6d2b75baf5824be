package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sundayezeilo/bookmarker/internal/auth"
	"github.com/sundayezeilo/bookmarker/internal/bookmark"
	"github.com/sundayezeilo/bookmarker/internal/config"
	"github.com/sundayezeilo/bookmarker/internal/httpx"
	"github.com/sundayezeilo/bookmarker/internal/metrics"
)

// Handlers groups the HTTP handlers the server routes to.
type Handlers struct {
	Auth      *auth.Handler
	Bookmarks *bookmark.Handler
	// RequireUser guards the bookmark routes.
	RequireUser httpx.Middleware
	// Metrics is optional; nil disables /metrics and request metrics.
	Metrics *metrics.Metrics
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	handlers Handlers
	server   *http.Server
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, handlers Handlers) *Server {
	return &Server{
		config:   cfg,
		logger:   logger,
		handlers: handlers,
	}
}

// Handler returns the fully wired HTTP handler: routes plus middleware.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.applyMiddleware(s.setupRoutes())
	if s.config.Observability.Enabled {
		handler = otelhttp.NewHandler(handler, s.config.Observability.ServiceName)
	}
	return handler
}

// Start starts the HTTP server and blocks until ctx is cancelled.
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
			"api_prefix", s.config.Server.APIPrefix,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("received shutdown signal", "cause", context.Cause(ctx).Error())
		return s.gracefulStop()
	}
}

func (s *Server) gracefulStop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		// Force close if graceful shutdown fails
		if closeErr := s.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close server: %w", closeErr)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	s.logger.Info("server stopped gracefully")
	return nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	api := s.config.Server.APIPrefix

	// Service endpoints live under /x/ so they never shadow a short code.
	mux.HandleFunc("GET /x/health", s.healthCheckHandler)
	if s.handlers.Metrics != nil && s.config.Observability.MetricsEnabled {
		mux.Handle("GET /x/metrics", s.handlers.Metrics.Handler())
	}

	a := s.handlers.Auth
	mux.HandleFunc("POST "+api+"/auth/register", a.Register)
	mux.HandleFunc("POST "+api+"/auth/login", a.Login)
	mux.HandleFunc("GET "+api+"/auth/me", a.Me)
	mux.HandleFunc("GET "+api+"/auth/token/refresh", a.Refresh)

	b := s.handlers.Bookmarks
	protect := func(h http.HandlerFunc) http.Handler { return s.handlers.RequireUser(h) }

	// The collection answers with and without the trailing slash.
	for _, collection := range []string{api + "/bookmarks/{$}", api + "/bookmarks"} {
		mux.Handle("POST "+collection, protect(b.Create))
		mux.Handle("GET "+collection, protect(b.List))
	}
	mux.Handle("GET "+api+"/bookmarks/stats", protect(b.Stats))
	mux.Handle("GET "+api+"/bookmarks/{id}", protect(b.Get))
	mux.Handle("PATCH "+api+"/bookmarks/{id}", protect(b.Update))
	mux.Handle("DELETE "+api+"/bookmarks/{id}", protect(b.Delete))

	mux.HandleFunc("GET /{short_url}", b.Redirect)

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger),                   // Outermost: catch panics
		httpx.RequestID,                            // Add request ID
		httpx.Logger(s.logger),                     // Log requests
		httpx.CORS(s.config.Server.AllowedOrigins), // CORS headers (nil allows all)
		s.handlers.Metrics.Middleware,              // Innermost: needs the mux's r.Pattern
	)(handler)
}

// healthCheckHandler handles health check requests.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
	})
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
