package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sundayezeilo/bookmarker/internal/auth"
	"github.com/sundayezeilo/bookmarker/internal/bookmark"
	"github.com/sundayezeilo/bookmarker/internal/config"
	"github.com/sundayezeilo/bookmarker/internal/metrics"
	"github.com/sundayezeilo/bookmarker/internal/pgstore"
	"github.com/sundayezeilo/bookmarker/internal/server"
	"github.com/sundayezeilo/bookmarker/internal/telemetry"
	"github.com/sundayezeilo/bookmarker/internal/user"
	"github.com/sundayezeilo/bookmarker/sluggen"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	DBPool  *pgxpool.Pool
	Server  *server.Server
	Metrics *metrics.Metrics

	shutdownTracing telemetry.ShutdownFunc
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	if err := loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Observability, cfg.App.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	dbPool, err := pgstore.Connect(ctx, cfg.Database, pgstore.Options{Tracing: cfg.Observability.Enabled}, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := pgstore.Migrate(ctx, dbPool); err != nil {
			dbPool.Close()
			_ = shutdownTracing(ctx)
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database schema applied")
	}

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New()
		m.RegisterPool(dbPool.Stat)
	}

	srv := server.New(cfg, logger, BuildHandlers(cfg, logger, dbPool, m))

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	return &App{
		Config:          cfg,
		Logger:          logger,
		DBPool:          dbPool,
		Server:          srv,
		Metrics:         m,
		shutdownTracing: shutdownTracing,
	}, nil
}

// BuildHandlers builds repositories, services and handlers on top of db.
func BuildHandlers(cfg *config.Config, logger *slog.Logger, db pgstore.DBTX, m *metrics.Metrics) server.Handlers {
	users := user.NewRepository(db, nil)
	authSvc := auth.NewService(users, auth.NewTokenIssuer(cfg.Auth), &auth.ServiceConfig{
		BcryptCost: cfg.Auth.BcryptCost,
	})

	bookmarks := bookmark.NewService(bookmark.NewRepository(db), &bookmark.ServiceConfig{
		Encoder:    sluggen.NewBase62(sluggen.DefaultMinLength),
		MaxPerPage: cfg.Pagination.MaxPerPage,
	})

	var recorder bookmark.Recorder
	if m != nil {
		recorder = m
	}

	return server.Handlers{
		Auth: auth.NewHandler(auth.HandlerConfig{
			Service: authSvc,
			Logger:  logger,
		}),
		Bookmarks: bookmark.NewHandler(bookmark.HandlerConfig{
			Service:        bookmarks,
			Logger:         logger,
			Metrics:        recorder,
			DefaultPerPage: cfg.Pagination.DefaultPerPage,
		}),
		RequireUser: auth.RequireUser(authSvc, logger),
		Metrics:     m,
	}
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	var errs []error
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return errors.Join(errs...)
}

// loadEnv loads .env file only in non-production environments.
func loadEnv() error {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found.")
		}
	}
	return nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
