// Package main implements the entry point for the batchq server,
// which runs the batch task engine and exposes its control API
// over HTTP.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/phrazzld/batchq/internal/api"
	"github.com/phrazzld/batchq/internal/batch"
	"github.com/phrazzld/batchq/internal/config"
	"github.com/phrazzld/batchq/internal/platform/filestore"
	"github.com/phrazzld/batchq/internal/platform/logger"
	"github.com/phrazzld/batchq/internal/platform/postgres"
	"github.com/phrazzld/batchq/internal/service/auth"
	"github.com/phrazzld/batchq/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"max_concurrent", cfg.Engine.MaxConcurrent,
		"save_state", cfg.Engine.SaveState,
		"auth_enabled", cfg.Auth.JWTSecret != "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, closeStore, err := newSnapshotStore(cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	processor := batch.New(engineConfig(cfg.Engine), snapshots, appLogger)
	registerBuiltinHandlers(processor)
	appLogger.Info("handlers registered", "task_types", processor.RegisteredTypes())

	if err := processor.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore saved state: %w", err)
	}

	var jwtService auth.JWTService
	if cfg.Auth.JWTSecret != "" {
		jwtService, err = auth.NewJWTService(cfg.Auth)
		if err != nil {
			return fmt.Errorf("failed to initialize auth: %w", err)
		}
	} else {
		appLogger.Warn("no jwt secret configured, control API is unauthenticated")
	}

	router := api.NewRouter(api.NewTaskHandler(processor), jwtService)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLogger.Error("engine stopped with error", "error", err)
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		<-engineDone
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		appLogger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", "error", err)
	}

	// Run returns once in-flight tasks settle, so waiting here gives
	// them a chance to finish and be snapshotted.
	<-engineDone
	appLogger.Info("server stopped")
	return nil
}

// newSnapshotStore selects the persistence backend. A configured
// database URL gets PostgreSQL with migrations applied; otherwise the
// JSON file store is used. With persistence disabled, no store is
// wired at all.
func newSnapshotStore(cfg *config.Config, logger *slog.Logger) (store.SnapshotStore, func(), error) {
	noop := func() {}

	if !cfg.Engine.SaveState {
		logger.Info("state persistence disabled")
		return nil, noop, nil
	}

	if cfg.Database.URL != "" {
		db, err := sql.Open("pgx", cfg.Database.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to open database connection: %w", err)
		}
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.Migrate(db); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("failed to run migrations: %w", err)
		}

		logger.Info("using postgres snapshot store")
		return postgres.NewSnapshotStore(db, logger), func() { _ = db.Close() }, nil
	}

	logger.Info("using file snapshot store", "path", cfg.Engine.StateFile)
	return filestore.New(cfg.Engine.StateFile), noop, nil
}

// engineConfig converts the loaded configuration into engine settings.
func engineConfig(cfg config.EngineConfig) batch.Config {
	return batch.Config{
		MaxConcurrent: cfg.MaxConcurrent,
		MaxRetries:    cfg.MaxRetries,
		RetryDelay:    time.Duration(cfg.RetryDelaySeconds * float64(time.Second)),
		PollInterval:  time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		TaskTimeout:   time.Duration(cfg.TaskTimeoutSeconds * float64(time.Second)),
		SaveState:     cfg.SaveState,
	}
}

// registerBuiltinHandlers wires the handlers this binary ships with.
// Deployments embedding the engine as a library register their own.
func registerBuiltinHandlers(p *batch.Processor) {
	// echo returns its payload unchanged. Useful for smoke tests.
	p.Register("echo", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return payload, nil
	})

	// sleep blocks for duration_ms, respecting cancellation.
	p.Register("sleep", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		ms, _ := payload["duration_ms"].(float64)
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return map[string]any{"slept_ms": ms}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
