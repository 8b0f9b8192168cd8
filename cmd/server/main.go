package main

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

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/pawtrail/pushgate/internal/adapters/sqlite"
	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/bus"
	"github.com/pawtrail/pushgate/internal/config"
	"github.com/pawtrail/pushgate/internal/coordinator"
	"github.com/pawtrail/pushgate/internal/db"
	"github.com/pawtrail/pushgate/internal/ingress"
	"github.com/pawtrail/pushgate/internal/observability"
	"github.com/pawtrail/pushgate/internal/server"
	"github.com/pawtrail/pushgate/internal/server/routes"
)

func main() {
	log := slog.New(observability.WrapSlogHandler(
		slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupOpenTelemetry(ctx, log, observability.OpenTelemetryConfig(cfg.Observability))
	if err != nil {
		slog.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Error("Failed to flush traces", "error", err)
		}
	}()

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	registry := sqlite.NewRegistry(database)
	engine := sqlite.NewTrackStore(database)

	var coord ports.Coordinator = coordinator.Nop{}
	if cfg.Coordinator.Endpoint != "" {
		publisher, err := coordinator.NewPublisher(cfg.Coordinator.Endpoint, log)
		if err != nil {
			slog.Error("Failed to set up refresh publisher", "error", err)
			os.Exit(1)
		}
		coord = publisher
	} else if !cfg.IsLocalDevelopment() {
		slog.Warn("PUSHGATE_COORDINATOR_ENDPOINT not set, refresh events are dropped")
	}

	router := ingress.NewRouter(registry, engine, coord, ingress.NewMemoryRuntime(), cfg.Limits(), log)

	srv := server.New(log)
	srv.RegisterRouter(routes.NewPushRoutes(registry, router, log))
	srv.RegisterRouter(routes.NewDiagnosticsRoutes(router))

	errCh := make(chan error, 2)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		receiver := bus.NewReceiver(registry, router, log)
		if err := receiver.Listen(ctx, cfg.Bus.Port, cfg.Bus.Path); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("bus receiver: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		slog.Error("Component failed", "error", err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		slog.Error("Closing server", "error", err)
	}
}
