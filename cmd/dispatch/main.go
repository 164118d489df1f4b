package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agencydesk/dispatch/internal/api"
	"github.com/agencydesk/dispatch/internal/conf"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
	"github.com/agencydesk/dispatch/internal/pkg/tracing"
	"github.com/agencydesk/dispatch/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := conf.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logr := logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "dispatch", cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, logr)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	apiServer := api.NewServer(app.Dispatch, app.Ingest, cfg.HTTP.Addr, logr)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- apiServer.Start()
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			logr.Error("API server error", "error", err)
		}
	}

	// Graceful shutdown: stop intake, drain dispatches, then flush spans
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logr.Error("API server shutdown", "error", err)
	}
	if err := app.Close(shutdownCtx); err != nil {
		logr.Error("app shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logr.Error("tracing shutdown", "error", err)
	}
}
