package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agencydesk/dispatch/internal/conf"
	dispatchmcp "github.com/agencydesk/dispatch/internal/mcp"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
	"github.com/agencydesk/dispatch/internal/pkg/tracing"
	"github.com/agencydesk/dispatch/internal/server"
)

var version = "dev"

// MCP server over stdio; all logging goes to stderr.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

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

	shutdownTracing, err := tracing.Setup(ctx, "dispatch-mcp", cfg.OtelEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	app, err := server.NewApp(ctx, cfg, logr)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	srv := dispatchmcp.NewServer(app.Dispatch, version, logr)
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logr.Error("MCP server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Close(shutdownCtx); err != nil {
		logr.Error("app shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logr.Error("tracing shutdown", "error", err)
	}
}
