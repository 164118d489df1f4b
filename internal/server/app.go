package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/agencydesk/dispatch/internal/biz/usecase"
	"github.com/agencydesk/dispatch/internal/conf"
	"github.com/agencydesk/dispatch/internal/data"
	"github.com/agencydesk/dispatch/internal/service"
)

// App holds the wired layers shared by every entry point
type App struct {
	Repos    *data.Repositories
	Dispatch *service.DispatchService
	Ingest   *usecase.IngestUsecase

	log *slog.Logger
}

// NewApp opens the store and provider and wires the usecases
func NewApp(ctx context.Context, cfg *conf.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	repos, err := data.NewRepositories(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	correlatorUC := usecase.NewCorrelatorUsecase(repos.Record, cfg.Correlate.ToCorrelatorConfig(), log)
	attributorUC := usecase.NewAttributorUsecase(repos.Record, log)
	dispatcherUC := usecase.NewDispatcherUsecase(repos.Provider, correlatorUC, attributorUC, log)

	log.Info("dispatch wired",
		"provider", cfg.Provider.Kind,
		"store", storeKind(&cfg.Store),
		"max_attempts", cfg.Correlate.MaxAttempts,
		"poll_delay", cfg.Correlate.PollDelay,
		"poll_timeout", cfg.Correlate.PollTimeout,
		"fallback_window", cfg.Correlate.FallbackWindow,
		"config_file", cfg.ConfigPath,
	)

	return &App{
		Repos:    repos,
		Dispatch: service.NewDispatchService(dispatcherUC, log),
		Ingest:   usecase.NewIngestUsecase(repos.Record, log),
		log:      log,
	}, nil
}

// Close drains in-flight dispatches, then closes the store
func (a *App) Close(ctx context.Context) error {
	return errors.Join(
		a.Dispatch.Shutdown(ctx),
		a.Repos.Record.Close(),
	)
}

func storeKind(cfg *conf.StoreConfig) string {
	if cfg.DatabaseURL != "" {
		return "postgres"
	}
	return "sqlite"
}
