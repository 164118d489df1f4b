package data

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agencydesk/dispatch/internal/biz/repo"
	"github.com/agencydesk/dispatch/internal/conf"
	"github.com/agencydesk/dispatch/internal/infra/feishu"
	"github.com/agencydesk/dispatch/internal/infra/msgapi"
)

// maxContentCandidates bounds the fallback query; only the newest row is used
const maxContentCandidates = 20

// Repositories contains all repositories
type Repositories struct {
	Provider repo.ProviderRepo
	Record   repo.RecordRepo
}

// NewRepositories creates all repositories from configuration
func NewRepositories(ctx context.Context, cfg *conf.Config, log *slog.Logger) (*Repositories, error) {
	recordRepo, err := NewRecordRepo(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}

	providerRepo, err := NewProviderRepo(&cfg.Provider, log)
	if err != nil {
		recordRepo.Close()
		return nil, err
	}

	return &Repositories{
		Provider: providerRepo,
		Record:   recordRepo,
	}, nil
}

// NewRecordRepo opens Postgres when a DSN is configured, SQLite otherwise
func NewRecordRepo(ctx context.Context, cfg *conf.StoreConfig) (repo.RecordRepo, error) {
	if cfg.DatabaseURL != "" {
		return NewPostgresRecordRepo(ctx, cfg.DatabaseURL)
	}
	return NewSQLiteRecordRepo(cfg.DBPath)
}

// NewProviderRepo builds the configured provider adapter
func NewProviderRepo(cfg *conf.ProviderConfig, log *slog.Logger) (repo.ProviderRepo, error) {
	switch cfg.Kind {
	case conf.ProviderHTTP:
		client := msgapi.NewClient(cfg.BaseURL, cfg.APIKey, cfg.APISecret, time.Duration(cfg.TimeoutSeconds)*time.Second)
		return NewHTTPProviderRepo(client, cfg.MaxAttachments), nil
	case conf.ProviderFeishu:
		client := feishu.NewClient(cfg.FeishuAppID, cfg.FeishuAppSecret, cfg.BaseURL, log)
		return NewFeishuProviderRepo(client, cfg.MaxAttachments), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Kind)
	}
}
