package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/usecase"
	"github.com/agencydesk/dispatch/internal/conf"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
)

func newTestApp(t *testing.T, providerURL string) *App {
	t.Helper()
	cfg := &conf.Config{
		Store: conf.StoreConfig{DBPath: filepath.Join(t.TempDir(), "dispatch.db")},
		Provider: conf.ProviderConfig{
			Kind:           conf.ProviderHTTP,
			BaseURL:        providerURL,
			TimeoutSeconds: 5,
			MaxAttachments: 3,
		},
		Correlate: conf.CorrelateConfig{
			MaxAttempts:    3,
			PollDelay:      10 * time.Millisecond,
			PollTimeout:    time.Second,
			FallbackWindow: time.Minute,
		},
	}

	app, err := NewApp(context.Background(), cfg, logger.Discard())
	if err != nil {
		t.Fatalf("Failed to create app: %v", err)
	}
	t.Cleanup(func() { app.Close(context.Background()) })
	return app
}

func TestApp_DispatchAttributesIngestedRecord(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message_handle":"pm_1"}`))
	}))
	defer provider.Close()

	app := newTestApp(t, provider.URL)
	ctx := context.Background()

	// The webhook for the message lands before correlation polls
	if _, _, err := app.Ingest.Ingest(ctx, &usecase.IngestRequest{
		ConversationID:    "conv-1",
		ProviderMessageID: "pm_1",
		Body:              "hello",
		Direction:         domain.DirectionOutbound,
	}); err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	result := app.Dispatch.Dispatch(ctx, &domain.SendRequest{
		ConversationID: "conv-1",
		Body:           "hello",
		Sender:         domain.Identity{MemberID: "m-alice", DisplayName: "Alice"},
	})

	if result.Outcome != domain.OutcomeAttributed || result.Path != domain.PathDirect {
		t.Fatalf("Expected direct attribution, got %+v", result)
	}

	record, err := app.Repos.Record.FindByProviderID(ctx, "pm_1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record.Attribution == nil || record.Attribution.MemberID != "m-alice" {
		t.Errorf("Expected alice attribution, got %+v", record.Attribution)
	}
}

func TestApp_ProviderRejectionLeavesStoreUntouched(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid number"}`, http.StatusUnprocessableEntity)
	}))
	defer provider.Close()

	app := newTestApp(t, provider.URL)
	result := app.Dispatch.Dispatch(context.Background(), &domain.SendRequest{
		ConversationID: "conv-1",
		Body:           "hello",
		Sender:         domain.Identity{MemberID: "m-alice"},
	})

	if result.Outcome != domain.OutcomeSendFailed {
		t.Fatalf("Expected send_failed, got %+v", result)
	}
	records, err := app.Repos.Record.FindRecentByContent(context.Background(), "conv-1", "hello", domain.DirectionOutbound, time.Time{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}
