package data

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agencydesk/dispatch/internal/biz/domain"
)

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("DISPATCH_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set DISPATCH_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func TestPostgresIntegrationRecordRepo(t *testing.T) {
	dsn := postgresIntegrationDSN(t)
	ctx := context.Background()

	r, err := NewPostgresRecordRepo(ctx, dsn)
	if err != nil {
		t.Fatalf("new postgres record repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	// Unique ids keep runs against a shared database independent
	conv := "conv-" + uuid.NewString()
	providerID := "pm-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)

	if _, err := r.FindByProviderID(ctx, providerID); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	records := []domain.MessageRecord{
		{ID: uuid.NewString(), ConversationID: conv, ProviderMessageID: providerID, Body: "hi", Direction: domain.DirectionOutbound, CreatedAt: base},
		{ID: uuid.NewString(), ConversationID: conv, Body: "hi", Direction: domain.DirectionOutbound, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range records {
		inserted, err := r.InsertFromWebhook(ctx, &records[i])
		if err != nil || !inserted {
			t.Fatalf("insert %d: inserted=%v err=%v", i, inserted, err)
		}
	}

	inserted, err := r.InsertFromWebhook(ctx, &domain.MessageRecord{
		ID: uuid.NewString(), ConversationID: conv, ProviderMessageID: providerID,
		Direction: domain.DirectionOutbound, CreatedAt: base,
	})
	if err != nil || inserted {
		t.Fatalf("expected duplicate provider id to be ignored, inserted=%v err=%v", inserted, err)
	}

	found, err := r.FindByProviderID(ctx, providerID)
	if err != nil {
		t.Fatalf("find by provider id: %v", err)
	}
	if found.ID != records[0].ID {
		t.Fatalf("expected %s, got %s", records[0].ID, found.ID)
	}

	recent, err := r.FindRecentByContent(ctx, conv, "hi", domain.DirectionOutbound, base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("find recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != records[1].ID {
		t.Fatalf("expected newest first, got %+v", recent)
	}

	alice := domain.Identity{MemberID: "m-alice", DisplayName: "Alice"}
	if updated, err := r.AttributeIfUnset(ctx, found.ID, alice); err != nil || !updated {
		t.Fatalf("first attribution: updated=%v err=%v", updated, err)
	}
	if updated, err := r.AttributeIfUnset(ctx, found.ID, domain.Identity{MemberID: "m-bob"}); err != nil || updated {
		t.Fatalf("second attribution: updated=%v err=%v", updated, err)
	}

	found, err = r.FindByProviderID(ctx, providerID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if found.Attribution == nil || *found.Attribution != alice {
		t.Fatalf("expected alice attribution, got %+v", found.Attribution)
	}
}
