package repo

import (
	"context"
	"time"

	"github.com/agencydesk/dispatch/internal/biz/domain"
)

// RecordRepo is the message record repository interface
// Responsible for message record persistence (SQLite or Postgres)
type RecordRepo interface {
	// FindByProviderID gets a record by provider message ID.
	// Returns domain.ErrRecordNotFound when no row carries the ID yet.
	FindByProviderID(ctx context.Context, providerMessageID string) (*domain.MessageRecord, error)

	// FindRecentByContent lists records in a conversation with the given body
	// and direction created at or after since, newest first
	FindRecentByContent(ctx context.Context, conversationID, body string, direction domain.Direction, since time.Time) ([]domain.MessageRecord, error)

	// AttributeIfUnset writes the identity only if the record has none.
	// Returns false without error when the record is already attributed.
	AttributeIfUnset(ctx context.Context, recordID string, identity domain.Identity) (bool, error)

	// InsertFromWebhook inserts a record as delivered by provider webhooks.
	// Returns false when a row with the same provider message ID exists.
	InsertFromWebhook(ctx context.Context, record *domain.MessageRecord) (bool, error)

	// Close releases the underlying connection
	Close() error
}
