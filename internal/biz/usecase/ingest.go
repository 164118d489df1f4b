package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"
)

// IngestRequest is one message event as delivered by the provider webhook
type IngestRequest struct {
	ConversationID    string           `json:"conversation_id" validate:"required"`
	ProviderMessageID string           `json:"provider_message_id"`
	Body              string           `json:"body"`
	Direction         domain.Direction `json:"direction" validate:"required,oneof=outbound inbound"`
	CreatedAt         time.Time        `json:"created_at"`
}

// IngestUsecase writes message records the way the provider webhook does.
// It never writes attribution.
type IngestUsecase struct {
	recordRepo repo.RecordRepo
	validate   *validator.Validate
	log        *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewIngestUsecase creates a new ingest usecase
func NewIngestUsecase(recordRepo repo.RecordRepo, log *slog.Logger) *IngestUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &IngestUsecase{
		recordRepo: recordRepo,
		validate:   validator.New(),
		log:        log.With("component", "ingest"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Ingest stores the event as a new record. Replays of a known provider
// message id are ignored and reported with inserted=false.
func (uc *IngestUsecase) Ingest(ctx context.Context, req *IngestRequest) (*domain.MessageRecord, bool, error) {
	if err := uc.validate.Struct(req); err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	record := &domain.MessageRecord{
		ID:                uc.newID(),
		ConversationID:    req.ConversationID,
		ProviderMessageID: req.ProviderMessageID,
		Body:              req.Body,
		Direction:         req.Direction,
		CreatedAt:         req.CreatedAt,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = uc.now()
	}

	inserted, err := uc.recordRepo.InsertFromWebhook(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert record: %w", err)
	}

	uc.log.DebugContext(ctx, "record ingested",
		"record_id", record.ID,
		"conversation_id", record.ConversationID,
		"provider_message_id", record.ProviderMessageID,
		"inserted", inserted,
	)
	return record, inserted, nil
}
