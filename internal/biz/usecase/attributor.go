package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
)

// AttributorUsecase writes the sending identity onto a correlated record
type AttributorUsecase struct {
	recordRepo repo.RecordRepo
	log        *slog.Logger
}

// NewAttributorUsecase creates a new attributor usecase
func NewAttributorUsecase(recordRepo repo.RecordRepo, log *slog.Logger) *AttributorUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &AttributorUsecase{
		recordRepo: recordRepo,
		log:        log.With("component", "attributor"),
	}
}

// Attribute writes identity onto record if it carries none.
// A record that is already attributed is left untouched and reported as
// unattributed. Store errors become a warning on the result: the message
// was delivered either way.
func (uc *AttributorUsecase) Attribute(ctx context.Context, record *domain.MessageRecord, identity domain.Identity) domain.AttributionResult {
	ctx, span := tracer.Start(ctx, "attribute")
	defer span.End()
	span.SetAttributes(attribute.String("record_id", record.ID))
	log := logger.With(ctx, uc.log)

	updated, err := uc.recordRepo.AttributeIfUnset(ctx, record.ID, identity)
	if err != nil {
		span.RecordError(err)
		werr := fmt.Errorf("%w: record %s: %v", domain.ErrAttributionWriteFailed, record.ID, err)
		log.Warn("attribution write failed", "record_id", record.ID, "error", err)

		result := domain.SentUnattributed("attribution write failed")
		result.RecordID = record.ID
		result.Warning = werr.Error()
		result.Err = werr
		return result
	}

	if !updated {
		log.Info("record already attributed, leaving as is", "record_id", record.ID)
		result := domain.SentUnattributed("record already attributed")
		result.RecordID = record.ID
		return result
	}

	log.Debug("record attributed", "record_id", record.ID, "member", identity.FormatDisplay())
	return domain.Attributed(record.ID)
}
