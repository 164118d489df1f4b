package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
)

// CorrelatorConfig controls direct polling and the content fallback
type CorrelatorConfig struct {
	MaxAttempts    int           // Direct lookups before giving up (minimum 1)
	PollDelay      time.Duration // Fixed delay between direct lookups
	PollTimeout    time.Duration // Upper bound on the whole polling loop, 0 disables
	FallbackWindow time.Duration // How far before dispatch the content fallback looks
}

// DefaultCorrelatorConfig is tuned for webhooks that land within a couple of seconds
var DefaultCorrelatorConfig = CorrelatorConfig{
	MaxAttempts:    3,
	PollDelay:      time.Second,
	PollTimeout:    10 * time.Second,
	FallbackWindow: 2 * time.Minute,
}

// Correlation is the outcome of resolving a receipt to a record
type Correlation struct {
	Record     *domain.MessageRecord // Nil when nothing matched
	Path       domain.CorrelationPath
	Attempts   int // Direct lookups performed
	Candidates int // Fallback candidates considered
}

// Ambiguous reports whether the fallback had to choose between several rows
func (c *Correlation) Ambiguous() bool {
	return c.Path == domain.PathFallback && c.Candidates > 1
}

// CorrelatorUsecase matches a provider receipt to the webhook-inserted record
type CorrelatorUsecase struct {
	recordRepo repo.RecordRepo
	config     CorrelatorConfig
	log        *slog.Logger
}

// NewCorrelatorUsecase creates a new correlator usecase
func NewCorrelatorUsecase(recordRepo repo.RecordRepo, config CorrelatorConfig, log *slog.Logger) *CorrelatorUsecase {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &CorrelatorUsecase{
		recordRepo: recordRepo,
		config:     config,
		log:        log.With("component", "correlator"),
	}
}

// Correlate resolves the receipt to exactly one record.
// Direct lookup by provider ID always runs first; the content fallback only
// runs once the direct budget is spent. Not finding a record is not an error.
func (uc *CorrelatorUsecase) Correlate(ctx context.Context, receipt *domain.ProviderReceipt, req *domain.SendRequest, dispatchedAt time.Time) (*Correlation, error) {
	ctx, span := tracer.Start(ctx, "correlate")
	defer span.End()
	log := logger.With(ctx, uc.log)

	result := &Correlation{Path: domain.PathNone}

	if receipt.HasProviderID() {
		span.SetAttributes(attribute.String("provider_message_id", receipt.ProviderMessageID))

		record, attempts, err := uc.pollDirect(ctx, receipt.ProviderMessageID)
		result.Attempts = attempts
		switch {
		case err == nil:
			result.Record = record
			result.Path = domain.PathDirect
			log.Debug("direct correlation", "record_id", record.ID, "attempts", attempts)
			return result, nil
		case errors.Is(err, domain.ErrCorrelationTimeout):
			log.Debug("direct correlation exhausted, falling back",
				"provider_message_id", receipt.ProviderMessageID, "attempts", attempts)
		default:
			span.RecordError(err)
			return result, err
		}
	} else {
		log.Debug("receipt has no provider id, falling back")
	}

	since := dispatchedAt.Add(-uc.config.FallbackWindow)
	candidates, err := uc.recordRepo.FindRecentByContent(ctx, req.ConversationID, req.Body, domain.DirectionOutbound, since)
	if err != nil {
		span.RecordError(err)
		return result, fmt.Errorf("find recent by content: %w", err)
	}

	candidates = excludeOtherSends(candidates, receipt)
	result.Candidates = len(candidates)
	span.SetAttributes(attribute.Int("fallback_candidates", len(candidates)))
	if len(candidates) == 0 {
		return result, nil
	}

	newest := newestRecord(candidates)
	result.Record = &newest
	result.Path = domain.PathFallback

	if result.Ambiguous() {
		log.Warn("fallback matched several records, picked most recent",
			"error", domain.ErrAttributionAmbiguous,
			"conversation_id", req.ConversationID,
			"candidates", len(candidates),
			"record_id", newest.ID)
	}

	return result, nil
}

// Budget bounds one full correlation: the polling loop plus the fallback query
func (uc *CorrelatorUsecase) Budget() time.Duration {
	poll := uc.config.PollTimeout
	if poll <= 0 {
		poll = time.Duration(uc.config.MaxAttempts) * uc.config.PollDelay
	}
	return poll + fallbackQueryMargin
}

const fallbackQueryMargin = 5 * time.Second

// pollDirect looks the provider ID up at a fixed interval.
// Returns domain.ErrCorrelationTimeout when the attempts or PollTimeout run out.
func (uc *CorrelatorUsecase) pollDirect(ctx context.Context, providerMessageID string) (*domain.MessageRecord, int, error) {
	pollCtx := ctx
	if uc.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, uc.config.PollTimeout)
		defer cancel()
	}

	attempts := 0
	operation := func() (*domain.MessageRecord, error) {
		attempts++
		record, err := uc.recordRepo.FindByProviderID(pollCtx, providerMessageID)
		switch {
		case err == nil:
			return record, nil
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, err
		case pollCtx.Err() != nil && ctx.Err() == nil:
			return nil, backoff.Permanent(domain.ErrCorrelationTimeout)
		default:
			return nil, backoff.Permanent(fmt.Errorf("find by provider id: %w", err))
		}
	}

	record, err := backoff.Retry(pollCtx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(uc.config.PollDelay)),
		backoff.WithMaxTries(uint(uc.config.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	switch {
	case err == nil:
		return record, attempts, nil
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrCorrelationTimeout):
		return nil, attempts, domain.ErrCorrelationTimeout
	case ctx.Err() != nil:
		return nil, attempts, fmt.Errorf("poll provider id: %w", ctx.Err())
	case pollCtx.Err() != nil:
		return nil, attempts, domain.ErrCorrelationTimeout
	default:
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		return nil, attempts, err
	}
}

// newestRecord picks the latest CreatedAt; the first one wins a tie
func newestRecord(records []domain.MessageRecord) domain.MessageRecord {
	newest := records[0]
	for _, r := range records[1:] {
		if r.IsAfter(newest.CreatedAt) {
			newest = r
		}
	}
	return newest
}

// excludeOtherSends drops rows that carry a different provider ID than the receipt
func excludeOtherSends(records []domain.MessageRecord, receipt *domain.ProviderReceipt) []domain.MessageRecord {
	if !receipt.HasProviderID() {
		return records
	}
	kept := records[:0:0]
	for _, r := range records {
		if r.ProviderMessageID != "" && r.ProviderMessageID != receipt.ProviderMessageID {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}
