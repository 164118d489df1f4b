package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
)

var tracer = otel.Tracer("github.com/agencydesk/dispatch/internal/biz/usecase")

// attributeMargin leaves room for the attribution write after correlation
const attributeMargin = 5 * time.Second

// DispatcherUsecase sends a message and attributes the resulting record.
//
// State machine:
//
//	pending --send ok--> sent --record found, written--> attributed
//	                          --no record / no-op / error--> unattributed
//	pending --send error--> send_failed
//
// Once the send succeeds the message is delivered and every later state
// only describes bookkeeping quality.
type DispatcherUsecase struct {
	providerRepo repo.ProviderRepo
	correlator   *CorrelatorUsecase
	attributor   *AttributorUsecase
	validate     *validator.Validate
	log          *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewDispatcherUsecase creates a new dispatcher usecase
func NewDispatcherUsecase(
	providerRepo repo.ProviderRepo,
	correlator *CorrelatorUsecase,
	attributor *AttributorUsecase,
	log *slog.Logger,
) *DispatcherUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &DispatcherUsecase{
		providerRepo: providerRepo,
		correlator:   correlator,
		attributor:   attributor,
		validate:     validator.New(),
		log:          log.With("component", "dispatcher"),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Dispatch runs one send-then-attribute pass. The provider is called at most once.
func (uc *DispatcherUsecase) Dispatch(ctx context.Context, req *domain.SendRequest) domain.AttributionResult {
	dispatchID := uc.newID()
	ctx, span := tracer.Start(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("dispatch_id", dispatchID),
		attribute.String("conversation_id", req.ConversationID),
	)

	log := logger.With(ctx, uc.log).With(
		"dispatch_id", dispatchID,
		"conversation_id", req.ConversationID,
		"member_id", req.Sender.MemberID,
	)
	dispatchedAt := uc.now()

	finish := func(from domain.State, result domain.AttributionResult) domain.AttributionResult {
		result.DispatchID = dispatchID
		result.DispatchedAt = dispatchedAt
		uc.transition(ctx, log, from, result)
		if result.Outcome == domain.OutcomeSendFailed {
			span.SetStatus(codes.Error, result.Reason)
		}
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		return result
	}

	if err := uc.validate.Struct(req); err != nil {
		return finish(domain.StatePending, domain.SendFailed(fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)))
	}

	receipt, err := uc.providerRepo.Send(ctx, req)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderRejected) {
			err = &domain.ProviderError{Err: err}
		}
		span.RecordError(err)
		return finish(domain.StatePending, domain.SendFailed(err))
	}
	if receipt == nil {
		receipt = &domain.ProviderReceipt{}
	}

	uc.transition(ctx, log, domain.StatePending, domain.AttributionResult{
		State:             domain.StateSent,
		ProviderMessageID: receipt.ProviderMessageID,
	})

	sent := func(result domain.AttributionResult, correlation *Correlation) domain.AttributionResult {
		result.ProviderMessageID = receipt.ProviderMessageID
		if correlation != nil {
			result.Path = correlation.Path
			result.PollAttempts = correlation.Attempts
		}
		return finish(domain.StateSent, result)
	}

	// The message is out; caller cancellation must not skip bookkeeping
	bookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.correlator.Budget()+attributeMargin)
	defer cancel()

	correlation, err := uc.correlator.Correlate(bookCtx, receipt, req, dispatchedAt)
	if err != nil {
		result := domain.SentUnattributed("correlation failed")
		result.Warning = err.Error()
		result.Err = err
		return sent(result, correlation)
	}
	if correlation.Record == nil {
		return sent(domain.SentUnattributed("no matching record"), correlation)
	}

	return sent(uc.attributor.Attribute(bookCtx, correlation.Record, req.Sender), correlation)
}

// transition emits one structured event per state change
func (uc *DispatcherUsecase) transition(ctx context.Context, log *slog.Logger, from domain.State, result domain.AttributionResult) {
	level := slog.LevelInfo
	switch {
	case result.State == domain.StateSendFailed:
		level = slog.LevelError
	case result.State == domain.StateUnattributed, result.Warning != "":
		level = slog.LevelWarn
	}

	attrs := []any{"from", string(from), "to", string(result.State), "terminal", result.State.IsTerminal()}
	if result.ProviderMessageID != "" {
		attrs = append(attrs, "provider_message_id", result.ProviderMessageID)
	}
	if result.RecordID != "" {
		attrs = append(attrs, "record_id", result.RecordID)
	}
	if result.Path != "" {
		attrs = append(attrs, "path", string(result.Path))
	}
	if result.Reason != "" {
		attrs = append(attrs, "reason", result.Reason)
	}
	if result.Warning != "" {
		attrs = append(attrs, "warning", result.Warning)
	}

	log.Log(ctx, level, "dispatch state", attrs...)
}
