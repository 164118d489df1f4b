package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
)

func TestAttribute_Idempotent(t *testing.T) {
	record := domain.MessageRecord{
		ID: "rec-1", ConversationID: "conv-1", Body: "hello",
		Direction: domain.DirectionOutbound, CreatedAt: time.Now(),
	}
	recordRepo := newMockRecordRepo(record)
	uc := NewAttributorUsecase(recordRepo, logger.Discard())
	alice := domain.Identity{MemberID: "m-alice", DisplayName: "Alice"}

	first := uc.Attribute(context.Background(), &record, alice)
	if first.Outcome != domain.OutcomeAttributed || first.RecordID != "rec-1" {
		t.Fatalf("Expected first call to attribute rec-1, got %+v", first)
	}

	second := uc.Attribute(context.Background(), &record, alice)
	if second.Outcome != domain.OutcomeSentUnattributed {
		t.Errorf("Expected second call to be a no-op, got %s", second.Outcome)
	}
	if second.Err != nil || second.Warning != "" {
		t.Errorf("Expected no-op not to carry an error, got %+v", second)
	}

	got := recordRepo.attribution("rec-1")
	if got == nil || *got != alice {
		t.Errorf("Expected stored identity to stay %+v, got %+v", alice, got)
	}
}

func TestAttribute_FirstWriterWins(t *testing.T) {
	record := domain.MessageRecord{ID: "rec-1", Direction: domain.DirectionOutbound}
	recordRepo := newMockRecordRepo(record)
	uc := NewAttributorUsecase(recordRepo, logger.Discard())

	alice := domain.Identity{MemberID: "m-alice", DisplayName: "Alice"}
	bob := domain.Identity{MemberID: "m-bob", DisplayName: "Bob"}

	uc.Attribute(context.Background(), &record, alice)
	result := uc.Attribute(context.Background(), &record, bob)

	if result.Outcome != domain.OutcomeSentUnattributed {
		t.Errorf("Expected second writer to be a no-op, got %s", result.Outcome)
	}
	if got := recordRepo.attribution("rec-1"); got == nil || got.MemberID != "m-alice" {
		t.Errorf("Expected alice to keep attribution, got %+v", got)
	}
}

func TestAttribute_WriteFailureIsWarning(t *testing.T) {
	record := domain.MessageRecord{ID: "rec-1", Direction: domain.DirectionOutbound}
	recordRepo := newMockRecordRepo(record)
	recordRepo.attributeErr = errors.New("deadlock detected")
	uc := NewAttributorUsecase(recordRepo, logger.Discard())

	result := uc.Attribute(context.Background(), &record, domain.Identity{MemberID: "m-1"})

	if !result.Delivered() {
		t.Error("Expected write failure to keep the message delivered")
	}
	if !errors.Is(result.Err, domain.ErrAttributionWriteFailed) {
		t.Errorf("Expected ErrAttributionWriteFailed, got %v", result.Err)
	}
	if result.Warning == "" {
		t.Error("Expected a warning on the result")
	}
}
