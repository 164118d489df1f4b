package domain

import (
	"encoding/json"
	"time"
)

// DefaultMaxAttachments is the attachment limit most providers document
const DefaultMaxAttachments = 3

// SendRequest is a team member's request to send one message.
// Constructed by the caller and consumed once by the dispatcher.
type SendRequest struct {
	ConversationID string   `json:"conversation_id" validate:"required"`
	Body           string   `json:"body" validate:"required_without=Attachments"`
	Attachments    []string `json:"attachments,omitempty" validate:"omitempty,dive,url"`
	Sender         Identity `json:"sender"`
}

// TruncatedAttachments returns at most max attachments, dropping the excess
func (r *SendRequest) TruncatedAttachments(max int) []string {
	if max <= 0 || len(r.Attachments) <= max {
		return r.Attachments
	}
	return r.Attachments[:max]
}

// ProviderReceipt is the provider's synchronous answer to a send
type ProviderReceipt struct {
	ProviderMessageID string
	Raw               json.RawMessage
}

// HasProviderID reports whether the provider assigned an identifier
func (r *ProviderReceipt) HasProviderID() bool {
	return r != nil && r.ProviderMessageID != ""
}

// State is a dispatcher state
type State string

const (
	StatePending      State = "pending"
	StateSent         State = "sent"
	StateAttributed   State = "attributed"
	StateUnattributed State = "unattributed"
	StateSendFailed   State = "send_failed"
)

// IsTerminal checks if no further transition is possible
func (s State) IsTerminal() bool {
	return s == StateAttributed || s == StateUnattributed || s == StateSendFailed
}

// CorrelationPath records how a record was located
type CorrelationPath string

const (
	PathDirect   CorrelationPath = "direct"
	PathFallback CorrelationPath = "fallback"
	PathNone     CorrelationPath = "none"
)

// Outcome is the kind of AttributionResult
type Outcome string

const (
	OutcomeAttributed       Outcome = "attributed"
	OutcomeSentUnattributed Outcome = "sent_unattributed"
	OutcomeSendFailed       Outcome = "send_failed"
)

// AttributionResult is the outcome of one dispatch
type AttributionResult struct {
	DispatchID        string          `json:"dispatch_id"`
	Outcome           Outcome         `json:"outcome"`
	State             State           `json:"state"`
	RecordID          string          `json:"record_id,omitempty"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	Path              CorrelationPath `json:"path,omitempty"`
	PollAttempts      int             `json:"poll_attempts,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	Warning           string          `json:"warning,omitempty"`
	Err               error           `json:"-"`
	DispatchedAt      time.Time       `json:"dispatched_at"`
}

// Delivered reports whether the message reached the provider.
// Both attributed and unattributed results count as delivered.
func (r *AttributionResult) Delivered() bool {
	return r.Outcome == OutcomeAttributed || r.Outcome == OutcomeSentUnattributed
}

// Attributed builds a result for a record that now carries the sender identity
func Attributed(recordID string) AttributionResult {
	return AttributionResult{Outcome: OutcomeAttributed, State: StateAttributed, RecordID: recordID}
}

// SentUnattributed builds a result for a delivered message without attribution
func SentUnattributed(reason string) AttributionResult {
	return AttributionResult{Outcome: OutcomeSentUnattributed, State: StateUnattributed, Reason: reason}
}

// SendFailed builds a result for a send the provider did not accept
func SendFailed(err error) AttributionResult {
	r := AttributionResult{Outcome: OutcomeSendFailed, State: StateSendFailed, Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}
