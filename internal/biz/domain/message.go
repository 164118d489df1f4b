package domain

import "time"

// Direction is the direction of a message relative to the agency
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// MessageRecord represents a persisted message row.
// Rows are inserted by webhook ingestion; the reconciler only writes Attribution.
type MessageRecord struct {
	ID                string
	ConversationID    string
	ProviderMessageID string // Empty until the webhook assigns it
	Body              string
	Direction         Direction
	Attribution       *Identity // Nil until attributed
	CreatedAt         time.Time
}

// IsAttributed checks if the record already carries a sending identity
func (r *MessageRecord) IsAttributed() bool {
	return r.Attribution != nil && r.Attribution.MemberID != ""
}

// IsAfter checks if the record was created after the specified time
func (r *MessageRecord) IsAfter(t time.Time) bool {
	return r.CreatedAt.After(t)
}
