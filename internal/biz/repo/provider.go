package repo

import (
	"context"

	"github.com/agencydesk/dispatch/internal/biz/domain"
)

// ProviderRepo is the messaging provider interface
// Responsible for delivering one outbound message to the external recipient
type ProviderRepo interface {
	// Send submits the message. It is never retried: a retried send could
	// deliver the message twice. Rejections match domain.ErrProviderRejected.
	Send(ctx context.Context, req *domain.SendRequest) (*domain.ProviderReceipt, error)
}
