package data

import (
	"context"
	"errors"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"
	"github.com/agencydesk/dispatch/internal/infra/feishu"
)

// feishuProviderRepo implements the provider repository over Feishu/Lark
type feishuProviderRepo struct {
	client         *feishu.Client
	maxAttachments int
}

// NewFeishuProviderRepo creates a new Feishu provider repository
func NewFeishuProviderRepo(client *feishu.Client, maxAttachments int) repo.ProviderRepo {
	return &feishuProviderRepo{client: client, maxAttachments: maxAttachments}
}

// Send submits the message once. The conversation ID is the Feishu chat_id.
func (r *feishuProviderRepo) Send(ctx context.Context, req *domain.SendRequest) (*domain.ProviderReceipt, error) {
	result, err := r.client.SendMessage(ctx, req.ConversationID, req.Body, req.TruncatedAttachments(r.maxAttachments))
	if err != nil {
		var apiErr *feishu.APIError
		if errors.As(err, &apiErr) {
			return nil, &domain.ProviderError{Status: apiErr.Code, Body: apiErr.Msg}
		}
		return nil, &domain.ProviderError{Err: err}
	}

	return &domain.ProviderReceipt{
		ProviderMessageID: result.MessageID,
		Raw:               rawJSON(result.RawBody),
	}, nil
}
