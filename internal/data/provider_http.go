package data

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/biz/repo"
	"github.com/agencydesk/dispatch/internal/infra/msgapi"
)

// httpProviderRepo implements the provider repository over the HTTP messaging API
type httpProviderRepo struct {
	client         *msgapi.Client
	maxAttachments int
}

// NewHTTPProviderRepo creates a new HTTP provider repository
func NewHTTPProviderRepo(client *msgapi.Client, maxAttachments int) repo.ProviderRepo {
	return &httpProviderRepo{client: client, maxAttachments: maxAttachments}
}

// Send submits the message once
func (r *httpProviderRepo) Send(ctx context.Context, req *domain.SendRequest) (*domain.ProviderReceipt, error) {
	resp, raw, err := r.client.Send(ctx, &msgapi.SendRequest{
		ConversationID: req.ConversationID,
		Content:        req.Body,
		MediaURLs:      req.TruncatedAttachments(r.maxAttachments),
	})
	if err != nil {
		var statusErr *msgapi.StatusError
		if errors.As(err, &statusErr) {
			return nil, &domain.ProviderError{Status: statusErr.StatusCode, Body: statusErr.Body}
		}
		return nil, &domain.ProviderError{Err: err}
	}

	return &domain.ProviderReceipt{
		ProviderMessageID: resp.MessageID(),
		Raw:               rawJSON(raw),
	}, nil
}

// rawJSON keeps the provider payload only when it is valid JSON
func rawJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return json.RawMessage(raw)
}
