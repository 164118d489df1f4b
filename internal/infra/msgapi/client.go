package msgapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxErrorBody bounds how much of a failed response is kept
const maxErrorBody = 4096

// SendRequest is the provider's send-message payload
type SendRequest struct {
	ConversationID string   `json:"conversation_id"`
	Content        string   `json:"content,omitempty"`
	MediaURLs      []string `json:"media_urls,omitempty"`
}

// SendResponse is the provider's synchronous answer
type SendResponse struct {
	MessageHandle string `json:"message_handle"`
	ID            string `json:"id"`
	Status        string `json:"status"`
}

// MessageID returns the provider's identifier for the sent message
func (r *SendResponse) MessageID() string {
	if r.MessageHandle != "" {
		return r.MessageHandle
	}
	return r.ID
}

// StatusError is a non-2xx answer from the provider
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}

// Client is the messaging provider HTTP client
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewClient creates a new provider client
func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Send posts one message. The raw response body is returned alongside the
// decoded answer so callers can keep it.
func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, []byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-message", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}
	if c.apiSecret != "" {
		httpReq.Header.Set("X-API-Secret", c.apiSecret)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return nil, raw, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var decoded SendResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			// Accepted but unreadable: the send happened, the id is unknown
			return &SendResponse{}, raw, nil
		}
	}
	return &decoded, raw, nil
}
