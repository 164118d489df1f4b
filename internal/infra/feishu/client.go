package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// APIError is a non-success answer from the Feishu open API
type APIError struct {
	Code int
	Msg  string
	Body []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("feishu api error %d: %s", e.Code, e.Msg)
}

// SendResult is the outcome of a successful message create
type SendResult struct {
	MessageID string
	RawBody   []byte
}

// Client is the Feishu API client
type Client struct {
	larkCli *lark.Client
	log     *slog.Logger
}

// NewClient creates a new Feishu client.
// baseURL overrides the open API host, empty keeps the SDK default.
func NewClient(appID, appSecret, baseURL string, log *slog.Logger) *Client {
	var opts []lark.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(baseURL))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		larkCli: lark.NewClient(appID, appSecret, opts...),
		log:     log.With("component", "feishu"),
	}
}

// SendMessage sends text to a chat. Links are rendered as extra lines of a
// rich text (post) message; without links a plain text message is sent.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, links []string) (*SendResult, error) {
	msgType, content, err := buildContent(text, links)
	if err != nil {
		return nil, err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(larkim.ReceiveIdTypeChatId).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("send message failed: %w", err)
	}

	var raw []byte
	if resp.ApiResp != nil {
		raw = resp.ApiResp.RawBody
	}
	if !resp.Success() {
		return nil, &APIError{Code: resp.Code, Msg: resp.Msg, Body: raw}
	}

	result := &SendResult{RawBody: raw}
	if resp.Data != nil && resp.Data.MessageId != nil {
		result.MessageID = *resp.Data.MessageId
	}

	c.log.Debug("message sent", "chat_id", chatID, "message_id", result.MessageID, "links", len(links))
	return result, nil
}

// buildContent encodes the message body for the create API
func buildContent(text string, links []string) (string, string, error) {
	if len(links) == 0 {
		contentJSON, err := json.Marshal(map[string]string{"text": text})
		if err != nil {
			return "", "", fmt.Errorf("encode text content: %w", err)
		}
		return larkim.MsgTypeText, string(contentJSON), nil
	}

	var lines [][]map[string]interface{}
	if text != "" {
		lines = append(lines, []map[string]interface{}{{"tag": "text", "text": text}})
	}
	for _, link := range links {
		lines = append(lines, []map[string]interface{}{{"tag": "a", "text": link, "href": link}})
	}

	post := map[string]interface{}{
		"zh_cn": map[string]interface{}{
			"title":   "",
			"content": lines,
		},
	}
	contentJSON, err := json.Marshal(post)
	if err != nil {
		return "", "", fmt.Errorf("encode post content: %w", err)
	}
	return larkim.MsgTypePost, string(contentJSON), nil
}
