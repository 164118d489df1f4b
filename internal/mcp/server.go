package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agencydesk/dispatch/internal/biz/domain"
)

// Dispatcher runs a send-then-attribute dispatch
type Dispatcher interface {
	Dispatch(ctx context.Context, req *domain.SendRequest) domain.AttributionResult
}

// Server exposes the dispatcher as MCP tools
type Server struct {
	server     *mcp.Server
	dispatcher Dispatcher
	log        *slog.Logger
}

// NewServer creates a new MCP server with its tools registered
func NewServer(dispatcher Dispatcher, version string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "dispatch",
			Version: version,
		}, nil),
		dispatcher: dispatcher,
		log:        log.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

// Run serves the tools on the given transport until ctx is done
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "send_message",
		Description: "Send a message to a conversation on behalf of a team member and attribute the stored record to them. The message is sent at most once; a result with outcome sent_unattributed was still delivered.",
	}, s.handleSendMessage)
}

// SendMessageInput is the input for send_message tool
type SendMessageInput struct {
	ConversationID string   `json:"conversation_id" jsonschema:"The conversation to send to"`
	Body           string   `json:"body,omitempty" jsonschema:"Message text; may be empty when attachments are given"`
	Attachments    []string `json:"attachments,omitempty" jsonschema:"Attachment URLs; extras beyond the provider maximum are dropped"`
	MemberID       string   `json:"member_id" jsonschema:"Team member id of the sender"`
	DisplayName    string   `json:"display_name,omitempty" jsonschema:"Display name of the sender"`
}

// SendMessageOutput is the output for send_message tool
type SendMessageOutput struct {
	DispatchID        string `json:"dispatch_id"`
	Outcome           string `json:"outcome"`
	Delivered         bool   `json:"delivered"`
	RecordID          string `json:"record_id,omitempty"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Path              string `json:"path,omitempty"`
	Reason            string `json:"reason,omitempty"`
	Warning           string `json:"warning,omitempty"`
}

func (s *Server) handleSendMessage(ctx context.Context, req *mcp.CallToolRequest, input SendMessageInput) (*mcp.CallToolResult, SendMessageOutput, error) {
	result := s.dispatcher.Dispatch(ctx, &domain.SendRequest{
		ConversationID: input.ConversationID,
		Body:           input.Body,
		Attachments:    input.Attachments,
		Sender: domain.Identity{
			MemberID:    input.MemberID,
			DisplayName: input.DisplayName,
		},
	})

	output := SendMessageOutput{
		DispatchID:        result.DispatchID,
		Outcome:           string(result.Outcome),
		Delivered:         result.Delivered(),
		RecordID:          result.RecordID,
		ProviderMessageID: result.ProviderMessageID,
		Path:              string(result.Path),
		Reason:            result.Reason,
		Warning:           result.Warning,
	}

	// Nothing was sent; agents must not assume delivery
	if result.Outcome == domain.OutcomeSendFailed {
		s.log.WarnContext(ctx, "send_message failed", "dispatch_id", result.DispatchID, "reason", result.Reason)
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "send failed: " + result.Reason}},
		}, output, nil
	}

	return nil, output, nil
}
