package mcp

import (
	"context"
	"encoding/json"

	"github.com/cozekit/cozemcp/internal/coze"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ChatInput defines the shared input schema for the chat tools.
type ChatInput struct {
	BotID           string            `json:"bot_id" jsonschema:"Bot id to chat with."`
	Message         string            `json:"message" jsonschema:"User message to send."`
	UserID          string            `json:"user_id,omitempty" jsonschema:"Stable caller identity. Generated per call when omitted, which loses cross-call user continuity."`
	ConversationID  string            `json:"conversation_id,omitempty" jsonschema:"Existing conversation to continue. A new one is created when omitted."`
	CustomVariables map[string]string `json:"custom_variables,omitempty" jsonschema:"Prompt template variables passed through to the bot."`
}

// chatOutcomeEnvelope decorates the client outcome with tool-level flags.
type chatOutcomeEnvelope struct {
	coze.ChatOutcome
	UserID string `json:"user_id"`
	// UserIDGenerated is true when the server minted the user id for this
	// call; the caller must echo UserID back to keep continuity.
	UserIDGenerated bool `json:"user_id_generated,omitempty"`
}

type streamOutcomeEnvelope struct {
	coze.StreamOutcome
	UserID          string `json:"user_id"`
	UserIDGenerated bool   `json:"user_id_generated,omitempty"`
}

func (in *ChatInput) ensureUserID() (generated bool) {
	if in.UserID != "" {
		return false
	}
	in.UserID = uuid.NewString()
	return true
}

func (in ChatInput) toClient() coze.ChatInput {
	return coze.ChatInput{
		BotID:           in.BotID,
		Message:         in.Message,
		UserID:          in.UserID,
		ConversationID:  in.ConversationID,
		CustomVariables: in.CustomVariables,
	}
}

// registerChat registers the synchronous chat tool: send a message, poll to
// completion, return the assistant reply.
func (s *Server) registerChat() error {
	return addTool(s, "chat",
		"Send a message to a bot and wait for the complete reply. Polls the chat status and returns the assistant's answer, or a timeout marker when the bot is still working.",
		func(ctx context.Context, req *mcp.CallToolRequest, in ChatInput) (*mcp.CallToolResult, any, error) {
			if in.BotID == "" {
				return toolErrorf("bot_id is required"), nil, nil
			}
			if in.Message == "" {
				return toolErrorf("message is required"), nil, nil
			}
			generated := in.ensureUserID()

			outcome, err := s.client.Chat(ctx, in.toClient())
			if err != nil {
				return toolError(err), nil, nil
			}
			envelope := chatOutcomeEnvelope{
				ChatOutcome:     *outcome,
				UserID:          in.UserID,
				UserIDGenerated: generated,
			}
			if outcome.Status == coze.ChatStatusFailed {
				return failedChatResult(envelope), nil, nil
			}
			return toolResult(envelope), nil, nil
		})
}

// registerChatStream registers the streaming chat tool. The SSE stream is
// consumed server-side and folded into one response; MCP tool calls have a
// single result, so deltas are concatenated rather than forwarded.
func (s *Server) registerChatStream() error {
	return addTool(s, "chat_stream",
		"Send a message to a bot over the streaming API and return the assembled reply. Lower time-to-first-byte upstream, single collected result here.",
		func(ctx context.Context, req *mcp.CallToolRequest, in ChatInput) (*mcp.CallToolResult, any, error) {
			if in.BotID == "" {
				return toolErrorf("bot_id is required"), nil, nil
			}
			if in.Message == "" {
				return toolErrorf("message is required"), nil, nil
			}
			generated := in.ensureUserID()

			outcome, err := s.client.ChatStream(ctx, in.toClient())
			if err != nil {
				return toolError(err), nil, nil
			}
			envelope := streamOutcomeEnvelope{
				StreamOutcome:   *outcome,
				UserID:          in.UserID,
				UserIDGenerated: generated,
			}
			if outcome.Status == coze.ChatStatusFailed {
				return failedStreamResult(envelope), nil, nil
			}
			return toolResult(envelope), nil, nil
		})
}

// failedChatResult renders a terminally failed chat as an error result that
// still carries the structured outcome.
func failedChatResult(envelope chatOutcomeEnvelope) *mcp.CallToolResult {
	b, _ := json.Marshal(envelope)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
		StructuredContent: envelope,
		IsError:           true,
	}
}

func failedStreamResult(envelope streamOutcomeEnvelope) *mcp.CallToolResult {
	b, _ := json.Marshal(envelope)
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
		StructuredContent: envelope,
		IsError:           true,
	}
}
