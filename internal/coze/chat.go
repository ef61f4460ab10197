package coze

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Chat session statuses reported by the v3 chat API. created and in_progress
// are the pollable states; completed and failed are terminal.
const (
	ChatStatusCreated        = "created"
	ChatStatusInProgress     = "in_progress"
	ChatStatusCompleted      = "completed"
	ChatStatusFailed         = "failed"
	ChatStatusRequiresAction = "requires_action"
)

// ChatInput describes one chat request.
type ChatInput struct {
	BotID           string
	Message         string
	UserID          string
	ConversationID  string
	CustomVariables map[string]string
}

// ChatSession is the state of one chat exchange, as created or as observed
// by a polling read.
type ChatSession struct {
	ConversationID string `json:"conversation_id"`
	ChatID         string `json:"chat_id"`
	Status         string `json:"status"`
	LastError      Object `json:"last_error,omitempty"`
	Usage          *Usage `json:"usage,omitempty"`
}

// Usage carries the token counters the platform reports on completion.
type Usage struct {
	InputTokens  int64 `json:"input_tokens,omitempty"`
	OutputTokens int64 `json:"output_tokens,omitempty"`
	TotalTokens  int64 `json:"total_tokens,omitempty"`
}

// ChatOutcome is the final result of a chat-and-wait flow. Timeout marks the
// bounded-attempt exit: the chat is unfinished but the call did not fail.
type ChatOutcome struct {
	ConversationID string `json:"conversation_id"`
	ChatID         string `json:"chat_id"`
	Status         string `json:"status"`
	Reply          string `json:"reply"`
	Timeout        bool   `json:"timeout,omitempty"`
	Usage          *Usage `json:"usage,omitempty"`
	LastError      Object `json:"last_error,omitempty"`
}

func chatRequestBody(in ChatInput, stream bool) map[string]any {
	body := map[string]any{
		"bot_id":  in.BotID,
		"user_id": in.UserID,
		"additional_messages": []map[string]any{{
			"role":         "user",
			"content":      in.Message,
			"content_type": "text",
		}},
		"stream":            stream,
		"auto_save_history": true,
	}
	if len(in.CustomVariables) > 0 {
		body["custom_variables"] = in.CustomVariables
	}
	return body
}

// CreateChat starts a chat exchange without waiting for completion.
func (c *Client) CreateChat(ctx context.Context, in ChatInput) (*ChatSession, error) {
	if in.BotID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "bot_id is required"}
	}
	if in.Message == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "message is required"}
	}
	if in.UserID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "user_id is required"}
	}

	req := Request{
		Endpoint: endpointChat,
		Method:   http.MethodPost,
		Body:     chatRequestBody(in, false),
	}
	if in.ConversationID != "" {
		req.Params = map[string]any{"conversation_id": in.ConversationID}
	}

	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	body := resp.Object()
	if code, ok := asInt(body, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(body, "msg", "message"))
	}
	session := decodeChatSession(unwrapData(body))
	if session.ChatID == "" {
		return nil, &Error{Kind: KindInvalidResponse, Message: "chat response missing id"}
	}
	return session, nil
}

// RetrieveChat re-fetches the status of a chat exchange.
func (c *Client) RetrieveChat(ctx context.Context, conversationID, chatID string) (*ChatSession, error) {
	resp, err := c.Execute(ctx, Request{
		Endpoint: endpointChatRetrieve,
		Method:   http.MethodGet,
		Params: map[string]any{
			"conversation_id": conversationID,
			"chat_id":         chatID,
		},
	})
	if err != nil {
		return nil, err
	}
	body := resp.Object()
	if code, ok := asInt(body, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(body, "msg", "message"))
	}
	return decodeChatSession(unwrapData(body)), nil
}

func decodeChatSession(data Object) *ChatSession {
	session := &ChatSession{
		ConversationID: asString(data, "conversation_id"),
		ChatID:         asString(data, "id", "chat_id"),
		Status:         asString(data, "status"),
	}
	if lastErr, ok := asObject(data, "last_error"); ok {
		// A zero-code last_error is the platform's way of saying "no error".
		if code, _ := asInt(lastErr, "code"); code != 0 {
			session.LastError = lastErr
		}
	}
	if usage, ok := asObject(data, "usage"); ok {
		session.Usage = &Usage{
			InputTokens:  asIntDefault(usage, 0, "input_tokens", "input_count"),
			OutputTokens: asIntDefault(usage, 0, "output_tokens", "output_count"),
			TotalTokens:  asIntDefault(usage, 0, "total_tokens", "token_count"),
		}
	}
	return session
}

// AssistantReply fetches the message list for a finished chat and
// concatenates the content of all assistant messages in order, joined by
// newlines. Empty string when there are none.
func (c *Client) AssistantReply(ctx context.Context, conversationID string) (string, error) {
	resp, err := c.Execute(ctx, Request{
		Endpoint: fmt.Sprintf(endpointChatMessagesFmt, conversationID),
		Method:   http.MethodGet,
	})
	if err != nil {
		return "", err
	}
	body := resp.Object()
	if code, ok := asInt(body, "code"); ok && code != 0 {
		return "", upstreamError(code, asString(body, "msg", "message"))
	}

	data := unwrapData(body)
	items, _ := asArray(data, "messages", "list", "items")
	var parts []string
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if asString(obj, "role") != "assistant" {
			continue
		}
		// The platform interleaves answer messages with follow-up and verbose
		// bookkeeping entries; only answers carry the reply.
		if t := asString(obj, "type"); t != "" && t != "answer" {
			continue
		}
		if content := asString(obj, "content"); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// Chat runs the full synchronous flow: create the exchange, poll until a
// terminal state or the attempt budget runs out, then collect the assistant
// reply.
//
// The loop sleeps a fixed interval between polls and tolerates transient
// status-fetch failures (a dropped poll just costs one attempt). Reaching
// completed collects messages; failed stops early and carries the upstream
// last_error; everything else — exhausted attempts, requires_action, or an
// unrecognized status — returns an unfinished outcome with Timeout set and
// no error.
func (c *Client) Chat(ctx context.Context, in ChatInput) (*ChatOutcome, error) {
	session, err := c.CreateChat(ctx, in)
	if err != nil {
		return nil, err
	}

	conversationID := session.ConversationID
	if in.ConversationID != "" && conversationID == "" {
		conversationID = in.ConversationID
	}

	for attempt := 0; attempt < c.pollMaxAttempts; attempt++ {
		if session.Status != ChatStatusCreated && session.Status != ChatStatusInProgress {
			break
		}
		select {
		case <-ctx.Done():
			return nil, classifyTransport(ctx.Err())
		case <-time.After(c.pollInterval):
		}
		latest, err := c.RetrieveChat(ctx, conversationID, session.ChatID)
		if err != nil {
			c.logger.Debug("chat poll attempt failed", "attempt", attempt+1, "error", err)
			continue
		}
		session = latest
		if session.ConversationID != "" {
			conversationID = session.ConversationID
		}
	}

	outcome := &ChatOutcome{
		ConversationID: conversationID,
		ChatID:         session.ChatID,
		Status:         session.Status,
		Usage:          session.Usage,
		LastError:      session.LastError,
	}

	switch session.Status {
	case ChatStatusCompleted:
		reply, err := c.AssistantReply(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		outcome.Reply = reply
	case ChatStatusFailed:
		// Terminal failure; the caller decides how to present last_error.
	default:
		outcome.Timeout = true
	}
	return outcome, nil
}
