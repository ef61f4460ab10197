package coze

import (
	"context"
	"net/http"
)

// ListConversationsInput are the conversation listing parameters.
type ListConversationsInput struct {
	BotID       string
	WorkspaceID string
	Page        int
	PageSize    int
}

// Conversation is the normalized conversation summary.
type Conversation struct {
	ConversationID string `json:"conversation_id"`
	CreatedAt      int64  `json:"created_at,omitempty"`
	LastSectionID  string `json:"last_section_id,omitempty"`
}

// ConversationPage is the normalized result of a conversation listing.
type ConversationPage struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	HasMore       bool           `json:"has_more,omitempty"`
}

// ListConversations fetches one page of conversations for a bot.
func (c *Client) ListConversations(ctx context.Context, in ListConversationsInput) (*ConversationPage, error) {
	if in.BotID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "bot_id is required"}
	}
	if in.Page <= 0 {
		in.Page = 1
	}
	if in.PageSize <= 0 {
		in.PageSize = 20
	}

	params := map[string]any{
		"bot_id":    in.BotID,
		"page_num":  in.Page,
		"page_size": in.PageSize,
	}
	if in.WorkspaceID != "" {
		params["workspace_id"] = in.WorkspaceID
	}

	resp, err := c.Execute(ctx, Request{
		Endpoint: endpointListConversations,
		Method:   http.MethodGet,
		Params:   params,
	})
	if err != nil {
		return nil, err
	}

	body := resp.Object()
	if code, ok := asInt(body, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(body, "msg", "message"))
	}

	data := unwrapData(body)
	// This endpoint names its array "conversations"; older shapes use the
	// generic list keys.
	var items []Object
	var total int
	if raw, ok := asArray(data, "conversations"); ok {
		for _, item := range raw {
			if obj, ok := item.(map[string]any); ok {
				items = append(items, obj)
			}
		}
		total = int(asIntDefault(data, int64(len(items)), "total", "total_count"))
	} else {
		items, total = ExtractList(data)
	}

	page := &ConversationPage{Conversations: make([]Conversation, 0, len(items)), Total: total}
	if b, ok := asBool(data, "has_more"); ok {
		page.HasMore = b
	}
	for _, item := range items {
		page.Conversations = append(page.Conversations, Conversation{
			ConversationID: asString(item, "id", "conversation_id"),
			CreatedAt:      asIntDefault(item, 0, "created_at", "create_time"),
			LastSectionID:  asString(item, "last_section_id"),
		})
	}
	return page, nil
}
