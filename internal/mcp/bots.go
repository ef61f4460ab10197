package mcp

import (
	"context"

	"github.com/cozekit/cozemcp/internal/coze"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListBotsInput defines the input schema for the list_bots tool.
type ListBotsInput struct {
	SpaceID       string `json:"space_id,omitempty" jsonschema:"Workspace id to list bots from. Falls back to the server's configured default space."`
	PublishStatus string `json:"publish_status,omitempty" jsonschema:"Filter by publish status: all, published_online, published_draft or unpublished_draft. Defaults to published_online."`
	ConnectorID   string `json:"connector_id,omitempty" jsonschema:"Connector channel id. Defaults to 1024 (the API channel)."`
	Page          int    `json:"page,omitempty" jsonschema:"Page number, starting at 1."`
	PageSize      int    `json:"page_size,omitempty" jsonschema:"Records per page. Defaults to 20."`
}

// registerListBots registers the bot listing tool.
func (s *Server) registerListBots() error {
	return addTool(s, "list_bots",
		"List the bots (agents) in a Coze workspace, with pagination and publish-status filtering.",
		func(ctx context.Context, req *mcp.CallToolRequest, in ListBotsInput) (*mcp.CallToolResult, any, error) {
			spaceID := s.resolveSpaceID(in.SpaceID)
			if spaceID == "" {
				return toolErrorf("space_id is required (no default space configured)"), nil, nil
			}
			page, err := s.client.ListBots(ctx, coze.ListBotsInput{
				WorkspaceID:   spaceID,
				PublishStatus: in.PublishStatus,
				ConnectorID:   in.ConnectorID,
				Page:          in.Page,
				PageSize:      in.PageSize,
			})
			if err != nil {
				return toolError(err), nil, nil
			}
			names := make([]string, 0, len(page.Bots))
			for _, bot := range page.Bots {
				names = append(names, bot.Name)
			}
			return toolResultWithSummary(summarizeNames("bots", names, page.Total), page), nil, nil
		})
}

// ListConversationsInput defines the input schema for the list_conversations tool.
type ListConversationsInput struct {
	BotID    string `json:"bot_id" jsonschema:"Bot id whose conversations to list."`
	SpaceID  string `json:"space_id,omitempty" jsonschema:"Workspace id. Optional."`
	Page     int    `json:"page,omitempty" jsonschema:"Page number, starting at 1."`
	PageSize int    `json:"page_size,omitempty" jsonschema:"Records per page. Defaults to 20."`
}

// registerListConversations registers the conversation listing tool.
func (s *Server) registerListConversations() error {
	return addTool(s, "list_conversations",
		"List the conversations held with a bot, newest first.",
		func(ctx context.Context, req *mcp.CallToolRequest, in ListConversationsInput) (*mcp.CallToolResult, any, error) {
			if in.BotID == "" {
				return toolErrorf("bot_id is required"), nil, nil
			}
			// No default-space fallback here: the upstream filter is optional
			// and conversations are already scoped by bot_id.
			page, err := s.client.ListConversations(ctx, coze.ListConversationsInput{
				BotID:       in.BotID,
				WorkspaceID: in.SpaceID,
				Page:        in.Page,
				PageSize:    in.PageSize,
			})
			if err != nil {
				return toolError(err), nil, nil
			}
			ids := make([]string, 0, len(page.Conversations))
			for _, conv := range page.Conversations {
				ids = append(ids, conv.ConversationID)
			}
			return toolResultWithSummary(summarizeNames("conversations", ids, page.Total), page), nil, nil
		})
}
