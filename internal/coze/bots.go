package coze

import (
	"context"
	"net/http"
)

// Publish status filters accepted by the bot listing API.
const (
	PublishStatusAll              = "all"
	PublishStatusPublishedOnline  = "published_online"
	PublishStatusPublishedDraft   = "published_draft"
	PublishStatusUnpublishedDraft = "unpublished_draft"
)

// DefaultConnectorID is the API channel.
const DefaultConnectorID = "1024"

var validPublishStatuses = map[string]bool{
	PublishStatusAll:              true,
	PublishStatusPublishedOnline:  true,
	PublishStatusPublishedDraft:   true,
	PublishStatusUnpublishedDraft: true,
}

// ValidPublishStatus reports whether s is an accepted publish_status filter.
func ValidPublishStatus(s string) bool {
	return validPublishStatuses[s]
}

// ListBotsInput are the bot listing parameters. Zero values take the
// documented defaults: published_online, connector 1024, page 1, size 20.
type ListBotsInput struct {
	WorkspaceID   string
	PublishStatus string
	ConnectorID   string
	Page          int
	PageSize      int
}

// Bot is the normalized bot summary.
type Bot struct {
	BotID       string `json:"bot_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IconURL     string `json:"icon_url,omitempty"`
	PublishTime int64  `json:"publish_time,omitempty"`
	IsPublished bool   `json:"is_published,omitempty"`
}

// BotPage is the normalized result of a bot listing.
type BotPage struct {
	Bots  []Bot `json:"bots"`
	Total int   `json:"total"`
}

// ListBots fetches one page of bots in the workspace.
func (c *Client) ListBots(ctx context.Context, in ListBotsInput) (*BotPage, error) {
	if in.WorkspaceID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "workspace_id is required"}
	}
	if in.PublishStatus == "" {
		in.PublishStatus = PublishStatusPublishedOnline
	}
	if !ValidPublishStatus(in.PublishStatus) {
		return nil, &Error{Kind: KindBadRequest, Message: "invalid publish_status: " + in.PublishStatus}
	}
	if in.ConnectorID == "" {
		in.ConnectorID = DefaultConnectorID
	}
	if in.Page <= 0 {
		in.Page = 1
	}
	if in.PageSize <= 0 {
		in.PageSize = 20
	}

	resp, err := c.Execute(ctx, Request{
		Endpoint: endpointListBots,
		Method:   http.MethodGet,
		Params: map[string]any{
			"workspace_id":   in.WorkspaceID,
			"publish_status": in.PublishStatus,
			"connector_id":   in.ConnectorID,
			"page_num":       in.Page,
			"page_size":      in.PageSize,
		},
	})
	if err != nil {
		return nil, err
	}

	body := resp.Object()
	if code, ok := asInt(body, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(body, "msg", "message"))
	}

	items, total := ExtractList(unwrapData(body))
	page := &BotPage{Bots: make([]Bot, 0, len(items)), Total: total}
	for _, item := range items {
		bot := Bot{
			BotID:       asString(item, "bot_id", "id"),
			Name:        asString(item, "name", "bot_name"),
			Description: asString(item, "description"),
			IconURL:     asString(item, "icon_url"),
			PublishTime: asIntDefault(item, 0, "publish_time", "update_time", "updated_at"),
		}
		if b, ok := asBool(item, "is_published"); ok {
			bot.IsPublished = b
		}
		page.Bots = append(page.Bots, bot)
	}
	return page, nil
}
