package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cozekit/cozemcp/internal/coze"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP SDK server and the Coze API client.
type Server struct {
	mcpServer *mcp.Server
	client    *coze.Client
	spaceID   string
	logger    *slog.Logger
	name      string
	version   string
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	// Client performs the upstream API calls.
	Client *coze.Client
	// DefaultSpaceID fills in space_id when a tool call omits it.
	DefaultSpaceID string
	Logger         *slog.Logger
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("coze client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		client:    cfg.Client,
		spaceID:   cfg.DefaultSpaceID,
		logger:    cfg.Logger,
		name:      cfg.Name,
		version:   cfg.Version,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server on the given transport.
// This is a blocking call that handles all MCP protocol communication.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("mcp server starting", "name", s.name, "version", s.version)
	return s.mcpServer.Run(ctx, transport)
}

// registerTools registers every tool the server exposes.
func (s *Server) registerTools() error {
	registrations := []struct {
		name string
		fn   func() error
	}{
		{"ping", s.registerPing},
		{"list_bots", s.registerListBots},
		{"list_conversations", s.registerListConversations},
		{"list_knowledge_bases", s.registerListKnowledgeBases},
		{"create_dataset", s.registerCreateDataset},
		{"upload_document_to_knowledge_base", s.registerUploadDocument},
		{"chat", s.registerChat},
		{"chat_stream", s.registerChatStream},
	}
	for _, r := range registrations {
		if err := r.fn(); err != nil {
			return fmt.Errorf("failed to register %s: %w", r.name, err)
		}
	}
	return nil
}

// resolveSpaceID applies the configured default when the call omits space_id.
func (s *Server) resolveSpaceID(spaceID string) string {
	if spaceID != "" {
		return spaceID
	}
	return s.spaceID
}

// PingInput has no parameters.
type PingInput struct{}

// registerPing registers the connectivity probe tool.
func (s *Server) registerPing() error {
	return addTool(s, "ping", "Check that the server is alive. Returns \"pong\".",
		func(ctx context.Context, req *mcp.CallToolRequest, in PingInput) (*mcp.CallToolResult, any, error) {
			return &mcp.CallToolResult{
				Content:           []mcp.Content{&mcp.TextContent{Text: "pong"}},
				StructuredContent: map[string]bool{"ok": true},
			}, nil, nil
		})
}
