package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cozekit/cozemcp/internal/coze"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// addTool infers the input schema from In and registers one tool. The MCP
// SDK's AddTool is generic, which keeps each handler strongly typed.
func addTool[In any](s *Server, name, description string, handler func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, any, error)) error {
	inputSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("failed to create input schema: %w", err)
	}
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}, handler)
	return nil
}

// MCP Error Detail Whitelist Policy:
// - kind: Safe (controlled enum, e.g. "authentication")
// - message: Safe (upstream user-facing message)
// - status/code: Safe (HTTP status and platform business code)
//
// NEVER expose:
// - stack traces
// - local file paths beyond what the caller passed in
// - environment variables
// - API keys/tokens

// toolResult converts arbitrary data to MCP content via JSON marshaling.
// This is the simple, unified approach: all data becomes JSON, clients parse
// it. The same object also rides as structured content for clients that
// support it.
func toolResult(data any) *mcp.CallToolResult {
	if data == nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: ""}},
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "marshal error"}},
			IsError: true,
		}
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(b)}},
		StructuredContent: data,
	}
}

// listSummaryLimit caps how many names a list summary spells out.
const listSummaryLimit = 5

// toolResultWithSummary prefixes the JSON payload with a one-line human
// summary. List tools use it so a model sees the shape of the result without
// parsing.
func toolResultWithSummary(summary string, data any) *mcp.CallToolResult {
	result := toolResult(data)
	if result.IsError {
		return result
	}
	text := result.Content[0].(*mcp.TextContent).Text
	result.Content = []mcp.Content{&mcp.TextContent{Text: summary + "\n" + text}}
	return result
}

// summarizeNames renders "n of total label: a, b, c" with at most
// listSummaryLimit names spelled out.
func summarizeNames(label string, names []string, total int) string {
	shown := names
	suffix := ""
	if len(shown) > listSummaryLimit {
		shown = shown[:listSummaryLimit]
		suffix = ", ..."
	}
	list := ""
	if len(shown) > 0 {
		list = ": " + strings.Join(shown, ", ") + suffix
	}
	return fmt.Sprintf("%d of %d %s%s", len(names), total, label, list)
}

// toolError converts a failure into an error-flagged tool result. Tool
// failures travel inside the result envelope, never as protocol errors, so a
// client can read the reason and retry or rephrase. The serialized error
// rides as structured content alongside the text: both are always populated
// on failure.
func toolError(err error) *mcp.CallToolResult {
	var apiErr *coze.Error
	if errors.As(err, &apiErr) {
		text := fmt.Sprintf("[%s] %s", apiErr.Kind, apiErr.Message)
		if apiErr.Status != 0 {
			text += fmt.Sprintf(" (http %d)", apiErr.Status)
		}
		if apiErr.Code != 0 {
			text += fmt.Sprintf(" (code %d)", apiErr.Code)
		}
		return &mcp.CallToolResult{
			Content:           []mcp.Content{&mcp.TextContent{Text: text}},
			StructuredContent: apiErr,
			IsError:           true,
		}
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		StructuredContent: map[string]string{"message": err.Error()},
		IsError:           true,
	}
}

// toolErrorf builds an error result for locally detected argument problems.
func toolErrorf(format string, args ...any) *mcp.CallToolResult {
	return toolError(&coze.Error{Kind: coze.KindBadRequest, Message: fmt.Sprintf(format, args...)})
}
