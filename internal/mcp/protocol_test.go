package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/cozekit/cozemcp/internal/coze"
	"github.com/cozekit/cozemcp/internal/log"
	"github.com/cozekit/cozemcp/internal/testutil"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// connectServer creates an MCP server from the given config and an SDK client
// connected via in-memory transports. Returns the client session for making
// protocol calls. Both sessions are cleaned up via t.Cleanup.
func connectServer(t *testing.T, cfg Config) *mcp.ClientSession {
	t.Helper()

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.mcpServer.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client.Connect() unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })

	return clientSession
}

// connectTestServer builds a server backed by a fake Coze API and connects a
// client to it.
func connectTestServer(t *testing.T, fake *testutil.FakeCoze, spaceID string) *mcp.ClientSession {
	t.Helper()

	client, err := coze.NewClient(coze.Config{
		BaseURL:      fake.URL(),
		Token:        "test-token",
		PollInterval: time.Millisecond,
		Logger:       log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewClient() unexpected error: %v", err)
	}

	return connectServer(t, Config{
		Name:           "cozemcp-test",
		Version:        "0.0.0",
		Client:         client,
		DefaultSpaceID: spaceID,
		Logger:         log.NewNop(),
	})
}

// callToolJSON invokes a tool and decodes its text content as JSON.
func callToolJSON(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (map[string]any, *mcp.CallToolResult) {
	t.Helper()

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%q) unexpected error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%q) returned empty content", name)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%q) content[0] type = %T, want *mcp.TextContent", name, result.Content[0])
	}

	payload := text.Text
	// List tools prefix the JSON payload with a one-line summary.
	if !strings.HasPrefix(payload, "{") {
		if _, rest, found := strings.Cut(payload, "\n"); found {
			payload = rest
		}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		// Error texts are plain strings, not JSON.
		return nil, result
	}
	return parsed, result
}

func TestProtocol_ListTools(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "")

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() unexpected error: %v", err)
	}

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)

	wantNames := []string{
		"chat",
		"chat_stream",
		"create_dataset",
		"list_bots",
		"list_conversations",
		"list_knowledge_bases",
		"ping",
		"upload_document_to_knowledge_base",
	}

	if len(names) != len(wantNames) {
		t.Fatalf("ListTools() returned %d tools, want %d\ngot:  %v\nwant: %v", len(names), len(wantNames), names, wantNames)
	}
	for i, got := range names {
		if got != wantNames[i] {
			t.Errorf("ListTools() tool[%d] = %q, want %q", i, got, wantNames[i])
		}
	}
}

func TestProtocol_ListTools_HaveDescriptions(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "")

	result, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools() unexpected error: %v", err)
	}
	for _, tool := range result.Tools {
		if tool.Description == "" {
			t.Errorf("ListTools() tool %q has empty description", tool.Name)
		}
	}
}

func TestProtocol_CallTool_Ping(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "")

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "ping"})
	if err != nil {
		t.Fatalf("CallTool(ping) unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("CallTool(ping) returned error result")
	}
	text := result.Content[0].(*mcp.TextContent).Text
	if text != "pong" {
		t.Errorf("CallTool(ping) = %q, want %q", text, "pong")
	}
	sc, ok := result.StructuredContent.(map[string]any)
	if !ok || sc["ok"] != true {
		t.Errorf("CallTool(ping) structured content = %v, want ok=true", result.StructuredContent)
	}
}

func TestProtocol_CallTool_UnknownTool(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "")

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "nonexistent_tool"})
	if err == nil {
		t.Fatal("CallTool(nonexistent_tool) expected error, got nil")
	}
	if !strings.Contains(err.Error(), "nonexistent_tool") {
		t.Errorf("CallTool(nonexistent_tool) error = %q, want to contain tool name", err.Error())
	}
}

func TestProtocol_ListBots_MissingSpace(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "")

	_, result := callToolJSON(t, session, "list_bots", nil)
	if !result.IsError {
		t.Fatal("list_bots without space_id should return an error result")
	}
	if len(fake.Requests()) != 0 {
		t.Errorf("list_bots without space_id made %d network calls, want 0", len(fake.Requests()))
	}
}

func TestProtocol_ListBots_UsesDefaultSpace(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/bots", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{
			"items": []any{map[string]any{"bot_id": "bot-1", "name": "helper"}},
			"total": 1,
		},
	})
	session := connectTestServer(t, fake, "space-default")

	parsed, result := callToolJSON(t, session, "list_bots", nil)
	if result.IsError {
		t.Fatalf("list_bots returned error result: %v", result.Content)
	}
	bots, ok := parsed["bots"].([]any)
	if !ok || len(bots) != 1 {
		t.Fatalf("list_bots bots = %v, want one entry", parsed["bots"])
	}
	text := result.Content[0].(*mcp.TextContent).Text
	if !strings.HasPrefix(text, "1 of 1 bots: helper") {
		t.Errorf("list_bots summary line = %q, want to lead with the bot names", text)
	}
	if got := fake.LastRequest().Query.Get("workspace_id"); got != "space-default" {
		t.Errorf("workspace_id = %q, want configured default", got)
	}
}

func TestProtocol_ListBots_AuthErrorIsToolError(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/bots", http.StatusUnauthorized, map[string]any{"msg": "Unauthorized"})
	session := connectTestServer(t, fake, "space-1")

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: "list_bots"})
	if err != nil {
		t.Fatalf("upstream failures must be tool errors, not protocol errors: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError result for 401")
	}
	text := result.Content[0].(*mcp.TextContent).Text
	if !strings.Contains(text, "authentication") || !strings.Contains(text, "Unauthorized") {
		t.Errorf("error text = %q, want kind and upstream message", text)
	}
	sc, ok := result.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("structured content = %v (%T), want the serialized error", result.StructuredContent, result.StructuredContent)
	}
	if sc["kind"] != "authentication_error" || sc["message"] != "Unauthorized" || sc["status"] != float64(401) {
		t.Errorf("structured error = %v, want kind/message/status populated", sc)
	}
}

func TestProtocol_Chat_GeneratesDistinctUserIDs(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodPost, "/v3/chat", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{"id": "chat-1", "conversation_id": "conv-1", "status": "completed"},
	})
	fake.HandleJSON(http.MethodGet, "/v3/chat/conversations/conv-1/messages", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{"messages": []any{
			map[string]any{"role": "assistant", "type": "answer", "content": "hi there"},
		}},
	})
	session := connectTestServer(t, fake, "")

	args := map[string]any{"bot_id": "bot-1", "message": "hello"}
	first, result := callToolJSON(t, session, "chat", args)
	if result.IsError {
		t.Fatalf("chat returned error result: %v", result.Content)
	}
	second, _ := callToolJSON(t, session, "chat", args)

	if first["user_id_generated"] != true {
		t.Error("user_id_generated should be true when user_id is omitted")
	}
	if first["user_id"] == "" || first["user_id"] == second["user_id"] {
		t.Errorf("generated user ids must be distinct, got %v and %v", first["user_id"], second["user_id"])
	}
	if first["reply"] != "hi there" {
		t.Errorf("reply = %v, want %q", first["reply"], "hi there")
	}
}

func TestProtocol_Chat_ExplicitUserIDPreserved(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodPost, "/v3/chat", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{"id": "chat-1", "conversation_id": "conv-1", "status": "completed"},
	})
	fake.HandleJSON(http.MethodGet, "/v3/chat/conversations/conv-1/messages", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{"messages": []any{}},
	})
	session := connectTestServer(t, fake, "")

	parsed, _ := callToolJSON(t, session, "chat", map[string]any{
		"bot_id": "bot-1", "message": "hello", "user_id": "caller-7",
	})
	if parsed["user_id"] != "caller-7" {
		t.Errorf("user_id = %v, want caller-7", parsed["user_id"])
	}
	if generated, ok := parsed["user_id_generated"]; ok && generated == true {
		t.Error("user_id_generated must not be set for an explicit user_id")
	}
}

func TestProtocol_Chat_MissingArgs(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "")

	// Depending on SDK schema enforcement the rejection arrives either as a
	// protocol error or as an error-flagged result; both are acceptable, a
	// network call is not.
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "chat",
		Arguments: map[string]any{"message": "hello"},
	})
	if err == nil && !result.IsError {
		t.Fatal("chat without bot_id should be rejected")
	}
	if len(fake.Requests()) != 0 {
		t.Errorf("chat without bot_id made %d network calls, want 0", len(fake.Requests()))
	}
}

func TestProtocol_ChatStream(t *testing.T) {
	var b testutil.StreamBuilder
	b.Event(t, "conversation.message.delta", map[string]any{"content": "str", "conversation_id": "conv-1", "id": "chat-1"})
	b.Event(t, "conversation.message.delta", map[string]any{"content": "eamed"})
	b.Event(t, "conversation.chat.completed", map[string]any{"id": "chat-1", "conversation_id": "conv-1", "status": "completed"})
	body := b.String()

	fake := testutil.NewFakeCoze(t)
	fake.Handle(http.MethodPost, "/v3/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(body))
	})
	session := connectTestServer(t, fake, "")

	parsed, result := callToolJSON(t, session, "chat_stream", map[string]any{"bot_id": "bot-1", "message": "hello"})
	if result.IsError {
		t.Fatalf("chat_stream returned error result: %v", result.Content)
	}
	if parsed["reply"] != "streamed" {
		t.Errorf("reply = %v, want %q", parsed["reply"], "streamed")
	}
	if parsed["status"] != "completed" {
		t.Errorf("status = %v, want completed", parsed["status"])
	}
}

func TestProtocol_CreateDataset_ValidationError(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "space-1")

	_, result := callToolJSON(t, session, "create_dataset", map[string]any{
		"name":        strings.Repeat("x", 101),
		"format_type": 0,
	})
	if !result.IsError {
		t.Fatal("create_dataset with an over-long name should return an error result")
	}
	if len(fake.Requests()) != 0 {
		t.Errorf("local validation made %d network calls, want 0", len(fake.Requests()))
	}
}

func TestProtocol_CreateDataset_MissingFormatType(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	session := connectTestServer(t, fake, "space-1")

	// Depending on SDK schema enforcement the rejection arrives either as a
	// protocol error or as an error-flagged result; both are acceptable, a
	// network call is not.
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "create_dataset",
		Arguments: map[string]any{"name": "docs"},
	})
	if err == nil && !result.IsError {
		t.Fatal("create_dataset without format_type should be rejected")
	}
	if len(fake.Requests()) != 0 {
		t.Errorf("create_dataset without format_type made %d network calls, want 0", len(fake.Requests()))
	}
}

func TestProtocol_UploadDocument(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodPost, "/open_api/knowledge/document/create", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{"document_ids": []any{"doc-1"}},
	})
	session := connectTestServer(t, fake, "")

	path := filepath.Join(t.TempDir(), "guide.txt")
	if err := os.WriteFile(path, []byte("content"), 0o600); err != nil {
		t.Fatal(err)
	}

	parsed, result := callToolJSON(t, session, "upload_document_to_knowledge_base", map[string]any{
		"dataset_id": "ds-1",
		"file_path":  path,
	})
	if result.IsError {
		t.Fatalf("upload returned error result: %v", result.Content)
	}
	ids, ok := parsed["document_ids"].([]any)
	if !ok || len(ids) != 1 || ids[0] != "doc-1" {
		t.Errorf("document_ids = %v, want [doc-1]", parsed["document_ids"])
	}
}

func TestProtocol_ListKnowledgeBases_DefaultsToSummary(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/datasets", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{
			"dataset_list": []any{map[string]any{"id": "ds-1", "name": "docs", "doc_count": 2, "space_id": "space-1"}},
			"total_count":  1,
		},
	})
	session := connectTestServer(t, fake, "space-1")

	parsed, result := callToolJSON(t, session, "list_knowledge_bases", map[string]any{"page_num": 2})
	if result.IsError {
		t.Fatalf("list_knowledge_bases returned error result: %v", result.Content)
	}
	datasets, ok := parsed["datasets"].([]any)
	if !ok || len(datasets) != 1 {
		t.Fatalf("datasets = %v, want one entry", parsed["datasets"])
	}
	first := datasets[0].(map[string]any)
	if first["dataset_id"] != "ds-1" {
		t.Errorf("dataset_id = %v, want ds-1", first["dataset_id"])
	}
	if first["document_count"] != float64(2) {
		t.Errorf("document_count = %v, want the list-view count", first["document_count"])
	}
	if _, detailedField := first["space_id"]; detailedField {
		t.Error("summary records must not carry detail-only fields")
	}
	// No accurate_counts means no per-record detail fetches.
	if got := len(fake.Requests()); got != 1 {
		t.Errorf("made %d requests, want only the list call", got)
	}
	if got := fake.LastRequest().Query.Get("page_num"); got != "2" {
		t.Errorf("page_num query = %q, want 2", got)
	}
}

func TestProtocol_ListKnowledgeBases_AccurateCountsDetailed(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/datasets", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{
			"dataset_list": []any{map[string]any{"id": "ds-1", "name": "docs", "doc_count": 2, "space_id": "space-1"}},
			"total_count":  1,
		},
	})
	fake.HandleJSON(http.MethodGet, "/open_api/knowledge/dataset", http.StatusOK, map[string]any{
		"code": 0,
		"data": map[string]any{"file_list": []any{"a", "b", "c"}},
	})
	session := connectTestServer(t, fake, "space-1")

	parsed, result := callToolJSON(t, session, "list_knowledge_bases", map[string]any{
		"accurate_counts": true,
		"detailed":        true,
	})
	if result.IsError {
		t.Fatalf("list_knowledge_bases returned error result: %v", result.Content)
	}
	datasets, ok := parsed["datasets"].([]any)
	if !ok || len(datasets) != 1 {
		t.Fatalf("datasets = %v, want one entry", parsed["datasets"])
	}
	first := datasets[0].(map[string]any)
	if first["document_count"] != float64(3) {
		t.Errorf("document_count = %v, want the detail-view file count", first["document_count"])
	}
	if first["space_id"] != "space-1" {
		t.Errorf("space_id = %v, detailed records carry the full record", first["space_id"])
	}
	if got := len(fake.Requests()); got != 2 {
		t.Errorf("made %d requests, want list plus one detail fetch", got)
	}
}
