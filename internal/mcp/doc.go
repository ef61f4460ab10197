// Package mcp implements a Model Context Protocol (MCP) server bridging to
// the Coze conversational AI platform.
//
// The server exposes Coze platform operations as MCP tools, enabling
// integration with Cursor, Claude Code, and other MCP clients. An LLM client
// can list a workspace's bots and knowledge bases, create datasets, upload
// documents, and chat with bots synchronously or over the streaming API.
//
// # Architecture
//
//	MCP Client (Cursor, Claude Code, etc.)
//	     |
//	     | (MCP protocol over stdio)
//	     |
//	     v
//	Server (MCP SDK)
//	     |
//	     +-- Tool Registry (maps tool names to handlers)
//	     |
//	     v
//	coze.Client (REST + SSE against the Coze API)
//
// # Supported Tools
//
//   - ping: connectivity probe
//   - list_bots: list bots in a workspace
//   - list_conversations: list conversations held with a bot
//   - list_knowledge_bases: list datasets in a workspace
//   - create_dataset: create a dataset
//   - upload_document_to_knowledge_base: register a local file as a document
//   - chat: send a message and poll to completion
//   - chat_stream: send a message over SSE and return the assembled reply
//
// # Tool Handler Pattern
//
// Tool handlers follow Go's net/http.Handler pattern:
//
//  1. Define input schema struct with JSON tags and descriptions
//  2. Infer JSON schema using jsonschema-go
//  3. Register handler using mcp.AddTool with inline logic
//
// # Error Handling
//
// The server distinguishes between two types of errors:
//
//   - System errors: implementation bugs or schema inference failures.
//     Returned as MCP protocol errors.
//
//   - Tool errors: bad arguments, upstream API failures, auth problems.
//     Returned as a successful response with IsError=true, so the calling
//     model can read the reason and adjust.
//
// # Thread Safety
//
// The server is safe for concurrent use. The underlying transport and
// message handling is managed by the MCP SDK; the coze.Client serializes
// nothing and is itself concurrency-safe.
package mcp
