package coze

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// StreamEventKind tags the events a streaming chat can emit.
type StreamEventKind string

const (
	EventMessageDelta   StreamEventKind = "message_delta"
	EventChatCompleted  StreamEventKind = "chat_completed"
	EventChatInProgress StreamEventKind = "chat_in_progress"
	EventChatFailed     StreamEventKind = "chat_failed"
	EventRequiresAction StreamEventKind = "requires_action"
	EventDone           StreamEventKind = "done"
	EventError          StreamEventKind = "error"
	// EventUnknown covers event names this decoder does not model; the raw
	// payload is still attached so callers can choose to inspect it.
	EventUnknown StreamEventKind = "unknown"
)

// StreamEvent is one decoded SSE frame. Immutable once produced.
type StreamEvent struct {
	Kind StreamEventKind
	// Content is the text delta for message_delta events.
	Content string
	// ConversationID/ChatID are set when the payload carries them.
	ConversationID string
	ChatID         string
	// Usage is set on completion events that report token counters.
	Usage *Usage
	// Err carries the business error for chat_failed payloads.
	Err Object
	// Raw is the decoded payload object, nil for the [DONE] sentinel.
	Raw Object
}

// eventKinds maps the platform's dotted event names (and the bare forms some
// proxies emit) onto the decoder's tags.
var eventKinds = map[string]StreamEventKind{
	"conversation.message.delta":        EventMessageDelta,
	"conversation.chat.completed":       EventChatCompleted,
	"conversation.chat.in_progress":     EventChatInProgress,
	"conversation.chat.created":         EventChatInProgress,
	"conversation.chat.failed":          EventChatFailed,
	"conversation.chat.requires_action": EventRequiresAction,
	"message.delta":                     EventMessageDelta,
	"done":                              EventDone,
	"error":                             EventError,
}

// terminal reports whether the event closes the stream.
func (e *StreamEvent) terminal() bool {
	switch e.Kind {
	case EventDone, EventChatCompleted, EventChatFailed:
		return true
	}
	return false
}

// StreamDecoder incrementally parses Server-Sent-Events frames off a byte
// stream. It line-buffers internally, so a single read delivering several
// frames yields every one of them — the transport's chunking is invisible
// here.
type StreamDecoder struct {
	scanner   *bufio.Scanner
	eventName string
}

// NewStreamDecoder wraps an open response body (or any reader).
func NewStreamDecoder(r io.Reader) *StreamDecoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &StreamDecoder{scanner: scanner}
}

// Next returns the next decoded event. io.EOF signals a cleanly exhausted
// stream; a mid-stream business error (nonzero `code` in a data payload)
// surfaces as a *Error of KindUpstream.
func (d *StreamDecoder) Next() (*StreamEvent, error) {
	for d.scanner.Scan() {
		// Invalid UTF-8 is replaced, never rejected: the payload text is for
		// humans and a mangled rune beats a dead stream.
		line := strings.ToValidUTF8(d.scanner.Text(), "�")
		switch {
		case line == "":
			d.eventName = ""
			continue
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "event:"):
			d.eventName = strings.TrimSpace(line[len("event:"):])
			continue
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimSpace(line[len("data:"):])
			event, err := d.decodePayload(payload)
			if err != nil {
				return nil, err
			}
			if event != nil {
				return event, nil
			}
		}
	}
	if err := d.scanner.Err(); err != nil {
		return nil, classifyTransport(err)
	}
	return nil, io.EOF
}

func (d *StreamDecoder) decodePayload(payload string) (*StreamEvent, error) {
	if payload == "[DONE]" {
		return &StreamEvent{Kind: EventDone}, nil
	}

	var obj Object
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil, &Error{Kind: KindSerialization, Message: err.Error()}
	}

	// Business errors ride inside 200-status streams.
	if code, ok := asInt(obj, "code"); ok && code != 0 {
		return nil, upstreamError(code, asString(obj, "msg", "message"))
	}

	name := asString(obj, "event")
	if name == "" {
		name = d.eventName
	}
	kind, ok := eventKinds[name]
	if !ok {
		kind = EventUnknown
	}

	// Payloads wrap the interesting part in a `data` sub-field when the
	// event name travels alongside it; bare payloads are used as-is.
	body := unwrapData(obj)

	event := &StreamEvent{
		Kind:           kind,
		ConversationID: asString(body, "conversation_id"),
		ChatID:         asString(body, "id", "chat_id"),
		Raw:            body,
	}
	switch kind {
	case EventMessageDelta:
		event.Content = asString(body, "content")
	case EventChatCompleted:
		if usage, ok := asObject(body, "usage"); ok {
			event.Usage = &Usage{
				InputTokens:  asIntDefault(usage, 0, "input_tokens", "input_count"),
				OutputTokens: asIntDefault(usage, 0, "output_tokens", "output_count"),
				TotalTokens:  asIntDefault(usage, 0, "total_tokens", "token_count"),
			}
		}
	case EventChatFailed, EventError:
		if lastErr, ok := asObject(body, "last_error"); ok {
			event.Err = lastErr
		} else {
			event.Err = body
		}
	}
	return event, nil
}

// StreamOutcome is the accumulated result of a streaming chat.
type StreamOutcome struct {
	ConversationID string `json:"conversation_id"`
	ChatID         string `json:"chat_id"`
	Status         string `json:"status"`
	Reply          string `json:"reply"`
	Events         int    `json:"events"`
	Usage          *Usage `json:"usage,omitempty"`
	LastError      Object `json:"last_error,omitempty"`
}

// ChatStream runs a streaming chat: opens the SSE response and folds the
// event stream into a single outcome, concatenating message deltas and
// stopping at the first terminal event. The response body stays open for the
// duration; chunks are pulled as the transport delivers them.
func (c *Client) ChatStream(ctx context.Context, in ChatInput) (*StreamOutcome, error) {
	if in.BotID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "bot_id is required"}
	}
	if in.Message == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "message is required"}
	}
	if in.UserID == "" {
		return nil, &Error{Kind: KindBadRequest, Message: "user_id is required"}
	}

	endpoint := c.baseURL + endpointChat
	if in.ConversationID != "" {
		endpoint += "?" + encodeParams(map[string]any{"conversation_id": in.ConversationID})
	}

	encoded, err := json.Marshal(chatRequestBody(in, true))
	if err != nil {
		return nil, &Error{Kind: KindSerialization, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, &Error{Kind: KindConfig, Message: err.Error()}
	}
	c.setCommonHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, errorFromResponse(resp.StatusCode, raw)
	}

	outcome := &StreamOutcome{Status: ChatStatusInProgress}
	var reply strings.Builder
	decoder := NewStreamDecoder(resp.Body)
	for {
		event, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		outcome.Events++
		if event.ConversationID != "" {
			outcome.ConversationID = event.ConversationID
		}
		if event.ChatID != "" {
			outcome.ChatID = event.ChatID
		}
		switch event.Kind {
		case EventMessageDelta:
			reply.WriteString(event.Content)
		case EventChatCompleted:
			outcome.Status = ChatStatusCompleted
			outcome.Usage = event.Usage
		case EventChatFailed:
			outcome.Status = ChatStatusFailed
			outcome.LastError = event.Err
		case EventRequiresAction:
			outcome.Status = ChatStatusRequiresAction
		case EventDone:
			if outcome.Status == ChatStatusInProgress {
				outcome.Status = ChatStatusCompleted
			}
		}
		if event.terminal() {
			break
		}
	}
	outcome.Reply = reply.String()
	return outcome, nil
}
