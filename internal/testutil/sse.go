package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// StreamBuilder composes Server-Sent-Events bodies for fake streaming
// responses. Lines follow the W3C framing: optional "event:" line, one
// "data:" line, blank line terminator.
type StreamBuilder struct {
	b strings.Builder
}

// Event appends one frame with an event name and a JSON payload.
func (s *StreamBuilder) Event(t *testing.T, name string, payload any) *StreamBuilder {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal SSE payload: %v", err)
	}
	s.b.WriteString("event: " + name + "\n")
	s.b.WriteString("data: " + string(data) + "\n\n")
	return s
}

// Data appends a frame carrying a raw data line with no event name.
func (s *StreamBuilder) Data(raw string) *StreamBuilder {
	s.b.WriteString("data: " + raw + "\n\n")
	return s
}

// Comment appends an SSE comment line, which decoders must skip.
func (s *StreamBuilder) Comment(text string) *StreamBuilder {
	s.b.WriteString(": " + text + "\n")
	return s
}

// Done appends the [DONE] sentinel frame.
func (s *StreamBuilder) Done() *StreamBuilder {
	return s.Data("[DONE]")
}

// String returns the accumulated body.
func (s *StreamBuilder) String() string {
	return s.b.String()
}
