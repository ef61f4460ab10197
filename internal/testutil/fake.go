// Package testutil provides test doubles for the Coze API: a scripted fake
// HTTP server and an SSE stream builder.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// RecordedRequest is one request the fake server observed.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// FakeCoze is a scripted stand-in for the Coze API. Handlers are registered
// per method and path; unmatched requests get a JSON 404. All requests are
// recorded for assertions.
type FakeCoze struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest
}

// NewFakeCoze starts the fake server and registers cleanup.
func NewFakeCoze(t *testing.T) *FakeCoze {
	t.Helper()
	f := &FakeCoze{handlers: make(map[string]http.HandlerFunc)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the fake server's base URL.
func (f *FakeCoze) URL() string {
	return f.Server.URL
}

// Handle registers a handler for method + path.
func (f *FakeCoze) Handle(method, path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+path] = h
}

// HandleJSON registers a fixed JSON response for method + path.
func (f *FakeCoze) HandleJSON(method, path string, status int, body any) {
	f.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, body)
	})
}

// HandleSequence registers a handler that walks through the given responses
// one per call, repeating the last one once exhausted. Useful for scripting
// chat status polls.
func (f *FakeCoze) HandleSequence(method, path string, bodies ...any) {
	var mu sync.Mutex
	call := 0
	f.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := min(call, len(bodies)-1)
		call++
		mu.Unlock()
		WriteJSON(w, http.StatusOK, bodies[i])
	})
}

// Requests returns a snapshot of everything observed so far.
func (f *FakeCoze) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RecordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// LastRequest returns the most recent request, or nil when none arrived.
func (f *FakeCoze) LastRequest() *RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	r := f.requests[len(f.requests)-1]
	return &r
}

func (f *FakeCoze) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	handler := f.handlers[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if handler == nil {
		WriteJSON(w, http.StatusNotFound, map[string]any{"msg": "no handler for " + r.URL.Path})
		return
	}
	handler(w, r)
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
