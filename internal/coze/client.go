// Package coze is a client for the Coze open API: a thin, tolerant
// request/response mediation layer. It issues one authenticated HTTP call per
// logical operation, normalizes the several historical response envelopes the
// platform has shipped for the same resources, polls asynchronous chat
// completion, and decodes Server-Sent-Events streams for streaming chat.
package coze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the CN Coze endpoint the original deployment targets.
	DefaultBaseURL = "https://api.coze.cn"

	// DefaultTimeout bounds every individual HTTP request.
	DefaultTimeout = 30 * time.Second

	defaultPollInterval    = 2 * time.Second
	defaultPollMaxAttempts = 30
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API origin, without a trailing slash.
	BaseURL string

	// Token is the bearer token attached to every request.
	Token string

	// Timeout is the per-request HTTP timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	// PollInterval and PollMaxAttempts tune the chat completion poller.
	// Zero values take the defaults (2s, 30 attempts).
	PollInterval    time.Duration
	PollMaxAttempts int

	// RequestsPerSecond enables client-side pacing of outbound calls when
	// positive. Zero disables pacing.
	RequestsPerSecond float64

	// CacheTTL enables the auxiliary GET response cache when positive.
	CacheTTL time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client issues authenticated requests against the Coze API. It is safe for
// concurrent use; each call builds its own request and reads its own
// response, with no shared mutable state beyond the HTTP connection pool.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	token           string
	limiter         *rate.Limiter
	cache           *responseCache
	logger          *slog.Logger
	pollInterval    time.Duration
	pollMaxAttempts int
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, &Error{Kind: KindConfig, Message: fmt.Sprintf("invalid base URL: %v", err)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = defaultPollMaxAttempts
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		baseURL:         cfg.BaseURL,
		token:           cfg.Token,
		logger:          cfg.Logger,
		pollInterval:    cfg.PollInterval,
		pollMaxAttempts: cfg.PollMaxAttempts,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.CacheTTL > 0 {
		c.cache = newResponseCache(cfg.CacheTTL)
	}
	return c, nil
}

// Request describes one outbound API call.
type Request struct {
	Endpoint string
	Method   string
	Headers  map[string]string
	// Params become percent-encoded query parameters: string values are used
	// raw, numbers and bools via their string representation, anything else
	// is skipped.
	Params map[string]any
	Body   any
}

// Response is an immutable snapshot of an upstream reply. The full body is
// read into memory before interpretation; there is no streaming here.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       json.RawMessage
	// Success is derived as status in [200, 400).
	Success bool
}

// Object decodes the response body as a JSON object. A non-JSON body is
// wrapped as {"raw": <text>}, mirroring the tolerant behavior callers rely
// on for error reporting.
func (r *Response) Object() Object {
	var obj Object
	if err := json.Unmarshal(r.Body, &obj); err != nil {
		return Object{"raw": string(r.Body)}
	}
	return obj
}

// Execute issues one authenticated call and classifies failures. Non-2xx
// statuses become taxonomy errors with the message pulled from the body. A
// 2xx response is returned as-is: business `code` fields inside successful
// bodies are the caller's concern, not the gateway's.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	endpoint := c.baseURL + req.Endpoint
	if query := encodeParams(req.Params); query != "" {
		sep := "?"
		if bytes.ContainsRune([]byte(endpoint), '?') {
			sep = "&"
		}
		endpoint += sep + query
	}

	cacheable := c.cache != nil && req.Method == http.MethodGet
	if cacheable {
		if resp, ok := c.cache.get(endpoint); ok {
			return resp, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransport(err)
		}
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindSerialization, Message: err.Error()}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Message: err.Error()}
	}
	c.setCommonHeaders(httpReq)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransport(err)
	}

	c.logger.Debug("api call",
		"method", req.Method,
		"endpoint", req.Endpoint,
		"status", httpResp.StatusCode,
		"elapsed", time.Since(start))

	if httpResp.StatusCode >= 400 {
		return nil, errorFromResponse(httpResp.StatusCode, raw)
	}

	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}
	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    headers,
		Body:       raw,
		Success:    httpResp.StatusCode >= 200 && httpResp.StatusCode < 400,
	}
	if cacheable {
		c.cache.put(endpoint, resp)
	}
	return resp, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

// encodeParams serializes query parameters with percent-encoding. Keys are
// sorted for stable URLs (and stable cache keys).
func encodeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		switch v := params[k].(type) {
		case string:
			values.Set(k, v)
		case bool:
			values.Set(k, strconv.FormatBool(v))
		case int:
			values.Set(k, strconv.Itoa(v))
		case int64:
			values.Set(k, strconv.FormatInt(v, 10))
		case float64:
			values.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return values.Encode()
}
