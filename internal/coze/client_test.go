package coze

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cozekit/cozemcp/internal/log"
	"github.com/cozekit/cozemcp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, fake *testutil.FakeCoze, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:         fake.URL(),
		Token:           "test-token",
		PollInterval:    time.Millisecond,
		PollMaxAttempts: 5,
		Logger:          log.NewNop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	client, err := NewClient(cfg)
	require.NoError(t, err)
	return client
}

func TestExecute_SetsAuthHeaders(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/bots", http.StatusOK, map[string]any{"code": 0})
	client := newTestClient(t, fake)

	_, err := client.Execute(context.Background(), Request{Endpoint: "/v1/bots", Method: http.MethodGet})
	require.NoError(t, err)

	req := fake.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "Bearer test-token", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
}

func TestExecute_QueryEncoding(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/bots", http.StatusOK, map[string]any{"code": 0})
	client := newTestClient(t, fake)

	_, err := client.Execute(context.Background(), Request{
		Endpoint: "/v1/bots",
		Method:   http.MethodGet,
		Params: map[string]any{
			"name":      "my bot",
			"page_num":  3,
			"published": true,
			"skipped":   []string{"not", "encodable"},
		},
	})
	require.NoError(t, err)

	query := fake.LastRequest().Query
	assert.Equal(t, "my bot", query.Get("name"))
	assert.Equal(t, "3", query.Get("page_num"))
	assert.Equal(t, "true", query.Get("published"))
	assert.False(t, query.Has("skipped"))
}

func TestExecute_AuthenticationError(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/bots", http.StatusUnauthorized, map[string]any{"msg": "Unauthorized"})
	client := newTestClient(t, fake)

	_, err := client.Execute(context.Background(), Request{Endpoint: "/v1/bots", Method: http.MethodGet})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindAuthentication))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unauthorized", apiErr.Message)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestExecute_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusBadRequest, KindBadRequest},
		{http.StatusForbidden, KindAuthorization},
		{http.StatusNotFound, KindNotFound},
		{http.StatusTooManyRequests, KindRateLimit},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
	}
	for _, tt := range tests {
		fake := testutil.NewFakeCoze(t)
		fake.HandleJSON(http.MethodGet, "/x", tt.status, map[string]any{"msg": "boom"})
		client := newTestClient(t, fake)

		_, err := client.Execute(context.Background(), Request{Endpoint: "/x", Method: http.MethodGet})
		assert.True(t, IsKind(err, tt.kind), "status %d should map to %s, got %v", tt.status, tt.kind, err)
	}
}

func TestErrorFromResponse_MessageFallbacks(t *testing.T) {
	err := errorFromResponse(400, []byte(`{"msg":"from msg"}`))
	assert.Equal(t, "from msg", err.Message)

	err = errorFromResponse(400, []byte(`{"message":"from message"}`))
	assert.Equal(t, "from message", err.Message)

	err = errorFromResponse(400, []byte(`plain text body`))
	assert.Equal(t, "plain text body", err.Message)
}

func TestExecute_CacheServesRepeatGETs(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodGet, "/v1/datasets", http.StatusOK, map[string]any{"code": 0})
	client := newTestClient(t, fake, func(cfg *Config) { cfg.CacheTTL = time.Minute })

	req := Request{Endpoint: "/v1/datasets", Method: http.MethodGet, Params: map[string]any{"space_id": "s1"}}
	_, err := client.Execute(context.Background(), req)
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, fake.Requests(), 1)
}

func TestExecute_CacheIgnoresPOSTs(t *testing.T) {
	fake := testutil.NewFakeCoze(t)
	fake.HandleJSON(http.MethodPost, "/v1/datasets", http.StatusOK, map[string]any{"code": 0})
	client := newTestClient(t, fake, func(cfg *Config) { cfg.CacheTTL = time.Minute })

	req := Request{Endpoint: "/v1/datasets", Method: http.MethodPost, Body: map[string]any{"name": "x"}}
	_, err := client.Execute(context.Background(), req)
	require.NoError(t, err)
	_, err = client.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, fake.Requests(), 2)
}

func TestResponse_ObjectToleratesNonJSON(t *testing.T) {
	resp := &Response{Body: []byte("<html>gateway error</html>")}
	obj := resp.Object()
	assert.Equal(t, "<html>gateway error</html>", obj["raw"])
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(Config{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, defaultPollInterval, client.pollInterval)
	assert.Equal(t, defaultPollMaxAttempts, client.pollMaxAttempts)
	assert.Nil(t, client.limiter)
	assert.Nil(t, client.cache)
}
