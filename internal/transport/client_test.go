package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-key",
		WithRetryPolicy(RetryPolicy{
			MaxAttempts: 3,
			Backoff:     []time.Duration{time.Millisecond, time.Millisecond},
		}),
		WithRateLimit(1000),
	)
	return client, server
}

func TestGetJSON_SendsBearerAndProduct(t *testing.T) {
	var gotAuth, gotAgent string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`{"ok":true}`))
	})
	client.product = "prowl-go/test"

	var result map[string]any
	err := client.GetJSON(context.Background(), "/v1/crawl/abc", &result)

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "prowl-go/test", gotAgent)
	assert.Equal(t, true, result["ok"])
}

func TestGetJSON_RetriesOnBadGateway(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	})

	var result map[string]any
	err := client.GetJSON(context.Background(), "/v1/crawl/abc", &result)

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_BadGatewayExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	err := client.GetJSON(context.Background(), "/v1/crawl/abc", &map[string]any{})

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusBadGateway, remoteErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_NonRetryableErrorSurfacesImmediately(t *testing.T) {
	var calls atomic.Int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid token"}`))
	})

	err := client.GetJSON(context.Background(), "/v1/crawl/abc", &map[string]any{})

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusUnauthorized, remoteErr.StatusCode)
	assert.Equal(t, "invalid token", remoteErr.Message)
	assert.Equal(t, "/v1/crawl/abc", remoteErr.Endpoint)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON_MarshalsBody(t *testing.T) {
	var gotBody string
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.Write([]byte(`{"success":true}`))
	})

	err := client.PostJSON(context.Background(), "/v1/crawl", map[string]string{"url": "https://example.com"}, &map[string]any{})

	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://example.com"}`, gotBody)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client.retry = RetryPolicy{MaxAttempts: 5, Backoff: []time.Duration{time.Minute}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := client.GetJSON(ctx, "/v1/crawl/abc", &map[string]any{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGetJSON_ZeroValueRetryPolicyStillSendsRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, "test-key",
		WithRetryPolicy(RetryPolicy{}),
		WithRateLimit(1000),
	)

	var result map[string]any
	err := client.GetJSON(context.Background(), "/v1/crawl/abc", &result)

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, true, result["ok"])
}
