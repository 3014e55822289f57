package biliapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline() config.PipelineConfig {
	return config.PipelineConfig{
		BatchSize:            5,
		LotteryRetryBase:     time.Millisecond,
		DeleteMaxAttempts:    3,
		DeleteRateLimitDelay: time.Millisecond,
		DeleteErrorDelay:     time.Millisecond,
	}
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	cfg := config.BiliConfig{
		APIBaseURL:        server.URL,
		LotteryBaseURL:    server.URL,
		UserAgent:         "test-agent",
		SubjectUserID:     "12345",
		FeedTimeout:       2 * time.Second,
		LotteryTimeout:    2 * time.Second,
		DeleteTimeout:     2 * time.Second,
		UnfollowTimeout:   2 * time.Second,
		RequestsPerSecond: 1000,
		RequestBurst:      1000,
	}
	tokens := func() (config.Credentials, error) {
		return config.Credentials{CSRFToken: "csrf-token", SessionCookie: "session"}, nil
	}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewClient(cfg, testPipeline(), tokens, logger)
}

func TestFetchFeedPageSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12345", r.URL.Query().Get("host_mid"))
		assert.Equal(t, "cursor1", r.URL.Query().Get("offset"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "session", r.Header.Get("Cookie"))
		w.Write([]byte(`{"code":0,"message":"0","data":{"items":[{"id_str":"111","type":"DYNAMIC_TYPE_FORWARD"}],"offset":"cursor2"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	page, err := client.FetchFeedPage(context.Background(), "12345", "cursor1")

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "111", page.Items[0].IDStr)
	assert.Equal(t, types.TypeForward, page.Items[0].Type)
	assert.Equal(t, "cursor2", page.NextOffset)
}

func TestFetchFeedPageRateLimitSurfaced(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"code":-352,"message":"request too frequent"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchFeedPage(context.Background(), "12345", "")

	require.Error(t, err)
	assert.Equal(t, KindRateLimit, KindOf(err))
	// Rate limits are never retried inside the client
	assert.Equal(t, 1, calls)
}

func TestFetchFeedPageProtocolError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":-101,"message":"not logged in"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchFeedPage(context.Background(), "12345", "")

	require.Error(t, err)
	assert.Equal(t, KindProtocol, KindOf(err))
}

func TestHTTP429ClassifiedAsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.FetchFeedPage(context.Background(), "12345", "")

	require.Error(t, err)
	assert.Equal(t, KindRateLimit, KindOf(err))
}

func TestFetchFeedPageEmptyEndOfFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":0,"data":{"items":[],"offset":""}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	page, err := client.FetchFeedPage(context.Background(), "12345", "last")

	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextOffset)
}

func TestCredentialsFailureSurfacedAsAuthError(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := newTestClient(t, server)
	client.tokens = func() (config.Credentials, error) {
		return config.Credentials{}, assert.AnError
	}

	_, err := client.FetchFeedPage(context.Background(), "12345", "")

	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.Zero(t, calls)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindNetwork, KindOf(assert.AnError))
	assert.Equal(t, KindAuth, KindOf(&APIError{Kind: KindAuth}))
}
