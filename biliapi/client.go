/*
Package biliapi implements the remote API client for the dynamic cleaner.

It covers the four endpoints the pipeline depends on: the paginated feed
listing, the giveaway status lookup, the dynamic deletion call, and the
unfollow call. Every call waits on a shared token bucket, carries a per-call
timeout, and classifies the response into the pipeline's error taxonomy
instead of surfacing raw transport errors.
*/
package biliapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dynsweep/bili-dynamic-cleaner/config"
	"github.com/dynsweep/bili-dynamic-cleaner/monitoring"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ErrorKind classifies a failed remote call
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate_limit"
	KindAuth      ErrorKind = "auth_invalid"
	KindProtocol  ErrorKind = "protocol"
)

// APIError is a classified remote call failure
type APIError struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error (code %d)", e.Kind, e.Code)
}

// KindOf extracts the error kind, defaulting to network for plain errors
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetwork
}

// TokenProvider supplies the current session credentials. It is invoked
// immediately before every mutating call because the session can be
// invalidated externally at any time; implementations must not cache.
type TokenProvider func() (config.Credentials, error)

// Client talks to the remote platform API
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        config.BiliConfig
	pipeline   config.PipelineConfig
	tokens     TokenProvider
	logger     *logrus.Logger
}

// NewClient creates a remote API client. The token bucket smooths all
// outgoing calls; per-call timeouts come from the endpoint configuration.
func NewClient(cfg config.BiliConfig, pipeline config.PipelineConfig, tokens TokenProvider, logger *logrus.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst),
		cfg:        cfg,
		pipeline:   pipeline,
		tokens:     tokens,
		logger:     logger,
	}
}

// apiResponse is the common response envelope of the platform API
type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// doRequest executes one HTTP call: limiter wait, timeout, envelope decode.
// Transport failures come back as APIError with kind network or timeout.
func (c *Client) doRequest(ctx context.Context, endpoint string, req *http.Request, timeout time.Duration) (*apiResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &APIError{Kind: KindNetwork, Message: err.Error()}
	}

	// The session cookie authenticates every endpoint and can be rotated
	// externally, so it is re-read on each call.
	creds, err := c.tokens()
	if err != nil {
		return nil, &APIError{Kind: KindAuth, Message: fmt.Sprintf("credentials unavailable: %v", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(callCtx)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if creds.SessionCookie != "" {
		req.Header.Set("Cookie", creds.SessionCookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		monitoring.RecordAPICall(endpoint, "transport_error", time.Since(start).Seconds())
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		monitoring.RecordAPICall(endpoint, "transport_error", time.Since(start).Seconds())
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		monitoring.RecordAPICall(endpoint, fmt.Sprintf("http_%d", resp.StatusCode), time.Since(start).Seconds())
		kind := KindProtocol
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = KindRateLimit
		}
		return nil, &APIError{Kind: kind, Code: resp.StatusCode, Message: fmt.Sprintf("unexpected HTTP status %d", resp.StatusCode)}
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		monitoring.RecordAPICall(endpoint, "decode_error", time.Since(start).Seconds())
		return nil, &APIError{Kind: KindProtocol, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}

	monitoring.RecordAPICall(endpoint, "ok", time.Since(start).Seconds())
	return &envelope, nil
}

// get issues a GET call against the given base URL
func (c *Client) get(ctx context.Context, endpoint, url string, timeout time.Duration) (*apiResponse, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, &APIError{Kind: KindProtocol, Message: err.Error()}
	}
	return c.doRequest(ctx, endpoint, req, timeout)
}

// postJSON issues a POST call with a JSON body
func (c *Client) postJSON(ctx context.Context, endpoint, url string, payload interface{}, timeout time.Duration) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Kind: KindProtocol, Message: err.Error()}
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Kind: KindProtocol, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doRequest(ctx, endpoint, req, timeout)
}

// postForm issues a POST call with a form-encoded body
func (c *Client) postForm(ctx context.Context, endpoint, url, form string, timeout time.Duration) (*apiResponse, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader([]byte(form)))
	if err != nil {
		return nil, &APIError{Kind: KindProtocol, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.doRequest(ctx, endpoint, req, timeout)
}

// classifyTransportError distinguishes timeouts from other network failures
func classifyTransportError(err error) *APIError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Kind: KindTimeout, Message: err.Error()}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Kind: KindTimeout, Message: err.Error()}
	}
	return &APIError{Kind: KindNetwork, Message: err.Error()}
}

// sleepCtx waits for the given duration unless the context is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
