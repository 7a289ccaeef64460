package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerChannel   = "X-Channel"
	headerTimestamp = "X-Request-Time"
	headerVersion   = "X-Client-Version"
	headerInitData  = "X-Telegram-Init-Data"
)

// RequestError describes a non-success backend response. ServerMessage holds
// the parsed "message" field from the error body when the backend supplied
// one; StatusText is the transport-level fallback.
type RequestError struct {
	StatusCode    int
	StatusText    string
	ServerMessage string
}

// Error prefers the server-supplied message over the generic status text.
func (e *RequestError) Error() string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	return e.StatusText
}

// Client issues authenticated POST requests against the configured backend
// origin. It imposes no retry and no timeout of its own; callers own the
// context deadline if they want one.
type Client struct {
	baseURL       string
	channel       string
	clientVersion string
	initData      string
	httpClient    *http.Client
	logger        *slog.Logger
	now           func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client. Used in tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock substitutes the timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New builds a request client for the given backend origin. initData may be
// empty; the token header is only attached when a token was captured.
func New(baseURL, channel, clientVersion, initData string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		channel:       channel,
		clientVersion: clientVersion,
		initData:      initData,
		httpClient:    http.DefaultClient,
		logger:        logger,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send POSTs the payload as JSON to baseURL+path and returns the raw response
// body. Non-2xx responses produce a *RequestError.
func (c *Client) Send(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerChannel, c.channel)
	req.Header.Set(headerTimestamp, strconv.FormatInt(c.now().UnixMilli(), 10))
	req.Header.Set(headerVersion, c.clientVersion)
	if c.initData != "" {
		req.Header.Set(headerInitData, c.initData)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reqErr := &RequestError{
			StatusCode: resp.StatusCode,
			StatusText: resp.Status,
		}
		var serverErr struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(respBody, &serverErr); err == nil {
			reqErr.ServerMessage = serverErr.Message
		}
		c.logger.Warn("backend call failed",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("message", reqErr.ServerMessage),
		)
		return nil, reqErr
	}

	return respBody, nil
}
