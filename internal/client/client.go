// ABOUTME: HTTP client adapter for the security alert backend API
// ABOUTME: Attaches the bearer credential and normalizes every failure into apierr.Error

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/drake-forum/technoshield/internal/apierr"
	"github.com/drake-forum/technoshield/internal/querykey"
)

// APIPrefix is the path prefix every endpoint lives under.
const APIPrefix = "/api/v1"

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// Credentials is the read side of the session store plus the two mutations
// the adapter is allowed to trigger.
type Credentials interface {
	Token() string
	SetCredential(token string) error
	ClearCredential() error
}

// Client is the API client for the alert backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	logger     *slog.Logger
	logins     singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request upper bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

// New creates a new API client with the given base URL
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		creds:  creds,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ErrorResponse is the body of a failed request. FastAPI sends detail,
// other handlers send error.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Request issues one HTTP request and returns the raw JSON body.
// body may be nil, url.Values (sent as a form), or any JSON-encodable value.
// It never retries.
func (c *Client) Request(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	return c.do(ctx, method, path, params, body, true)
}

// Fetch performs the GET identified by key. It satisfies the query cache's fetcher.
func (c *Client) Fetch(ctx context.Context, key querykey.Key) (json.RawMessage, error) {
	return c.Request(ctx, http.MethodGet, key.Endpoint(), key.Values(), nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any, clearOnAuthFailure bool) (json.RawMessage, error) {
	target := c.baseURL + APIPrefix + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, apierr.Parse("failed to encode request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apierr.Network("failed to create request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// Credential is read per request; in-flight requests keep what they were sent with.
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		reqErr := c.handleRequestError(ctx, err)
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"request_id", requestID,
			"error", reqErr.Error(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return nil, reqErr
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		return nil, c.handleRequestError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := handleErrorResponse(resp.StatusCode, data)
		if clearOnAuthFailure && statusErr.IsAuthFailure() {
			if clearErr := c.creds.ClearCredential(); clearErr != nil {
				c.logger.Warn("failed to clear credential", "error", clearErr)
			}
		}
		return nil, statusErr
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, apierr.Parse("invalid response from backend", errors.New("body is not valid JSON"))
	}
	return json.RawMessage(data), nil
}

func (c *Client) handleRequestError(ctx context.Context, err error) *apierr.Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return apierr.Network("request canceled", context.Canceled)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apierr.Timeout("request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apierr.Timeout("request timed out", err)
	}
	return apierr.Network(fmt.Sprintf("cannot connect to backend at %s", c.baseURL), err)
}

func handleErrorResponse(status int, data []byte) *apierr.Error {
	var errResp ErrorResponse
	if err := json.Unmarshal(data, &errResp); err != nil {
		return apierr.HTTPStatus(status, fmt.Sprintf("backend returned status %d", status))
	}

	if len(errResp.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(errResp.Detail, &detail); err == nil {
			return apierr.HTTPStatus(status, detail)
		}
		// Validation errors arrive as a list; show them verbatim
		return apierr.HTTPStatus(status, string(errResp.Detail))
	}
	if errResp.Error != "" {
		return apierr.HTTPStatus(status, errResp.Error)
	}
	return apierr.HTTPStatus(status, fmt.Sprintf("backend returned status %d", status))
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// Decode converts a raw body into T, mapping failures to parse errors.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, apierr.Parse("invalid response from backend", err)
	}
	return out, nil
}
