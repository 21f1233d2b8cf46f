package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/piresc/topup/internal/pkg/circuitbreaker"
	nrpkg "github.com/piresc/topup/internal/pkg/newrelic"
)

// DefaultTimeout applies when Config.Timeout is zero
const DefaultTimeout = 10 * time.Second

// maxBodyBytes bounds how much of a response is read into memory
const maxBodyBytes = 1 << 20

// ErrTransport marks failures where no HTTP response was received
var ErrTransport = errors.New("http transport failure")

// HTTPError is returned for 5xx responses
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("server error: status %d", e.StatusCode)
}

// IsServerFailure reports whether err means the remote side could not serve
// the request: transport errors, timeouts, 5xx and an open breaker
func IsServerFailure(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *HTTPError
	return errors.Is(err, ErrTransport) ||
		errors.As(err, &httpErr) ||
		errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests)
}

// Config configures a Client
type Config struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	// Breaker is optional; when set every call goes through it
	Breaker *circuitbreaker.CircuitBreaker
}

// Response is a fully read HTTP response with a status below 500
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the body into v
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Client is a JSON HTTP client for calling a single remote API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new HTTP client
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	headers := make(map[string]string, len(config.Headers))
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		breaker:    config.Breaker,
	}
}

// Get performs a GET request against path
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with body encoded as JSON
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var resp *Response
	call := func(ctx context.Context) error {
		var err error
		resp, err = c.send(ctx, method, path, body)
		return err
	}

	var err error
	if c.breaker == nil {
		err = call(ctx)
	} else {
		err = c.breaker.Execute(ctx, call)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	httpResp, err := nrpkg.InstrumentHTTPRequest(ctx, req, func() (*http.Response, error) {
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}

	if httpResp.StatusCode >= http.StatusInternalServerError {
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: respBody}
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}
