package client

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	"github.com/smallnest/genaistack/log"
)

// DefaultBaseURL is where the backend listens in a local setup.
const DefaultBaseURL = "http://localhost:8000/api"

// ErrUnavailable is returned without contacting the backend while the
// circuit breaker is open.
var ErrUnavailable = errors.New("backend temporarily unavailable")

// Client talks to the stack backend. It implements workflow.Gateway and
// chat.Backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics
}

// Option is a function that configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     log.Logger
	breaker    *BreakerSettings
	registerer prometheus.Registerer
}

// WithBaseURL sets the base URL of the API, including the /api prefix.
func WithBaseURL(baseURL string) Option {
	return func(opts *clientOptions) {
		opts.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *clientOptions) {
		opts.httpClient = client
	}
}

// WithToken attaches token as a bearer credential to every request. An
// empty token sends unauthenticated requests.
func WithToken(token string) Option {
	return func(opts *clientOptions) {
		opts.token = token
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// WithCircuitBreaker makes the client fail fast with ErrUnavailable after
// repeated transport or 5xx failures. Requests are never retried.
func WithCircuitBreaker(settings BreakerSettings) Option {
	return func(opts *clientOptions) {
		opts.breaker = &settings
	}
}

// WithMetrics registers request counters and latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(opts *clientOptions) {
		opts.registerer = reg
	}
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	options := &clientOptions{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(options)
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(options.baseURL, "/"),
		httpClient: options.httpClient,
		logger:     options.logger,
	}
	if c.logger == nil {
		c.logger = log.GetDefaultLogger()
	}

	if options.token != "" {
		c.httpClient = withBearer(options.httpClient, options.token)
	}
	if options.breaker != nil {
		c.breaker = newBreaker(*options.breaker, c.logger)
	}
	if options.registerer != nil {
		m, err := newMetrics(options.registerer)
		if err != nil {
			return nil, fmt.Errorf("register client metrics: %w", err)
		}
		c.metrics = m
	}
	return c, nil
}

func withBearer(base *http.Client, token string) *http.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	c := *base
	c.Transport = &oauth2.Transport{Source: src, Base: base.Transport}
	return &c
}

// BaseURL returns the API root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx reply. Detail is the backend's message and is used
// verbatim as the error text.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("backend returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the failure is on the server side.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		apiErr.Detail = strings.TrimSpace(string(body))
		return apiErr
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		apiErr.Detail = s
	} else {
		// Request validation errors carry a list of problems.
		apiErr.Detail = string(payload.Detail)
	}
	return apiErr
}

// do sends a JSON request and decodes a JSON reply into out. op names the
// operation in logs and metrics.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.send(ctx, op, method, path, body, contentType, out)
}

func (c *Client) send(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	start := time.Now()
	respBody, err := c.roundTrip(ctx, method, path, body, contentType)
	c.metrics.observe(op, err == nil, time.Since(start))
	if err != nil {
		c.logger.Debug("%s %s failed: %v", method, path, err)
		return err
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	call := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, parseAPIError(resp.StatusCode, respBody)
		}
		return respBody, nil
	}

	if c.breaker == nil {
		return call()
	}
	res, err := c.breaker.Execute(func() (any, error) { return call() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}
