package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.openai.com"

	maxResponseBytes = 16 * 1024 * 1024
)

var (
	// ErrTransport indicates the request could not be delivered or its response could not be read.
	ErrTransport = errors.New("transport failure")

	// ErrResponseTooLarge indicates the response body exceeded the read limit.
	ErrResponseTooLarge = errors.New("response too large")
)

type Config struct {
	BaseURL string

	// InsecureSkipVerify disables TLS certificate validation. Insecure; only
	// for local proxies with self-signed certificates.
	InsecureSkipVerify bool

	// Timeout bounds a whole request. Zero leaves the request unbounded apart
	// from the caller's context.
	Timeout time.Duration

	// HTTPClient overrides the client built from InsecureSkipVerify and Timeout.
	HTTPClient *http.Client

	Logger *zap.SugaredLogger
}

// Request is one JSON POST against the completion API.
type Request struct {
	Path   string
	APIKey string
	Body   []byte
}

// ResponseHandler receives the raw response. Its return value becomes the
// result of Send. The body is closed by Send after the handler returns.
type ResponseHandler func(resp *http.Response) error

// Sender is implemented by Client and by test doubles.
type Sender interface {
	Send(ctx context.Context, req Request, handle ResponseHandler) error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.InsecureSkipVerify, cfg.Timeout)
	}
	if cfg.InsecureSkipVerify {
		logger.Warnw(
			"TLS certificate verification is disabled",
			"base_url", baseURL,
			"hint", "unset CODEX_INSECURE_SKIP_TLS_VERIFY unless talking to a trusted local proxy",
		)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

func newHTTPClient(insecureSkipVerify bool, timeout time.Duration) *http.Client {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	tr := base.Clone()
	if insecureSkipVerify {
		//nolint:gosec // explicit opt-in, logged at construction.
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send issues exactly one POST and hands the response to handle. Status codes
// are not interpreted here.
func (c *Client) Send(ctx context.Context, req Request, handle ResponseHandler) error {
	if handle == nil {
		return errors.New("response handler is required")
	}

	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrTransport, err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debugw(
		"completion api response",
		"path", req.Path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return handle(resp)
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		return nil, errors.New("request path is required")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(req.Body),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %s", ErrTransport, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	return httpReq, nil
}

// ReadBody reads the whole response body. Callers parse only after the stream
// has ended.
func ReadBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %s", ErrTransport, err.Error())
	}
	if len(body) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

var _ Sender = (*Client)(nil)
