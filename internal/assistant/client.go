package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
)

// Client provides access to the Power BI assistant backend
type Client struct {
	baseURL   string
	apiKey    string
	sessionID string
	timeout   time.Duration
	logger    *zap.Logger

	httpClient *http.Client
	// streamClient serves answers; only the wait for response headers is bounded
	streamClient *http.Client
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithAPIKey sets the bearer token sent with every request
func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithSessionID pins every ask to one backend session instead of the conversation id
func WithSessionID(sessionID string) ClientOption {
	return func(c *Client) {
		c.sessionID = sessionID
	}
}

// WithHTTPClient sets a custom HTTP client, used for answers as well
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds plain requests end to end and answers up to their response headers
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new backend client. An empty baseURL targets a local backend.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("assistant")

	if c.httpClient != nil {
		c.streamClient = c.httpClient
	} else {
		c.httpClient = &http.Client{Timeout: c.timeout}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = c.timeout
		c.streamClient = &http.Client{Transport: transport}
	}

	return c
}

// BaseURL returns the backend root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError represents an error reported by the backend
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.StatusCode, e.Message)
}

// newRequest builds a request with the backend headers set
func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON sends a request and decodes a JSON reply into out when out is non-nil
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleError(resp)
	}

	if out == nil {
		return nil
	}
	return decodeJSON(resp.Body, out)
}

// setHeaders sets the required headers for API requests
func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json, text/event-stream")
}

// handleError processes error responses from the API
func (c *Client) handleError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	// FastAPI wraps HTTPException messages in {"detail": ...}
	var detail struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &detail) == nil {
		if detail.Detail != "" {
			bodyStr = detail.Detail
		} else if detail.Error != "" {
			bodyStr = detail.Error
		}
	}

	logBody := bodyStr
	if len(logBody) > 500 {
		logBody = logBody[:500] + "..."
	}
	c.logger.Warn("API error", zap.Int("status", resp.StatusCode), zap.String("body", logBody))

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    bodyStr,
	}
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
