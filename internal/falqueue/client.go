package falqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Static errors for queue client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// FAL_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("falqueue: FAL_API_KEY environment variable is not set")
	// ErrModelIDRequired is returned when the model ID is not provided.
	ErrModelIDRequired = errors.New("falqueue: model ID is required")
	// ErrRequestIDRequired is returned when the request ID is not provided.
	ErrRequestIDRequired = errors.New("falqueue: request ID is required")
	// ErrNoRequestIDReturned is returned when the submit response contains no request ID.
	ErrNoRequestIDReturned = errors.New("falqueue: submit failed: no request ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("falqueue: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("falqueue: rate limited")
	// ErrAllConventionsFailed is returned when every known status calling
	// convention was rejected by the provider.
	ErrAllConventionsFailed = errors.New("falqueue: all status calling conventions failed")
)

// HTTPError is returned for non-2xx responses that are not retried.
// It preserves the status code and body so callers can classify the
// failure (e.g. 402/403 as credit exhaustion).
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("falqueue: request failed with status %d: %s", e.StatusCode, e.Body)
}

// Client defines the interface for interacting with the model endpoints.
type Client interface {
	// Run executes a synchronous model call and returns the decoded
	// response payload.
	Run(ctx context.Context, modelID string, input map[string]any) (map[string]any, error)

	// Submit enqueues an asynchronous request and returns the request ID.
	// webhookURL is optional; when empty the request is poll-only.
	Submit(ctx context.Context, modelID string, input map[string]any, webhookURL string) (requestID string, err error)

	// Status polls a queued request. The returned payload is the raw
	// decoded body; callers run extraction over it.
	Status(ctx context.Context, modelID, requestID string) (StatusResult, error)

	// Result fetches the final output document of a completed request.
	Result(ctx context.Context, modelID, requestID string) (map[string]any, error)

	// FetchResponse retrieves a secondary response document by URL using
	// the client's credentials.
	FetchResponse(ctx context.Context, responseURL string) (map[string]any, error)
}

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	apiKey      string
	queueURL    string
	syncURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithQueueURL sets a custom base URL for the queue API.
func WithQueueURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.queueURL = u
	}
}

// WithSyncURL sets a custom base URL for synchronous runs.
func WithSyncURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.syncURL = u
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new queue HTTP client. The API key can be set via
// the WithAPIKey option; if not provided it is read from FAL_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		queueURL:    "https://queue.fal.run",
		syncURL:     "https://fal.run",
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("FAL_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Run executes a synchronous model call and returns the decoded payload.
func (c *HTTPClient) Run(ctx context.Context, modelID string, input map[string]any) (map[string]any, error) {
	if modelID == "" {
		return nil, ErrModelIDRequired
	}

	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("falqueue: marshal input: %w", err)
	}

	var payload map[string]any
	reqURL := fmt.Sprintf("%s/%s", c.syncURL, modelID)
	if err := c.doRequestWithRetry(ctx, http.MethodPost, reqURL, body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Submit enqueues an asynchronous request and returns the request ID.
func (c *HTTPClient) Submit(ctx context.Context, modelID string, input map[string]any, webhookURL string) (string, error) {
	if modelID == "" {
		return "", ErrModelIDRequired
	}

	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("falqueue: marshal input: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s", c.queueURL, modelID)
	if webhookURL != "" {
		reqURL += "?fal_webhook=" + url.QueryEscape(webhookURL)
	}

	var resp submitResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, reqURL, body, &resp); err != nil {
		return "", err
	}

	if resp.RequestID == "" {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrNoRequestIDReturned, resp.Error)
		}
		return "", ErrNoRequestIDReturned
	}

	return resp.RequestID, nil
}

// Status polls a queued request.
//
// Different revisions of the queue API disagree on how the request is
// addressed (requestId query, request_id query, then the positional path
// form). This is a compatibility shim against an unstable API surface,
// not a design feature: the variants are tried in priority order and the
// first accepted one wins. Delete the older forms once the provider
// stabilizes.
func (c *HTTPClient) Status(ctx context.Context, modelID, requestID string) (StatusResult, error) {
	if modelID == "" {
		return StatusResult{}, ErrModelIDRequired
	}
	if requestID == "" {
		return StatusResult{}, ErrRequestIDRequired
	}

	variants := []string{
		fmt.Sprintf("%s/%s/requests/status?requestId=%s", c.queueURL, modelID, url.QueryEscape(requestID)),
		fmt.Sprintf("%s/%s/requests/status?request_id=%s", c.queueURL, modelID, url.QueryEscape(requestID)),
		fmt.Sprintf("%s/%s/requests/%s/status", c.queueURL, modelID, url.PathEscape(requestID)),
	}

	payload, err := c.tryConventions(ctx, variants)
	if err != nil {
		return StatusResult{}, err
	}

	return decodeStatus(payload), nil
}

// Result fetches the final output document of a completed request, using
// the same calling-convention priority order as Status.
func (c *HTTPClient) Result(ctx context.Context, modelID, requestID string) (map[string]any, error) {
	if modelID == "" {
		return nil, ErrModelIDRequired
	}
	if requestID == "" {
		return nil, ErrRequestIDRequired
	}

	variants := []string{
		fmt.Sprintf("%s/%s/requests/result?requestId=%s", c.queueURL, modelID, url.QueryEscape(requestID)),
		fmt.Sprintf("%s/%s/requests/result?request_id=%s", c.queueURL, modelID, url.QueryEscape(requestID)),
		fmt.Sprintf("%s/%s/requests/%s", c.queueURL, modelID, url.PathEscape(requestID)),
	}

	return c.tryConventions(ctx, variants)
}

// FetchResponse retrieves a secondary response document by URL with the
// client's credentials attached.
func (c *HTTPClient) FetchResponse(ctx context.Context, responseURL string) (map[string]any, error) {
	var payload map[string]any
	if err := c.doRequestWithRetry(ctx, http.MethodGet, responseURL, nil, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// tryConventions issues the URL variants in order, returning the first
// accepted response. 400/404/405 rejections move on to the next variant;
// any other failure aborts immediately.
func (c *HTTPClient) tryConventions(ctx context.Context, variants []string) (map[string]any, error) {
	var lastErr error
	for _, reqURL := range variants {
		var payload map[string]any
		err := c.doRequestWithRetry(ctx, http.MethodGet, reqURL, nil, &payload)
		if err == nil {
			return payload, nil
		}

		var he *HTTPError
		if errors.As(err, &he) {
			switch he.StatusCode {
			case http.StatusBadRequest, http.StatusNotFound, http.StatusMethodNotAllowed:
				lastErr = err
				continue
			}
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %w", ErrAllConventionsFailed, lastErr)
}

// decodeStatus maps a raw status payload to a StatusResult.
func decodeStatus(payload map[string]any) StatusResult {
	result := StatusResult{Payload: payload}

	if s, ok := payload["status"].(string); ok {
		result.Status = Status(s)
	}
	if u, ok := payload["response_url"].(string); ok {
		result.ResponseURL = u
	}
	for _, key := range []string{"error", "detail"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" && result.Error == "" {
				result.Error = v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && result.Error == "" {
				result.Error = msg
			}
		}
	}

	return result
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, reqURL string, body []byte, result any) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("falqueue: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		err := c.doRequest(ctx, method, reqURL, body, result)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("falqueue: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, reqURL string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("falqueue: create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("falqueue: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("falqueue: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("falqueue: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
