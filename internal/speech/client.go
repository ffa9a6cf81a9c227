// Package speech provides an HTTP client for a synchronous text-to-speech
// provider. Unlike the queue-based video and music models, speech synthesis
// is a plain request/response call returning audio bytes inline.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Static errors for speech client operations.
var (
	// ErrAPIKeyNotSet is returned when no API key is provided and the
	// ELEVENLABS_API_KEY environment variable is not set.
	ErrAPIKeyNotSet = errors.New("speech: ELEVENLABS_API_KEY environment variable is not set")
	// ErrTextRequired is returned when no text is provided.
	ErrTextRequired = errors.New("speech: text is required")
	// ErrVoiceRequired is returned when no voice ID is provided.
	ErrVoiceRequired = errors.New("speech: voice ID is required")
	// ErrEmptyAudio is returned when the provider responds 2xx with an
	// empty body.
	ErrEmptyAudio = errors.New("speech: provider returned empty audio")
)

// SynthesizeOptions contains optional parameters for speech synthesis.
type SynthesizeOptions struct {
	// ModelID selects the synthesis model (default: eleven_multilingual_v2).
	ModelID string
	// Speed adjusts speaking rate; 0 means provider default.
	Speed float64
	// Stability and SimilarityBoost tune voice consistency; zero values
	// are omitted from the request.
	Stability       float64
	SimilarityBoost float64
}

// Client defines the interface for the text-to-speech provider.
type Client interface {
	// Synthesize converts text to speech with the given voice and returns
	// the raw audio bytes.
	Synthesize(ctx context.Context, text, voiceID string, opts SynthesizeOptions) ([]byte, error)
}

// HTTPClient is the HTTP implementation of the speech Client interface.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
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

// WithBaseURL sets a custom base URL for the speech API.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = u
	}
}

// NewClient creates a new speech HTTP client. The API key can be set via
// the WithAPIKey option; if not provided it is read from ELEVENLABS_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:    "https://api.elevenlabs.io/v1",
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// synthesizeRequest is the request body for the text-to-speech endpoint.
type synthesizeRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings tunes the synthesis voice.
type voiceSettings struct {
	Speed           float64 `json:"speed,omitempty"`
	Stability       float64 `json:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty"`
}

// Synthesize converts text to speech and returns the raw audio bytes.
func (c *HTTPClient) Synthesize(ctx context.Context, text, voiceID string, opts SynthesizeOptions) ([]byte, error) {
	if text == "" {
		return nil, ErrTextRequired
	}
	if voiceID == "" {
		return nil, ErrVoiceRequired
	}

	if opts.ModelID == "" {
		opts.ModelID = "eleven_multilingual_v2"
	}

	reqBody := synthesizeRequest{
		Text:    text,
		ModelID: opts.ModelID,
	}
	if opts.Speed != 0 || opts.Stability != 0 || opts.SimilarityBoost != 0 {
		reqBody.VoiceSettings = &voiceSettings{
			Speed:           opts.Speed,
			Stability:       opts.Stability,
			SimilarityBoost: opts.SimilarityBoost,
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("speech: marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("speech: create request: %w", err)
	}

	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("speech: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if len(respBody) == 0 {
		return nil, ErrEmptyAudio
	}

	return respBody, nil
}

// HTTPError is returned for non-2xx provider responses. It preserves the
// status code so callers can classify quota failures.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("speech: request failed with status %d: %s", e.StatusCode, e.Body)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
