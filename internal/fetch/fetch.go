// Package fetch downloads remote artifacts (clips, dialogue tracks, music)
// into memory or working storage ahead of media processing.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrURLRequired is returned when no URL is provided.
var ErrURLRequired = errors.New("fetch: URL is required")

// Fetcher downloads artifacts over HTTP.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher. If client is nil a default with a generous
// timeout for large media files is used.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Fetcher{httpClient: client}
}

// Bytes downloads the artifact at url and returns its content.
func (f *Fetcher) Bytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	return data, nil
}

// ToFile downloads the artifact at url into destPath, streaming the body
// so large clips never sit fully in memory.
func (f *Fetcher) ToFile(ctx context.Context, url, destPath string) error {
	resp, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := os.Create(destPath) // #nosec G304 - destPath is constructed internally
	if err != nil {
		return fmt.Errorf("fetch: create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("fetch: copy download data: %w", err)
	}

	return nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	if url == "" {
		return nil, ErrURLRequired
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch: download failed with status %d", resp.StatusCode)
	}

	return resp, nil
}
