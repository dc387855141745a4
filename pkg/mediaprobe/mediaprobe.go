// Package mediaprobe resolves media durations from an external media
// metadata service. The timeline scheduler needs the length of each
// contestant's performance video; this client fetches it by media reference.
package mediaprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client resolves the duration of a media asset in seconds.
type Client interface {
	// ResolveDuration returns the duration in seconds of the media asset
	// identified by mediaRef. A zero or negative result is never returned;
	// unusable metadata is reported as an error so callers can apply their
	// fallback policy.
	ResolveDuration(ctx context.Context, mediaRef string) (float64, error)
}

// HTTPClient talks to a media metadata service over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client (useful for tests and
// for custom timeouts or transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = d
	}
}

// New creates an HTTPClient for the media service at baseURL.
func New(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// probeResponse is the metadata service's reply shape.
type probeResponse struct {
	MediaRef        string  `json:"media_ref"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// ResolveDuration implements Client.
func (c *HTTPClient) ResolveDuration(ctx context.Context, mediaRef string) (float64, error) {
	if mediaRef == "" {
		return 0, fmt.Errorf("mediaprobe: empty media reference")
	}

	endpoint := fmt.Sprintf("%s/api/media/%s/probe", c.baseURL, url.PathEscape(mediaRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("mediaprobe: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("mediaprobe: requesting %s: %w", mediaRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("mediaprobe: media %s not found", mediaRef)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("mediaprobe: unexpected status %d for %s", resp.StatusCode, mediaRef)
	}

	var body probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("mediaprobe: decoding response for %s: %w", mediaRef, err)
	}
	if body.DurationSeconds <= 0 {
		return 0, fmt.Errorf("mediaprobe: media %s reported non-positive duration %.2f", mediaRef, body.DurationSeconds)
	}
	return body.DurationSeconds, nil
}
