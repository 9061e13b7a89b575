// internal/scraper/client.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/valpere/listingharvest/internal/utils"
)

// maxBodyBytes caps how much of a page is read into memory.
const maxBodyBytes = 16 << 20

// HTTPClient fetches pages with a single GET per address.
type HTTPClient struct {
	httpClient  *http.Client
	headers     map[string]string
	rateLimiter *utils.RateLimiter
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	// Timeout bounds each individual request
	Timeout time.Duration
	// Headers are set on every request (User-Agent, Accept-Language, Referer, ...)
	Headers map[string]string
	// RequestsPerSecond paces requests; 0 disables pacing
	RequestsPerSecond float64
	// Transport overrides the default transport, used by tests
	Transport http.RoundTripper
}

// NewHTTPClient creates a new HTTP client with the specified configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	headers := make(map[string]string, len(config.Headers))
	for k, v := range config.Headers {
		headers[k] = v
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		headers:     headers,
		rateLimiter: utils.NewRateLimiter(config.RequestsPerSecond),
	}
}

// Fetch performs one GET request and returns the body. Network errors,
// timeouts and non-2xx responses are all returned as errors; there is no
// retry.
func (c *HTTPClient) Fetch(ctx context.Context, address string) ([]byte, error) {
	if _, err := url.ParseRequestURI(address); err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", address, err)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setRequestHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Address: address, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// setRequestHeaders applies browser-like defaults, then the configured headers.
func (c *HTTPClient) setRequestHeaders(req *http.Request) {
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}

// Close releases idle connections.
func (c *HTTPClient) Close() {
	c.httpClient.CloseIdleConnections()
}
