// internal/browser/types.go
package browser

import (
	"time"

	"github.com/valpere/listingharvest/internal/config"
)

// BrowserConfig defines headless browser fetch configuration
type BrowserConfig struct {
	Headless       bool
	ExecPath       string
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	WaitForElement string
	UserAgent      string
	DisableImages  bool
	// Headers are sent with every navigation
	Headers map[string]string
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Headless:       true,
		Timeout:        30 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		DisableImages:  true,
	}
}

// ConfigFromFetch derives browser settings from the fetch configuration.
func ConfigFromFetch(fetch config.FetchConfig) *BrowserConfig {
	cfg := DefaultBrowserConfig()
	cfg.Headless = fetch.Browser.Headless
	cfg.ExecPath = fetch.Browser.ExecPath
	cfg.DisableImages = fetch.Browser.DisableImages
	cfg.WaitForElement = fetch.Browser.WaitSelector
	if fetch.Timeout > 0 {
		cfg.Timeout = fetch.Timeout
	}

	cfg.Headers = fetch.RequestHeaders()
	cfg.UserAgent = cfg.Headers["User-Agent"]
	delete(cfg.Headers, "User-Agent")
	return cfg
}

// BrowserStats contains browser fetch statistics
type BrowserStats struct {
	PagesLoaded      int64 `json:"pages_loaded"`
	Errors           int64 `json:"errors"`
	TimeoutsOccurred int64 `json:"timeouts_occurred"`
}
