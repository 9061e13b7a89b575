// internal/browser/chromedp.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/valpere/listingharvest/internal/scraper"
)

// ChromeFetcher fetches pages through a shared headless Chrome instance,
// opening one tab per Fetch. It satisfies scraper.Fetcher.
type ChromeFetcher struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	config        *BrowserConfig

	pagesLoaded int64
	errors      int64
	timeouts    int64

	closeOnce sync.Once
}

var _ scraper.Fetcher = (*ChromeFetcher)(nil)

// NewChromeFetcher starts Chrome and returns a fetcher bound to it.
func NewChromeFetcher(config *BrowserConfig) (*ChromeFetcher, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
	}
	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &ChromeFetcher{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		config:        config,
	}, nil
}

// Fetch navigates a fresh tab to address and returns the rendered HTML.
// A document response with a non-2xx status is an error.
func (c *ChromeFetcher) Fetch(ctx context.Context, address string) ([]byte, error) {
	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, c.config.Timeout)
		defer cancel()
	}

	// Tie the tab to the caller's context as well.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var status int64
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			atomic.CompareAndSwapInt64(&status, 0, resp.Response.Status)
		}
	})

	tasks := chromedp.Tasks{network.Enable()}
	if len(c.config.Headers) > 0 {
		headers := make(network.Headers, len(c.config.Headers))
		for k, v := range c.config.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	tasks = append(tasks, chromedp.Navigate(address), chromedp.WaitReady("body"))
	if c.config.WaitForElement != "" {
		tasks = append(tasks, chromedp.WaitVisible(c.config.WaitForElement))
	}

	var html string
	tasks = append(tasks, chromedp.OuterHTML("html", &html))

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		atomic.AddInt64(&c.errors, 1)
		if errors.Is(err, context.DeadlineExceeded) {
			atomic.AddInt64(&c.timeouts, 1)
		}
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	if code := atomic.LoadInt64(&status); code != 0 && (code < 200 || code >= 300) {
		atomic.AddInt64(&c.errors, 1)
		return nil, &scraper.StatusError{Address: address, StatusCode: int(code)}
	}

	atomic.AddInt64(&c.pagesLoaded, 1)
	return []byte(html), nil
}

// GetStats returns browser statistics
func (c *ChromeFetcher) GetStats() BrowserStats {
	return BrowserStats{
		PagesLoaded:      atomic.LoadInt64(&c.pagesLoaded),
		Errors:           atomic.LoadInt64(&c.errors),
		TimeoutsOccurred: atomic.LoadInt64(&c.timeouts),
	}
}

// Close shuts the browser down.
func (c *ChromeFetcher) Close() error {
	c.closeOnce.Do(func() {
		c.browserCancel()
		c.allocCancel()
	})
	return nil
}
