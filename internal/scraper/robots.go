// internal/scraper/robots.go
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/utils"
)

// RobotsPolicy answers whether an address may be crawled. robots.txt is
// fetched once per host and cached for the lifetime of the policy.
type RobotsPolicy struct {
	enabled   bool
	enforce   bool
	robotsURL string
	userAgent string
	headers   map[string]string
	client    *http.Client
	logger    utils.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsPolicy creates a policy from the crawl policy and fetch settings.
func NewRobotsPolicy(cp config.CrawlPolicyConfig, fetch config.FetchConfig, logger utils.Logger) *RobotsPolicy {
	timeout := fetch.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	headers := fetch.RequestHeaders()
	return &RobotsPolicy{
		enabled:   cp.Enabled,
		enforce:   cp.Enforce,
		robotsURL: cp.RobotsURL,
		userAgent: headers["User-Agent"],
		headers:   headers,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Enforced reports whether a disallowed verdict should stop crawling.
func (p *RobotsPolicy) Enforced() bool {
	return p != nil && p.enabled && p.enforce
}

// Allowed reports whether address may be fetched. A robots.txt that cannot
// be retrieved is treated as allowing everything.
func (p *RobotsPolicy) Allowed(ctx context.Context, address string) bool {
	if p == nil || !p.enabled {
		return true
	}

	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return true
	}

	data := p.robotsFor(ctx, u)
	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, p.userAgent)
}

// Check returns an error wrapping ErrDisallowed when address may not be
// fetched.
func (p *RobotsPolicy) Check(ctx context.Context, address string) error {
	if !p.Allowed(ctx, address) {
		return fmt.Errorf("%w: %s", ErrDisallowed, address)
	}
	return nil
}

func (p *RobotsPolicy) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := p.robotsURL
	if robotsURL == "" {
		robotsURL = fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if data, ok := p.cache[robotsURL]; ok {
		return data
	}

	data, err := p.fetch(ctx, robotsURL)
	if err != nil {
		p.logger.WithField("robots_url", robotsURL).Warnf("robots.txt unavailable, treating as allowed: %v", err)
	}
	p.cache[robotsURL] = data
	return data
}

func (p *RobotsPolicy) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return robotstxt.FromResponse(resp)
}
