// internal/scraper/pagination.go
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/monitoring"
	"github.com/valpere/listingharvest/internal/utils"
)

// DefaultPageSize is the number of items on one listing page.
const DefaultPageSize = 50

// PageLocator walks the listing pages for a search term and collects item
// detail addresses.
type PageLocator struct {
	fetcher     Fetcher
	template    string
	pageSize    int
	container   string
	link        string
	policy      *RobotsPolicy
	pageLimiter *utils.RateLimiter
	metrics     *monitoring.MetricsManager
	logger      utils.Logger
}

// LocatorOption configures a PageLocator.
type LocatorOption func(*PageLocator)

// WithRobotsPolicy consults policy before every listing page.
func WithRobotsPolicy(policy *RobotsPolicy) LocatorOption {
	return func(pl *PageLocator) { pl.policy = policy }
}

// WithLocatorMetrics records page outcomes.
func WithLocatorMetrics(mm *monitoring.MetricsManager) LocatorOption {
	return func(pl *PageLocator) { pl.metrics = mm }
}

// NewPageLocator creates a locator from the search and listing selector settings.
func NewPageLocator(fetcher Fetcher, search config.SearchConfig, sel config.ListingSelectors, logger utils.Logger, opts ...LocatorOption) *PageLocator {
	pl := &PageLocator{
		fetcher:     fetcher,
		template:    search.URLTemplate,
		pageSize:    search.PageSize,
		container:   sel.Container,
		link:        sel.Link,
		pageLimiter: utils.NewIntervalLimiter(search.PageInterval),
		logger:      logger,
	}
	if pl.template == "" {
		pl.template = config.DefaultURLTemplate
	}
	if pl.pageSize <= 0 {
		pl.pageSize = DefaultPageSize
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// PageURL builds the address of the 0-based listing page n.
func (pl *PageLocator) PageURL(term string, n int) string {
	offset := n*pl.pageSize + 1
	r := strings.NewReplacer(
		"{term}", strings.ReplaceAll(strings.TrimSpace(term), " ", "-"),
		"{offset}", strconv.Itoa(offset),
	)
	return r.Replace(pl.template)
}

// Locate fetches listing pages 0..maxPages-1 in order and returns the item
// addresses found. It stops at the first page that fails or has no item
// containers, returning what was accumulated. Only a transport failure on
// the first page is returned as an error.
func (pl *PageLocator) Locate(ctx context.Context, term string, maxPages int) ([]string, error) {
	if strings.TrimSpace(term) == "" {
		return nil, ErrEmptyTerm
	}

	var addresses []string
	for n := 0; n < maxPages; n++ {
		if err := ctx.Err(); err != nil {
			return addresses, err
		}

		pageURL := pl.PageURL(term, n)
		log := pl.logger.WithFields(map[string]interface{}{"page": n + 1, "max_pages": maxPages, "url": pageURL})

		if err := pl.policy.Check(ctx, pageURL); err != nil {
			if pl.policy.Enforced() {
				log.Warnf("stopping pagination: %v", err)
				pl.metrics.RecordListingPage(monitoring.OutcomeDisallowed)
				break
			}
			log.Infof("continuing despite robots.txt: %v", err)
		} else {
			log.Debug("listing page allowed by robots.txt")
		}

		if err := pl.pageLimiter.Wait(ctx); err != nil {
			return addresses, err
		}

		log.Infof("processing listing page %d of %d", n+1, maxPages)
		content, err := pl.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			pl.metrics.RecordListingPage(monitoring.OutcomeFailed)
			if n == 0 {
				return nil, fmt.Errorf("%w: %w", ErrFirstPage, err)
			}
			log.Warnf("listing page failed, stopping: %v", err)
			break
		}

		found, err := pl.ParseListing(content, pageURL)
		if err != nil || len(found) == 0 {
			pl.metrics.RecordListingPage(monitoring.OutcomeEmpty)
			log.Info("no more results, stopping")
			break
		}

		pl.metrics.RecordListingPage(monitoring.OutcomeOK)
		pl.metrics.RecordDiscovered(len(found))
		addresses = append(addresses, found...)
	}

	return addresses, nil
}

// ParseListing extracts item addresses from one listing page. Containers
// without a link are skipped. An empty result means the page has no
// item containers at all or none carrying a link.
func (pl *PageLocator) ParseListing(content []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	var addresses []string
	doc.Find(pl.container).Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find(pl.link).First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}
		addresses = append(addresses, utils.ResolveReference(pageURL, href))
	})
	return addresses, nil
}
