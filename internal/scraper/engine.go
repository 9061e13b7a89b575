// internal/scraper/engine.go
package scraper

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/listingharvest/internal/monitoring"
	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

// Coordinator runs one fetch+extract unit per address under a shared
// Limiter and gathers the candidates in submission order.
type Coordinator struct {
	fetcher   Fetcher
	extractor *Extractor
	limiter   *Limiter
	metrics   *monitoring.MetricsManager
	logger    utils.Logger
}

// NewCoordinator creates a coordinator. Every unit it issues shares limiter.
func NewCoordinator(fetcher Fetcher, extractor *Extractor, limiter *Limiter, metrics *monitoring.MetricsManager, logger utils.Logger) *Coordinator {
	return &Coordinator{
		fetcher:   fetcher,
		extractor: extractor,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger,
	}
}

// Limiter returns the shared limiter.
func (c *Coordinator) Limiter() *Limiter {
	return c.limiter
}

// Collect fetches and extracts every address concurrently, bounded by the
// limiter, and returns the successful candidates in the order of addresses.
// Failed units are dropped.
func (c *Coordinator) Collect(ctx context.Context, addresses []string) []types.RawCandidate {
	results := make([]*types.RawCandidate, len(addresses))

	var g errgroup.Group
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			results[i] = c.unit(ctx, address)
			return nil
		})
	}
	_ = g.Wait()

	candidates := make([]types.RawCandidate, 0, len(addresses))
	for _, r := range results {
		if r != nil {
			candidates = append(candidates, *r)
		}
	}
	return candidates
}

// unit holds one slot for the whole fetch+extract and returns nil when the
// address yields no candidate.
func (c *Coordinator) unit(ctx context.Context, address string) *types.RawCandidate {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil
	}
	defer c.limiter.Release()

	c.metrics.IncInFlight()
	defer c.metrics.DecInFlight()

	log := c.logger.WithField("address", address)
	start := time.Now()

	content, err := c.fetcher.Fetch(ctx, address)
	if err != nil {
		c.metrics.RecordItemFetch(monitoring.OutcomeFailed, time.Since(start))
		log.Debugf("fetch failed: %v", err)
		return nil
	}
	c.metrics.RecordItemFetch(monitoring.OutcomeOK, time.Since(start))

	candidate, err := c.extractor.Extract(content, address)
	if err != nil {
		if errors.Is(err, ErrStructureMismatch) {
			c.metrics.RecordExtraction(monitoring.OutcomeMismatch)
		} else {
			c.metrics.RecordExtraction(monitoring.OutcomeFailed)
		}
		log.Debugf("extraction skipped: %v", err)
		return nil
	}
	c.metrics.RecordExtraction(monitoring.OutcomeOK)
	return &candidate
}
