// internal/pipeline/delivery.go
package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/listingharvest/internal/monitoring"
	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

// Submitter is the write side of a sink.
type Submitter interface {
	Submit(ctx context.Context, record types.CleanRecord) (types.DeliveryOutcome, error)
}

// Reporter submits records to the sink and keeps the run counters. Counters
// are guarded by a mutex so several submissions may run at once.
type Reporter struct {
	sink        Submitter
	concurrency int
	metrics     *monitoring.MetricsManager
	logger      utils.Logger

	mu      sync.Mutex
	summary types.RunSummary
}

// NewReporter creates a reporter; concurrency below 2 delivers sequentially.
func NewReporter(sink Submitter, concurrency int, metrics *monitoring.MetricsManager, logger utils.Logger) *Reporter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reporter{
		sink:        sink,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// Deliver submits every record once. Failures are counted and logged with the
// record key; they never stop the loop.
func (r *Reporter) Deliver(ctx context.Context, records []types.CleanRecord) {
	if r.concurrency == 1 {
		for _, rec := range records {
			r.deliverOne(ctx, rec)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			r.deliverOne(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Reporter) deliverOne(ctx context.Context, rec types.CleanRecord) {
	outcome, err := r.sink.Submit(ctx, rec)
	if err != nil {
		outcome = types.OutcomeError
	}

	r.mu.Lock()
	switch outcome {
	case types.OutcomeCreated:
		r.summary.Created++
	case types.OutcomeDuplicate:
		r.summary.Duplicate++
	default:
		r.summary.Error++
	}
	r.mu.Unlock()

	r.metrics.RecordDelivery(outcome.String())

	log := r.logger.WithField("key", rec.Key)
	switch {
	case err != nil:
		log.Errorf("delivery failed: %v", err)
	case outcome == types.OutcomeCreated:
		log.Debug("record stored")
	case outcome == types.OutcomeDuplicate:
		log.Debug("record already stored")
	default:
		log.Errorf("delivery failed: sink reported %s without details", outcome)
	}
}

// CountKnown counts records filtered before delivery as duplicates.
func (r *Reporter) CountKnown(n int) {
	if n <= 0 {
		return
	}
	r.mu.Lock()
	r.summary.Duplicate += n
	r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.metrics.RecordDelivery(monitoring.OutcomeKnown)
	}
}

// Summary returns a copy of the counters.
func (r *Reporter) Summary() types.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}
