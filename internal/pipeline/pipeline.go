// internal/pipeline/pipeline.go

// Package pipeline drives one harvest run: discovery, bounded collection,
// cleaning, optional backup, reconciliation against the sink and delivery.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/listingharvest/internal/monitoring"
	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

// Locator discovers item addresses for a term.
type Locator interface {
	Locate(ctx context.Context, term string, maxPages int) ([]string, error)
}

// Collector turns addresses into candidates, preserving order.
type Collector interface {
	Collect(ctx context.Context, addresses []string) []types.RawCandidate
}

// Sink is the persistence service as seen by a run.
type Sink interface {
	KeyLister
	Submitter
}

// BackupWriter writes the cleaned batch to a file and returns its path.
type BackupWriter interface {
	Write(term string, records []types.CleanRecord) (string, error)
}

// RunConfig holds the per-run parameters.
type RunConfig struct {
	Term                string
	MaxPages            int
	ScanPageSize        int
	DeliveryConcurrency int
}

// Runner wires the stages together.
type Runner struct {
	locator   Locator
	collector Collector
	sink      Sink
	backup    BackupWriter
	config    RunConfig
	metrics   *monitoring.MetricsManager
	logger    utils.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBackup writes a backup of every cleaned batch.
func WithBackup(w BackupWriter) RunnerOption {
	return func(r *Runner) { r.backup = w }
}

// WithMetrics records stage metrics.
func WithMetrics(mm *monitoring.MetricsManager) RunnerOption {
	return func(r *Runner) { r.metrics = mm }
}

// NewRunner creates a runner.
func NewRunner(locator Locator, collector Collector, sink Sink, cfg RunConfig, logger utils.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		locator:   locator,
		collector: collector,
		sink:      sink,
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one harvest. The returned report is always non-nil; the error
// is set only when the run was aborted, either because the first listing page
// could not be fetched or because the known records could not be read.
func (r *Runner) Run(ctx context.Context) (*types.Report, error) {
	start := time.Now()
	report := &types.Report{
		RunID:  uuid.NewString(),
		Term:   r.config.Term,
		Status: types.StatusRunning,
	}
	log := r.logger.WithField("run_id", report.RunID)
	log.Infof("run started: term=%q pages=%d", r.config.Term, r.config.MaxPages)

	abort := func(err error) (*types.Report, error) {
		report.Status = types.StatusAborted
		r.metrics.RecordRun(string(report.Status), time.Since(start))
		log.Errorf("run aborted: %v", err)
		return report, err
	}

	addresses, err := r.locator.Locate(ctx, r.config.Term, r.config.MaxPages)
	if err != nil {
		return abort(fmt.Errorf("discovery: %w", err))
	}
	report.Discovered = len(addresses)
	log.Infof("%d addresses found", report.Discovered)

	candidates := r.collector.Collect(ctx, addresses)
	report.Extracted = len(candidates)
	log.Infof("%d candidates extracted", report.Extracted)

	records := NewCleaner(r.metrics, log).CleanAll(candidates)
	report.Cleaned = len(records)
	log.Infof("%d records cleaned", report.Cleaned)

	if r.backup != nil {
		path, err := r.backup.Write(r.config.Term, records)
		if err != nil {
			log.Warnf("backup failed: %v", err)
		} else if path != "" {
			report.BackupPath = path
			log.Infof("backup written: %s", path)
		}
	}

	known, err := LoadKnownKeys(ctx, r.sink, r.config.ScanPageSize)
	if err != nil {
		return abort(err)
	}
	log.Infof("%d records already stored", known.Len())

	fresh, skipped := known.Partition(records)
	report.Known = len(skipped)
	for _, rec := range skipped {
		log.WithField("key", rec.Key).Debug("already stored, not submitted")
	}

	reporter := NewReporter(r.sink, r.config.DeliveryConcurrency, r.metrics, log)
	reporter.CountKnown(len(skipped))
	reporter.Deliver(ctx, fresh)

	report.Summary = reporter.Summary()
	report.Status = types.StatusCompleted
	r.metrics.RecordRun(string(report.Status), time.Since(start))
	log.Infof("run completed: %s", report.String())
	return report, nil
}
