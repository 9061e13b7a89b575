// cmd/listingharvest/run.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/listingharvest/internal/browser"
	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/monitoring"
	"github.com/valpere/listingharvest/internal/output"
	"github.com/valpere/listingharvest/internal/pipeline"
	"github.com/valpere/listingharvest/internal/scraper"
	"github.com/valpere/listingharvest/internal/sink"
	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

// runOptions are the command-line overrides of the configuration file.
type runOptions struct {
	term         string
	pages        int
	concurrency  int
	backup       bool
	backupFormat string
	sinkURL      string
	fetchMode    string
	metricsAddr  string
	logFile      string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [term]",
		Short: "Run one harvest for a search term",
		Example: `  listingharvest run "smart tv" --pages 5 --concurrency 8
  listingharvest run -f harvest.yaml --backup --backup-format xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				opts.term = args[0]
			}
			applyRunOptions(cmd, cfg, opts)
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				cfg.Logging.Level = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := runHarvest(ctx, cfg)
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.term, "term", "t", "", "search term")
	f.IntVarP(&opts.pages, "pages", "p", 0, "maximum listing pages to walk (default 3)")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 0, "maximum concurrent item fetches (default 10)")
	f.BoolVar(&opts.backup, "backup", false, "write the cleaned records to a timestamped backup file")
	f.StringVar(&opts.backupFormat, "backup-format", "", "backup format: csv, json, yaml, xlsx or sqlite")
	f.StringVar(&opts.sinkURL, "sink-url", "", "base URL of the records service")
	f.StringVar(&opts.fetchMode, "fetch-mode", "", "fetch mode: http or browser")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /health on this address during the run")
	f.StringVar(&opts.logFile, "log-file", "", "append log output to this file")
	return cmd
}

// applyRunOptions overrides cfg with the flags that were set explicitly.
func applyRunOptions(cmd *cobra.Command, cfg *config.Config, opts *runOptions) {
	changed := cmd.Flags().Changed
	if opts.term != "" {
		cfg.Search.Term = opts.term
	}
	if changed("pages") {
		cfg.Search.MaxPages = opts.pages
	}
	if changed("concurrency") {
		cfg.Fetch.Concurrency = opts.concurrency
	}
	if changed("backup") {
		cfg.Backup.Enabled = opts.backup
	}
	if changed("backup-format") {
		cfg.Backup.Format = opts.backupFormat
	}
	if changed("sink-url") {
		cfg.Sink.Type = "http"
		cfg.Sink.BaseURL = opts.sinkURL
	}
	if changed("fetch-mode") {
		cfg.Fetch.Mode = opts.fetchMode
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if changed("log-file") {
		cfg.Logging.File = opts.logFile
	}
}

// runHarvest builds every component from cfg and executes one run. The
// report is nil only when a component could not be built.
func runHarvest(ctx context.Context, cfg *config.Config) (*types.Report, error) {
	logger, logCloser, err := utils.NewLoggerWithOptions(utils.LoggerOptions{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	defer logCloser.Close()

	recordSink, err := sink.New(ctx, cfg.Sink)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink: %w", err)
	}
	defer recordSink.Close()

	metrics := monitoring.NewMetricsManager(monitoring.MetricsConfig{Namespace: cfg.Metrics.Namespace})
	if cfg.Metrics.Addr != "" {
		health := monitoring.NewHealthManager(cfg.Sink.Timeout)
		health.RegisterCheck("records_service", true, func(ctx context.Context) error {
			_, err := recordSink.ListKeys(ctx, 0, 1)
			return err
		})
		server, err := monitoring.StartServer(cfg.Metrics.Addr, metrics, health, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	fetcher, closeFetcher, err := newFetcher(cfg.Fetch, logger)
	if err != nil {
		return nil, err
	}
	defer closeFetcher()

	locator := scraper.NewPageLocator(fetcher, cfg.Search, cfg.Selectors.Listing, logger,
		scraper.WithRobotsPolicy(scraper.NewRobotsPolicy(cfg.CrawlPolicy, cfg.Fetch, logger)),
		scraper.WithLocatorMetrics(metrics),
	)
	coordinator := scraper.NewCoordinator(
		fetcher,
		scraper.NewExtractor(cfg.Selectors.Item),
		scraper.NewLimiter(cfg.Fetch.Concurrency),
		metrics,
		logger,
	)

	runnerOpts := []pipeline.RunnerOption{pipeline.WithMetrics(metrics)}
	if cfg.Backup.Enabled {
		backups, err := output.NewManager(cfg.Backup, logger)
		if err != nil {
			return nil, err
		}
		runnerOpts = append(runnerOpts, pipeline.WithBackup(backups))
	}

	runner := pipeline.NewRunner(locator, coordinator, recordSink, pipeline.RunConfig{
		Term:                cfg.Search.Term,
		MaxPages:            cfg.Search.MaxPages,
		ScanPageSize:        cfg.Sink.PageSize,
		DeliveryConcurrency: cfg.Delivery.Concurrency,
	}, logger, runnerOpts...)

	report, err := runner.Run(ctx)
	logger.Debugf("peak concurrent fetches: %d of %d", coordinator.Limiter().Peak(), coordinator.Limiter().Capacity())
	return report, err
}

// newFetcher selects the fetch mode. Browser fetches are paced here since
// the Chrome fetcher has no limiter of its own.
func newFetcher(fc config.FetchConfig, logger utils.Logger) (scraper.Fetcher, func(), error) {
	switch types.FetchMode(fc.Mode) {
	case types.FetchModeBrowser:
		chrome, err := browser.NewChromeFetcher(browser.ConfigFromFetch(fc))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			stats := chrome.GetStats()
			logger.Debugf("browser pages loaded: %d, errors: %d, timeouts: %d",
				stats.PagesLoaded, stats.Errors, stats.TimeoutsOccurred)
			_ = chrome.Close()
		}

		pace := utils.NewRateLimiter(fc.RequestsPerSecond)
		if pace == nil {
			return chrome, closeFn, nil
		}
		return scraper.FetcherFunc(func(ctx context.Context, address string) ([]byte, error) {
			if err := pace.Wait(ctx); err != nil {
				return nil, err
			}
			return chrome.Fetch(ctx, address)
		}), closeFn, nil

	default:
		client := scraper.NewHTTPClient(scraper.ClientConfig{
			Timeout:           fc.Timeout,
			Headers:           fc.RequestHeaders(),
			RequestsPerSecond: fc.RequestsPerSecond,
		})
		return client, client.Close, nil
	}
}

func printReport(w io.Writer, report *types.Report) {
	if report == nil {
		return
	}
	fmt.Fprintf(w, "%s [%s]\n", report.String(), report.Status)
	if report.BackupPath != "" {
		fmt.Fprintf(w, "backup: %s\n", report.BackupPath)
	}
}
