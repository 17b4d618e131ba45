package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/browser"
	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/aluiziolira/go-scrape-catalog/snapshot"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type options struct {
	configPath  string
	headed      bool
	logLevel    string
	static      bool
	metricsAddr string
	install     bool
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Harvest a load-more product catalog and normalize its prices",
		Long: `scraper drives a catalog page that reveals products through a "load more"
control, extracts every product card exactly once, converts prices into the
configured target currency and writes raw, processed and failure artifacts.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "config.yaml", "Path to configuration file")
	flags.BoolVar(&opts.headed, "headed", false, "Run the browser with a visible window")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override the log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	flags.BoolVar(&opts.static, "static", false, "Read the server-rendered page over HTTP instead of driving a browser")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVar(&opts.install, "install-browser", false, "Download the playwright driver and Chromium before running")

	return cmd
}

// resolveConfig layers defaults, the config file, SCRAPER_* variables and
// command-line flags, in that order.
func resolveConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = config.DefaultConfig()
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}

	if opts.headed {
		cfg.Browser.Headless = false
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(opts.logLevel)
	}
	if opts.static {
		cfg.Mode = config.ModeStatic
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, opts *options, out io.Writer) error {
	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	metrics := scraper.NewMetrics()
	stopMetrics := serveMetrics(cfg.MetricsAddr, metrics, logger)
	defer stopMetrics()

	page, closeTarget, err := openTarget(cfg, opts, logger)
	if err != nil {
		logger.Error("failed to open rendering target", slog.String("mode", cfg.Mode), slog.Any("error", err))
		return err
	}
	defer func() {
		if err := closeTarget(); err != nil {
			logger.Error("close rendering target", slog.Any("error", err))
		}
	}()

	s, err := scraper.NewScraper(cfg, page, scraper.WithLogger(logger), scraper.WithMetrics(metrics))
	if err != nil {
		return err
	}
	state, result, runErr := s.Run(ctx)

	processor, err := pipeline.NewProcessor(cfg.Currency, cfg.PriceCacheSize, logger, metrics)
	if err != nil {
		return errors.Join(runErr, err)
	}
	persistErr := pipeline.Finalize(state, processor, pipeline.NewPersister(cfg.Output, logger))
	result.Processed = len(state.Processed)

	if persistErr != nil {
		logger.Error("failed to persist run artifacts", slog.Any("error", persistErr))
	}
	if runErr == nil && persistErr == nil {
		logger.Info("scraping process completed successfully",
			slog.String("run_id", result.RunID),
			slog.Int("total_products", result.Processed),
			slog.Int("failed_products", result.Failed),
		)
	}

	printSummary(out, result, cfg.Output, runErr)
	return errors.Join(runErr, persistErr)
}

func openTarget(cfg *config.Config, opts *options, logger *slog.Logger) (scraper.Page, func() error, error) {
	if cfg.Mode == config.ModeStatic {
		page := snapshot.New(snapshot.Options{
			UserAgent: cfg.Browser.UserAgent,
			Timeout:   cfg.Browser.Timeout,
			Logger:    logger,
		})
		return page, func() error { return nil }, nil
	}

	browserOpts := browser.OptionsFromConfig(cfg.Browser)
	browserOpts.Logger = logger
	browserOpts.Install = opts.install
	b, err := browser.New(browserOpts)
	if err != nil {
		return nil, nil, err
	}
	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return page, b.Close, nil
}

func serveMetrics(addr string, metrics *scraper.Metrics, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	logger.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func printSummary(w io.Writer, result *models.RunResult, output config.OutputConfig, runErr error) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if runErr != nil {
		t.SetTitle("Scrape aborted")
	} else {
		t.SetTitle("Scrape complete")
	}

	t.AppendRow(table.Row{"Run ID", result.RunID})
	t.AppendRow(table.Row{"Cards seen", result.CardsObserved})
	t.AppendRow(table.Row{"Extracted", result.Extracted})
	t.AppendRow(table.Row{"Failed", result.Failed})
	for _, kind := range slices.Sorted(maps.Keys(result.FailuresByKind)) {
		t.AppendRow(table.Row{"  " + string(kind), result.FailuresByKind[kind]})
	}
	t.AppendRow(table.Row{"Processed", result.Processed})
	t.AppendRow(table.Row{"Load cycles", result.LoadCycles})
	t.AppendRow(table.Row{"Retries", result.RetryCount})
	t.AppendRow(table.Row{"Duration", result.EndTime.Sub(result.StartTime).Round(time.Millisecond)})
	t.AppendRow(table.Row{"Output files", output.JSONFilename + ", " + output.CSVFilename})
	if runErr != nil {
		t.AppendRow(table.Row{"Error", runErr.Error()})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
