// Package scraper harvests catalog cards from a rendering target.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/google/uuid"
)

// Scraper navigates to the catalog and runs the pagination loop.
type Scraper struct {
	cfg       *config.Config
	page      Page
	retrier   *Retrier
	navigator *Retrier
	paginator *Paginator
	logger    *slog.Logger
	Metrics   *Metrics
}

// Option customises a Scraper.
type Option func(*scraperOptions)

type scraperOptions struct {
	logger      *slog.Logger
	metrics     *Metrics
	retrierOpts []RetrierOption
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *scraperOptions) {
		o.logger = logger
	}
}

// WithMetrics shares a metrics bundle instead of creating one.
func WithMetrics(metrics *Metrics) Option {
	return func(o *scraperOptions) {
		o.metrics = metrics
	}
}

// WithRetrierOptions passes options to every Retrier the scraper builds.
func WithRetrierOptions(opts ...RetrierOption) Option {
	return func(o *scraperOptions) {
		o.retrierOpts = append(o.retrierOpts, opts...)
	}
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, page Page, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if page == nil {
		return nil, fmt.Errorf("page is nil")
	}

	o := scraperOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	logger := o.logger.With(slog.String("component", "scraper"))

	retrier := NewRetrier(RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff,
		Retryable:   IsTransient,
	}, LogRetries(logger, o.metrics), o.retrierOpts...)
	navigator := retrier.WithPolicy(RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff,
		Retryable:   retryNavigation,
	})

	extractor := NewExtractor(cfg.Selectors, retrier, logger, o.metrics)
	paginator := NewPaginator(page, extractor, retrier, PaginatorOptions{
		Selectors:       cfg.Selectors,
		Timeouts:        cfg.Timeouts,
		MaxStaleRetries: cfg.MaxStaleRetries,
		MaxLoadCycles:   cfg.MaxLoadCycles,
	}, logger, o.metrics)

	return &Scraper{
		cfg:       cfg,
		page:      page,
		retrier:   retrier,
		navigator: navigator,
		paginator: paginator,
		logger:    logger,
		Metrics:   o.metrics,
	}, nil
}

// Run navigates to the catalog and collects every card. The returned state
// is never nil and holds whatever was resolved before an error.
func (s *Scraper) Run(ctx context.Context) (*models.RunState, *models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	state := &models.RunState{}
	result := &models.RunResult{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	}
	logger := s.logger.With(slog.String("run_id", result.RunID))
	logger.Info("starting the scraping process", slog.String("url", s.cfg.CatalogURL()))

	err := s.navigate(ctx)
	if err == nil {
		err = s.paginator.Run(ctx, state)
	}
	s.summarize(state, result)

	if err != nil {
		s.Metrics.IncError(errorTypeLabel(err))
		logger.Error("error during scraping process",
			slog.String("error_type", errorTypeLabel(err)),
			slog.Int("extracted", result.Extracted),
			slog.Int("failed", result.Failed),
			slog.Any("error", err),
		)
		return state, result, err
	}

	logger.Info("pagination complete",
		slog.Int("cards_observed", result.CardsObserved),
		slog.Int("extracted", result.Extracted),
		slog.Int("failed", result.Failed),
		slog.Int("load_cycles", result.LoadCycles),
	)
	return state, result, nil
}

func (s *Scraper) navigate(ctx context.Context) error {
	url := s.cfg.CatalogURL()
	err := s.navigator.Run(ctx, "navigate_to_site", func() error {
		s.logger.Info("navigating to website", slog.String("url", url))
		if err := s.page.Navigate(ctx, url); err != nil {
			return err
		}
		s.logger.Debug("waiting for page to load", slog.String("selector", s.cfg.Selectors.Card))
		return waitUntil(ctx, s.cfg.Timeouts.Wait, s.cfg.Timeouts.Poll, func() (bool, error) {
			cards, err := s.page.FindAll(s.cfg.Selectors.Card)
			if err != nil {
				return false, err
			}
			return len(cards) > 0, nil
		})
	})
	if err != nil {
		return ErrFatal{Stage: "navigate", Err: err}
	}
	s.logger.Info("successfully navigated to website", slog.String("url", url))
	return nil
}

func (s *Scraper) summarize(state *models.RunState, result *models.RunResult) {
	failures := state.Failures()
	result.EndTime = time.Now()
	result.CardsObserved = state.Observed()
	result.Failed = len(failures)
	result.Extracted = result.CardsObserved - result.Failed
	result.LoadCycles = s.paginator.Cycles()
	result.RetryCount = s.retrier.TotalRetries() + s.navigator.TotalRetries()
	result.FailuresByKind = make(map[models.FailureKind]int)
	for _, f := range failures {
		result.FailuresByKind[f.Kind]++
	}
}
