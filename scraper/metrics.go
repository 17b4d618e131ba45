package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry             *prometheus.Registry
	CardsExtractedTotal  prometheus.Counter
	FailuresTotal        *prometheus.CounterVec
	RetriesTotal         *prometheus.CounterVec
	RetryExhaustedTotal  *prometheus.CounterVec
	LoadCyclesTotal      prometheus.Counter
	GrowthWaitDuration   prometheus.Histogram
	ErrorsTotal          *prometheus.CounterVec
	ProcessedItemsTotal  prometheus.Counter
	IncompletePriceTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	extracted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_cards_extracted_total",
			Help: "Total number of cards extracted into catalog items.",
		},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_extraction_failures_total",
			Help: "Total number of cards that could not be extracted, by failure kind.",
		},
		[]string{"kind"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled, by operation.",
		},
		[]string{"op"},
	)
	exhausted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retry_exhausted_total",
			Help: "Total number of operations that ran out of attempts.",
		},
		[]string{"op"},
	)
	cycles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_load_cycles_total",
			Help: "Total number of load-more activations.",
		},
	)
	growthWait := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_growth_wait_seconds",
			Help:    "Time between a load-more activation and new cards appearing.",
			Buckets: prometheus.DefBuckets,
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of run-level scraper errors by type.",
		},
		[]string{"error_type"},
	)
	processed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_processed_items_total",
			Help: "Total number of catalog items normalized into processed items.",
		},
	)
	incomplete := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_incomplete_prices_total",
			Help: "Processed items whose price could not be parsed or converted.",
		},
		[]string{"reason"},
	)

	registry.MustRegister(extracted, failures, retries, exhausted, cycles, growthWait, errorsTotal, processed, incomplete)

	return &Metrics{
		Registry:             registry,
		CardsExtractedTotal:  extracted,
		FailuresTotal:        failures,
		RetriesTotal:         retries,
		RetryExhaustedTotal:  exhausted,
		LoadCyclesTotal:      cycles,
		GrowthWaitDuration:   growthWait,
		ErrorsTotal:          errorsTotal,
		ProcessedItemsTotal:  processed,
		IncompletePriceTotal: incomplete,
	}
}

// IncExtracted increments the extracted cards counter.
func (m *Metrics) IncExtracted() {
	if m == nil {
		return
	}
	m.CardsExtractedTotal.Inc()
}

// IncFailure increments the failures counter for a kind label.
func (m *Metrics) IncFailure(kind string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(kind).Inc()
}

// IncRetry increments the retries counter for an operation.
func (m *Metrics) IncRetry(op string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(op).Inc()
}

// IncRetryExhausted increments the exhausted retries counter.
func (m *Metrics) IncRetryExhausted(op string) {
	if m == nil {
		return
	}
	m.RetryExhaustedTotal.WithLabelValues(op).Inc()
}

// IncLoadCycle increments the load cycles counter.
func (m *Metrics) IncLoadCycle() {
	if m == nil {
		return
	}
	m.LoadCyclesTotal.Inc()
}

// ObserveGrowthWait records how long new cards took to render.
func (m *Metrics) ObserveGrowthWait(d time.Duration) {
	if m == nil {
		return
	}
	m.GrowthWaitDuration.Observe(d.Seconds())
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncProcessed increments the processed items counter.
func (m *Metrics) IncProcessed() {
	if m == nil {
		return
	}
	m.ProcessedItemsTotal.Inc()
}

// IncIncompletePrice increments the incomplete price counter.
func (m *Metrics) IncIncompletePrice(reason string) {
	if m == nil {
		return
	}
	m.IncompletePriceTotal.WithLabelValues(reason).Inc()
}
