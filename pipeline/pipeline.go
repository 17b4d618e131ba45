// Package pipeline normalizes extracted items and persists run artifacts.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Reasons reported to Observer.IncIncompletePrice.
const (
	ReasonUnparsedPrice    = "unparsed_price"
	ReasonFailedConversion = "failed_conversion"
)

// Observer receives processing counters. *scraper.Metrics satisfies it.
type Observer interface {
	IncProcessed()
	IncIncompletePrice(reason string)
}

// Stats counts what a Processor has produced.
type Stats struct {
	Processed         int
	UnparsedPrices    int
	FailedConversions int
	InvalidItems      int
}

// Processor maps CatalogItems to ProcessedItems.
type Processor struct {
	prices    *parser.PriceParser
	converter parser.Converter
	target    string
	observer  Observer
	logger    *slog.Logger

	stats Stats
}

// NewProcessor builds a processor for the currency section of a config.
// observer may be nil.
func NewProcessor(currency config.CurrencyConfig, cacheSize int, logger *slog.Logger, observer Observer) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "processor"))

	prices, err := parser.NewPriceParser(currency.Symbols, currency.Default, cacheSize)
	if err != nil {
		return nil, fmt.Errorf("price parser: %w", err)
	}
	return &Processor{
		prices:    prices,
		converter: parser.Converter{Rates: currency.Rates, Logger: logger},
		target:    currency.Target,
		observer:  observer,
		logger:    logger,
	}, nil
}

// Process converts items in order. The result always has len(items)
// entries; prices that cannot be parsed or converted become nil fields.
func (p *Processor) Process(items []models.CatalogItem) []models.ProcessedItem {
	p.logger.Info("processing raw data", slog.Int("raw_products", len(items)))

	out := make([]models.ProcessedItem, 0, len(items))
	for i := range items {
		out = append(out, p.ProcessItem(items[i]))
	}

	p.logger.Info("completed raw data processing",
		slog.Int("processed_products", len(out)),
		slog.Int("unparsed_prices", p.stats.UnparsedPrices),
		slog.Int("failed_conversions", p.stats.FailedConversions),
	)
	return out
}

// ProcessItem converts a single item.
func (p *Processor) ProcessItem(item models.CatalogItem) models.ProcessedItem {
	if err := parser.ValidateItem(&item); err != nil {
		p.stats.InvalidItems++
		p.logger.Warn("processing incomplete item", slog.Any("error", err))
	}

	currency, amount := p.prices.Parse(item.PriceText)
	if amount == nil {
		p.stats.UnparsedPrices++
		p.observe(ReasonUnparsedPrice)
		p.logger.Debug("price text has no amount", slog.String("price", item.PriceText))
	}
	converted := p.converter.Convert(amount, currency, p.target)
	if amount != nil && converted == nil {
		p.stats.FailedConversions++
		p.observe(ReasonFailedConversion)
	}

	p.stats.Processed++
	if p.observer != nil {
		p.observer.IncProcessed()
	}
	return models.ProcessedItem{
		Title:       item.Title,
		Description: item.Description,
		Rating:      item.Rating,
		Reviews:     item.Reviews,
		PriceData: models.PriceData{
			Raw:               item.PriceText,
			Currency:          currency,
			Amount:            amount,
			ConvertedCurrency: p.target,
			ConvertedAmount:   converted,
		},
	}
}

// Stats returns a snapshot of the counters.
func (p *Processor) Stats() Stats {
	return p.stats
}

func (p *Processor) observe(reason string) {
	if p.observer != nil {
		p.observer.IncIncompletePrice(reason)
	}
}
