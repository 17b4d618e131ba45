package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// Extractor reads catalog cards into CatalogItems.
type Extractor struct {
	selectors config.Selectors
	retrier   *Retrier
	logger    *slog.Logger
	metrics   *Metrics
}

// NewExtractor builds an extractor. Card reads run through retrier.
func NewExtractor(selectors config.Selectors, retrier *Retrier, logger *slog.Logger, metrics *Metrics) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		selectors: selectors,
		retrier:   retrier,
		logger:    logger,
		metrics:   metrics,
	}
}

// Extract reads one card, retrying transient faults. A missing sub-element
// fails with ErrNotFound.
func (e *Extractor) Extract(ctx context.Context, card Node) (models.CatalogItem, error) {
	return Do(ctx, e.retrier, "extract_card", func() (models.CatalogItem, error) {
		return e.read(card)
	})
}

// ExtractFrom resolves cards[cursor:] in index order and returns one
// outcome per index plus the cursor for the next call. It stops early,
// leaving the remaining indices unresolved, only when ctx is done.
func (e *Extractor) ExtractFrom(ctx context.Context, cards []Node, cursor int) ([]models.Outcome, int) {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(cards) {
		return nil, cursor
	}

	e.logger.Info("extracting product data",
		slog.Int("start_index", cursor),
		slog.Int("total_cards", len(cards)),
		slog.Int("processing_cards", len(cards)-cursor),
	)

	outcomes := make([]models.Outcome, 0, len(cards)-cursor)
	for i := cursor; i < len(cards); i++ {
		if ctx.Err() != nil {
			return outcomes, i
		}

		item, err := e.Extract(ctx, cards[i])
		if err != nil {
			failure := models.ExtractionFailure{
				Index:  i,
				Reason: failureReason(err),
				Kind:   failureKind(err),
			}
			e.logger.Error("error extracting data from product card",
				slog.Int("product_index", i),
				slog.String("error_type", string(failure.Kind)),
				slog.Any("error", err),
			)
			e.metrics.IncFailure(string(failure.Kind))
			outcomes = append(outcomes, models.Failed{Failure: failure})
			continue
		}

		e.logger.Debug("extracted product data",
			slog.Int("product_index", i),
			slog.String("product_title", item.Title),
		)
		e.metrics.IncExtracted()
		outcomes = append(outcomes, models.Extracted{Index: i, Item: item})
	}
	return outcomes, len(cards)
}

func (e *Extractor) read(card Node) (models.CatalogItem, error) {
	titleEl, err := first(card, e.selectors.Title)
	if err != nil {
		return models.CatalogItem{}, err
	}
	title, err := titleEl.Attribute("title")
	if err != nil {
		return models.CatalogItem{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		if title, err = titleEl.Text(); err != nil {
			return models.CatalogItem{}, err
		}
		title = parser.NormalizeText(title)
	}

	price, err := childText(card, e.selectors.Price)
	if err != nil {
		return models.CatalogItem{}, err
	}
	description, err := childText(card, e.selectors.Description)
	if err != nil {
		return models.CatalogItem{}, err
	}

	ratings, err := first(card, e.selectors.RatingsContainer)
	if err != nil {
		return models.CatalogItem{}, err
	}
	stars, err := ratings.Find(e.selectors.StarIcon)
	if err != nil {
		return models.CatalogItem{}, err
	}

	reviewsText, err := childText(card, e.selectors.Reviews)
	if err != nil {
		return models.CatalogItem{}, err
	}
	reviews, err := parser.LeadingInt(reviewsText)
	if err != nil {
		return models.CatalogItem{}, fmt.Errorf("parse reviews: %w", err)
	}

	return models.CatalogItem{
		Title:       title,
		PriceText:   price,
		Description: description,
		Rating:      len(stars),
		Reviews:     reviews,
	}, nil
}

func first(node Node, selector string) (Node, error) {
	matches, err := node.Find(selector)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound{Selector: selector}
	}
	return matches[0], nil
}

func childText(node Node, selector string) (string, error) {
	el, err := first(node, selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return parser.NormalizeText(text), nil
}
