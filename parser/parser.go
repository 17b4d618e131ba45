// Package parser turns raw card text into typed values.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ValidateItem ensures the extractor captured the fields downstream
// processing relies on.
func ValidateItem(item *models.CatalogItem) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}
	if strings.TrimSpace(item.Title) == "" {
		return fmt.Errorf("item missing title")
	}
	if item.Rating < 0 {
		return fmt.Errorf("item %q has negative rating", item.Title)
	}
	if item.Reviews < 0 {
		return fmt.Errorf("item %q has negative review count", item.Title)
	}
	return nil
}

// LeadingInt parses the first whitespace-delimited token of text as a
// non-negative integer. "12 reviews" yields 12.
func LeadingInt(text string) (int, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("no count in %q", text)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", fields[0], err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}

// NormalizeText collapses inner whitespace and trims the ends.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
