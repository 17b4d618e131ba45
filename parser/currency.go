package parser

import (
	"log/slog"
	"math"
)

// Converter converts amounts between currencies using a static rate table
// where every rate is relative to the same base unit.
type Converter struct {
	Rates  map[string]float64
	Logger *slog.Logger
}

// Convert returns amount expressed in the to currency, rounded to two
// decimal places. It returns nil for a nil amount or when either code has
// no rate.
func (c Converter) Convert(amount *float64, from, to string) *float64 {
	if amount == nil {
		return nil
	}
	if from == to {
		v := *amount
		return &v
	}

	fromRate, okFrom := c.Rates[from]
	toRate, okTo := c.Rates[to]
	if !okFrom || !okTo || fromRate == 0 {
		c.logger().Warn("currency conversion not possible",
			slog.String("from_currency", from),
			slog.String("to_currency", to),
		)
		return nil
	}

	converted := math.Round(*amount/fromRate*toRate*100) / 100
	return &converted
}

func (c Converter) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
