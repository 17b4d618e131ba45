package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

var amountPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d*)?`)

// SymbolTable maps currency symbols to codes. Symbols are tried longest
// first so "C$" wins over "$".
type SymbolTable struct {
	symbols []string
	codes   map[string]string
}

// NewSymbolTable builds a lookup table from a symbol to code mapping.
func NewSymbolTable(symbols map[string]string) SymbolTable {
	t := SymbolTable{
		symbols: make([]string, 0, len(symbols)),
		codes:   make(map[string]string, len(symbols)),
	}
	for symbol, code := range symbols {
		if symbol == "" {
			continue
		}
		t.symbols = append(t.symbols, symbol)
		t.codes[symbol] = code
	}
	sort.Slice(t.symbols, func(i, j int) bool {
		if len(t.symbols[i]) != len(t.symbols[j]) {
			return len(t.symbols[i]) > len(t.symbols[j])
		}
		return t.symbols[i] < t.symbols[j]
	})
	return t
}

// Match returns the first known symbol found in text.
func (t SymbolTable) Match(text string) (symbol, code string, ok bool) {
	for _, s := range t.symbols {
		if strings.Contains(text, s) {
			return s, t.codes[s], true
		}
	}
	return "", "", false
}

// ParsePrice detects the currency of text and extracts its first numeric
// amount. The amount is nil when text holds no number.
func ParsePrice(text string, symbols SymbolTable, defaultCode string) (string, *float64) {
	currency := defaultCode
	if symbol, code, ok := symbols.Match(text); ok {
		currency = code
		text = strings.TrimSpace(strings.ReplaceAll(text, symbol, ""))
	}

	match := amountPattern.FindString(text)
	if match == "" {
		return currency, nil
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return currency, nil
	}
	return currency, &value
}

type parsedPrice struct {
	currency string
	amount   *float64
}

// PriceParser memoises ParsePrice for repeated price strings.
type PriceParser struct {
	symbols     SymbolTable
	defaultCode string
	cache       *lru.Cache[string, parsedPrice]
}

// NewPriceParser returns a parser with an LRU cache of cacheSize entries.
func NewPriceParser(symbols map[string]string, defaultCode string, cacheSize int) (*PriceParser, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, parsedPrice](cacheSize)
	if err != nil {
		return nil, err
	}
	return &PriceParser{
		symbols:     NewSymbolTable(symbols),
		defaultCode: defaultCode,
		cache:       cache,
	}, nil
}

// Parse returns the currency code and amount for text. Each call gets its
// own amount pointer.
func (p *PriceParser) Parse(text string) (string, *float64) {
	entry, ok := p.cache.Get(text)
	if !ok {
		currency, amount := ParsePrice(text, p.symbols, p.defaultCode)
		entry = parsedPrice{currency: currency, amount: amount}
		p.cache.Add(text, entry)
	}
	if entry.amount == nil {
		return entry.currency, nil
	}
	amount := *entry.amount
	return entry.currency, &amount
}

// DefaultCode is the currency assumed when no symbol is present.
func (p *PriceParser) DefaultCode() string {
	return p.defaultCode
}
