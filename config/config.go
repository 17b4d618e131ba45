package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rendering modes for the catalog page.
const (
	ModeBrowser = "browser"
	ModeStatic  = "static"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL         string         `yaml:"base_url"`
	Category        string         `yaml:"category"`
	Mode            string         `yaml:"mode"`
	Selectors       Selectors      `yaml:"selectors"`
	Currency        CurrencyConfig `yaml:"currency"`
	Output          OutputConfig   `yaml:"output"`
	Logging         LoggingConfig  `yaml:"logging"`
	Retry           RetryConfig    `yaml:"retry"`
	Timeouts        TimeoutConfig  `yaml:"timeouts"`
	Browser         BrowserConfig  `yaml:"browser"`
	MaxStaleRetries int            `yaml:"max_stale_retries"`
	MaxLoadCycles   int            `yaml:"max_load_cycles"`
	PriceCacheSize  int            `yaml:"price_cache_size"`
	MetricsAddr     string         `yaml:"metrics_addr"`
}

// Selectors addresses the parts of a catalog card.
type Selectors struct {
	Card             string `yaml:"card"`
	LoadMoreButton   string `yaml:"load_more_button"`
	Title            string `yaml:"title"`
	Price            string `yaml:"price"`
	Description      string `yaml:"description"`
	RatingsContainer string `yaml:"ratings_container"`
	StarIcon         string `yaml:"star_icon"`
	Reviews          string `yaml:"reviews"`
}

// CurrencyConfig drives price normalization and conversion. Rates are
// relative to a common base unit.
type CurrencyConfig struct {
	Default string             `yaml:"default"`
	Target  string             `yaml:"target"`
	Rates   map[string]float64 `yaml:"rates"`
	Symbols map[string]string  `yaml:"symbols"`
}

// OutputConfig names the persisted artifacts.
type OutputConfig struct {
	RawJSONFilename    string `yaml:"raw_json_filename"`
	RawCSVFilename     string `yaml:"raw_csv_filename"`
	JSONFilename       string `yaml:"json_filename"`
	CSVFilename        string `yaml:"csv_filename"`
	FailedJSONFilename string `yaml:"failed_json_filename"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// RetryConfig is the retry budget for unreliable interactions.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// TimeoutConfig bounds every wait in the pagination loop.
type TimeoutConfig struct {
	Wait   time.Duration `yaml:"wait"`
	Growth time.Duration `yaml:"growth"`
	Poll   time.Duration `yaml:"poll"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	Headless  bool          `yaml:"headless"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// DefaultCurrencySymbols maps price symbols to ISO currency codes.
func DefaultCurrencySymbols() map[string]string {
	return map[string]string{
		"$":  "USD",
		"€":  "EUR",
		"£":  "GBP",
		"¥":  "JPY",
		"C$": "CAD",
	}
}

// DefaultRates returns a static USD-based rate table.
func DefaultRates() map[string]float64 {
	return map[string]float64{
		"USD": 1.0,
		"EUR": 0.85,
		"GBP": 0.76,
		"JPY": 110.0,
		"CAD": 1.25,
	}
}

// DefaultConfig returns defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "https://webscraper.io/test-sites/e-commerce/more",
		Category: "computers/laptops",
		Mode:     ModeBrowser,
		Selectors: Selectors{
			Card:             ".thumbnail",
			LoadMoreButton:   ".ecomerce-items-scroll-more",
			Title:            ".title",
			Price:            ".price",
			Description:      ".description",
			RatingsContainer: ".ratings",
			StarIcon:         ".ws-icon-star",
			Reviews:          ".review-count",
		},
		Currency: CurrencyConfig{
			Default: "USD",
			Target:  "EUR",
			Rates:   DefaultRates(),
			Symbols: DefaultCurrencySymbols(),
		},
		Output: OutputConfig{
			RawJSONFilename:    "products_raw.json",
			RawCSVFilename:     "products_raw.csv",
			JSONFilename:       "products.json",
			CSVFilename:        "products.csv",
			FailedJSONFilename: "failed_products.json",
		},
		Logging: LoggingConfig{
			Level:   "INFO",
			Format:  "text",
			Console: true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     500 * time.Millisecond,
		},
		Timeouts: TimeoutConfig{
			Wait:   10 * time.Second,
			Growth: 10 * time.Second,
			Poll:   250 * time.Millisecond,
		},
		Browser: BrowserConfig{
			Headless:  true,
			Timeout:   30 * time.Second,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		},
		MaxStaleRetries: 5,
		MaxLoadCycles:   0,
		PriceCacheSize:  1024,
	}
}

// Load reads a YAML file over the defaults. A missing file yields an error
// matching os.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("configuration file not found: %w", err)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults. Rate and symbol tables in the
// document replace the default tables instead of merging with them.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Currency.Rates = nil
	cfg.Currency.Symbols = nil

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Currency.Rates == nil {
		cfg.Currency.Rates = DefaultRates()
	}
	if cfg.Currency.Symbols == nil {
		cfg.Currency.Symbols = DefaultCurrencySymbols()
	}
	return cfg, nil
}

// CatalogURL joins the base address and the catalog path segment.
func (c *Config) CatalogURL() string {
	base := strings.TrimRight(c.BaseURL, "/")
	category := strings.Trim(c.Category, "/")
	if category == "" {
		return base
	}
	return base + "/" + category
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Mode != ModeBrowser && c.Mode != ModeStatic {
		return fmt.Errorf("mode must be %s or %s", ModeBrowser, ModeStatic)
	}
	if err := c.Selectors.validate(); err != nil {
		return err
	}
	if err := c.Currency.validate(); err != nil {
		return err
	}
	if err := c.Output.validate(); err != nil {
		return err
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.Timeouts.Wait <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}
	if c.Timeouts.Growth <= 0 {
		return fmt.Errorf("growth timeout must be positive")
	}
	if c.Timeouts.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.Timeouts.Poll > c.Timeouts.Growth {
		return fmt.Errorf("poll interval (%s) cannot exceed growth timeout (%s)", c.Timeouts.Poll, c.Timeouts.Growth)
	}
	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("browser timeout must be positive")
	}
	if c.MaxStaleRetries < 0 {
		return fmt.Errorf("max stale retries cannot be negative")
	}
	if c.MaxLoadCycles < 0 {
		return fmt.Errorf("max load cycles cannot be negative")
	}
	if c.PriceCacheSize <= 0 {
		return fmt.Errorf("price cache size must be positive")
	}

	return nil
}

func (s Selectors) validate() error {
	named := []struct {
		name  string
		value string
	}{
		{"card", s.Card},
		{"load_more_button", s.LoadMoreButton},
		{"title", s.Title},
		{"price", s.Price},
		{"description", s.Description},
		{"ratings_container", s.RatingsContainer},
		{"star_icon", s.StarIcon},
		{"reviews", s.Reviews},
	}
	for _, sel := range named {
		if strings.TrimSpace(sel.value) == "" {
			return fmt.Errorf("selector %q cannot be empty", sel.name)
		}
	}
	return nil
}

func (c CurrencyConfig) validate() error {
	if c.Default == "" {
		return fmt.Errorf("default currency cannot be empty")
	}
	if c.Target == "" {
		return fmt.Errorf("target currency cannot be empty")
	}
	for code, rate := range c.Rates {
		if rate <= 0 {
			return fmt.Errorf("currency rate for %s must be positive", code)
		}
	}
	for symbol, code := range c.Symbols {
		if symbol == "" || code == "" {
			return fmt.Errorf("currency symbols cannot map empty values")
		}
	}
	return nil
}

func (o OutputConfig) validate() error {
	if o.RawJSONFilename == "" || o.RawCSVFilename == "" || o.JSONFilename == "" || o.CSVFilename == "" {
		return fmt.Errorf("output filenames cannot be empty")
	}
	if o.FailedJSONFilename == "" {
		return fmt.Errorf("failed products filename cannot be empty")
	}
	return nil
}
