// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

const (
	DefaultURLTemplate = "https://listado.mercadolibre.com.co/{term}_Desde_{offset}_NoIndex_True"
	DefaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36"
	DefaultLocale      = "es-ES"
	DefaultReferer     = "https://www.google.com"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Default returns a configuration populated with the defaults for every field.
// File values are decoded on top of it, so omitted keys keep these values.
func Default() *Config {
	return &Config{
		Name: "listingharvest",
		Search: SearchConfig{
			MaxPages:    3,
			PageSize:    50,
			URLTemplate: DefaultURLTemplate,
		},
		Fetch: FetchConfig{
			Mode:        "http",
			Concurrency: 10,
			Timeout:     10 * time.Second,
			UserAgent:   DefaultUserAgent,
			Locale:      DefaultLocale,
			Referer:     DefaultReferer,
			Browser: BrowserConfig{
				Headless:      true,
				DisableImages: true,
			},
		},
		CrawlPolicy: CrawlPolicyConfig{
			Enabled: true,
			Enforce: false,
		},
		Selectors: SelectorsConfig{
			Listing: ListingSelectors{
				Container: "div.poly-card",
				Link:      "a.poly-component__title",
			},
			Item: ItemSelectors{
				Name:             FieldConfig{Selector: "h1.ui-pdp-title", Required: true},
				Price:            FieldConfig{Selector: "span.andes-money-amount__fraction", Required: true},
				Rating:           FieldConfig{Selector: "span.ui-pdp-review__rating"},
				RatingCount:      FieldConfig{Selector: "span.ui-pdp-review__amount"},
				Features:         FieldConfig{Selector: "li.ui-vpp-highlighted-specs__features-list-item"},
				FeatureSeparator: " | ",
			},
		},
		Sink: SinkConfig{
			Type:        "http",
			BaseURL:     "http://localhost:8000",
			RecordsPath: "/records",
			Timeout:     10 * time.Second,
			PageSize:    1000,
			SQL: SQLSinkConfig{
				Table: "records",
			},
		},
		Delivery: DeliveryConfig{
			Concurrency: 1,
		},
		Backup: BackupConfig{
			Dir:    "backups",
			Format: "csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "listingharvest",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Missing files are ignored;
// variables already set take precedence.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", filename)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes decodes YAML on top of Default. Environment variables are
// expanded first. The result is not validated: callers apply overrides and
// then call Validate.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// GenerateTemplate renders the default configuration as YAML.
func GenerateTemplate() ([]byte, error) {
	cfg := Default()
	cfg.Search.Term = "laptop"
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template to YAML: %w", err)
	}
	return data, nil
}

// ApplyDefaults fills values that were explicitly emptied in a file.
func ApplyDefaults(cfg *Config) {
	def := Default()

	if cfg.Search.PageSize == 0 {
		cfg.Search.PageSize = def.Search.PageSize
	}
	if cfg.Search.URLTemplate == "" {
		cfg.Search.URLTemplate = def.Search.URLTemplate
	}
	if cfg.Fetch.Mode == "" {
		cfg.Fetch.Mode = def.Fetch.Mode
	}
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = def.Fetch.Timeout
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = def.Fetch.UserAgent
	}
	if cfg.Selectors.Item.FeatureSeparator == "" {
		cfg.Selectors.Item.FeatureSeparator = def.Selectors.Item.FeatureSeparator
	}
	if cfg.Sink.Type == "" {
		cfg.Sink.Type = def.Sink.Type
	}
	if cfg.Sink.RecordsPath == "" {
		cfg.Sink.RecordsPath = def.Sink.RecordsPath
	}
	if cfg.Sink.Timeout == 0 {
		cfg.Sink.Timeout = def.Sink.Timeout
	}
	if cfg.Sink.PageSize == 0 {
		cfg.Sink.PageSize = def.Sink.PageSize
	}
	if cfg.Sink.SQL.Table == "" {
		cfg.Sink.SQL.Table = def.Sink.SQL.Table
	}
	if cfg.Delivery.Concurrency == 0 {
		cfg.Delivery.Concurrency = def.Delivery.Concurrency
	}
	if cfg.Backup.Dir == "" {
		cfg.Backup.Dir = def.Backup.Dir
	}
	if cfg.Backup.Format == "" {
		cfg.Backup.Format = def.Backup.Format
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = def.Metrics.Namespace
	}
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []ValidationError
	add := func(path, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(c.Search.Term) == "" {
		add("search.term", "is required")
	}
	if c.Search.MaxPages <= 0 {
		add("search.max_pages", "must be positive, got %d", c.Search.MaxPages)
	}
	if c.Search.PageSize <= 0 {
		add("search.page_size", "must be positive, got %d", c.Search.PageSize)
	}
	if !strings.Contains(c.Search.URLTemplate, "{term}") || !strings.Contains(c.Search.URLTemplate, "{offset}") {
		add("search.url_template", "must contain {term} and {offset}")
	}
	if c.Search.PageInterval < 0 {
		add("search.page_interval", "cannot be negative")
	}

	if !types.FetchMode(c.Fetch.Mode).IsValid() {
		add("fetch.mode", "must be http or browser, got %q", c.Fetch.Mode)
	}
	if c.Fetch.Concurrency <= 0 {
		add("fetch.concurrency", "must be positive, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.Timeout <= 0 {
		add("fetch.timeout", "must be positive")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		add("fetch.requests_per_second", "cannot be negative")
	}
	if c.Fetch.Locale != "" {
		if _, err := language.Parse(c.Fetch.Locale); err != nil {
			add("fetch.locale", "invalid language tag %q", c.Fetch.Locale)
		}
	}

	if c.Selectors.Listing.Container == "" {
		add("selectors.listing.container", "is required")
	}
	if c.Selectors.Listing.Link == "" {
		add("selectors.listing.link", "is required")
	}
	if c.Selectors.Item.Name.Selector == "" {
		add("selectors.item.name.selector", "is required")
	}
	if c.Selectors.Item.Price.Selector == "" {
		add("selectors.item.price.selector", "is required")
	}

	switch c.Sink.Type {
	case "http":
		if !utils.IsValidURL(c.Sink.BaseURL) {
			add("sink.base_url", "must be an absolute URL, got %q", c.Sink.BaseURL)
		}
	case "sql":
		switch c.Sink.SQL.Driver {
		case "postgres", "sqlite3", "mysql":
		default:
			add("sink.sql.driver", "must be postgres, sqlite3 or mysql, got %q", c.Sink.SQL.Driver)
		}
		if c.Sink.SQL.DSN == "" {
			add("sink.sql.dsn", "is required")
		}
		if !tableNamePattern.MatchString(c.Sink.SQL.Table) {
			add("sink.sql.table", "invalid table name %q", c.Sink.SQL.Table)
		}
	default:
		add("sink.type", "must be http or sql, got %q", c.Sink.Type)
	}
	if c.Sink.PageSize <= 0 {
		add("sink.page_size", "must be positive, got %d", c.Sink.PageSize)
	}

	if c.Delivery.Concurrency <= 0 {
		add("delivery.concurrency", "must be positive, got %d", c.Delivery.Concurrency)
	}

	if !types.BackupFormat(c.Backup.Format).IsValid() {
		add("backup.format", "unsupported format %q", c.Backup.Format)
	}

	if len(errs) == 0 {
		return nil
	}
	return ValidationErrors(errs)
}

// AcceptLanguage derives an Accept-Language header value from the locale,
// e.g. "es-ES" becomes "es-ES,es;q=0.9". An empty locale yields "".
func (f FetchConfig) AcceptLanguage() string {
	if f.Locale == "" {
		return ""
	}
	tag, err := language.Parse(f.Locale)
	if err != nil {
		return f.Locale
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == tag.String() {
		return tag.String()
	}
	return fmt.Sprintf("%s,%s;q=0.9", tag.String(), base.String())
}

// RequestHeaders returns the headers sent with every fetch. Explicit
// Headers entries win over the derived ones.
func (f FetchConfig) RequestHeaders() map[string]string {
	headers := map[string]string{
		"User-Agent": f.UserAgent,
	}
	if al := f.AcceptLanguage(); al != "" {
		headers["Accept-Language"] = al
	}
	if f.Referer != "" {
		headers["Referer"] = f.Referer
	}
	for k, v := range f.Headers {
		headers[k] = v
	}
	return headers
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
}

// ValidationErrors aggregates every problem found by Validate.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Error()
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}
