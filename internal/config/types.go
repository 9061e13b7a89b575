// internal/config/types.go

// Package config provides configuration types and loading for listingharvest.
// It defines the search, fetch, selector, sink, delivery, backup, logging and
// metrics settings consumed by a pipeline run.
package config

import (
	"time"
)

// Config represents the main configuration structure for a harvest run.
type Config struct {
	// Name identifies this configuration
	Name string `yaml:"name" json:"name"`

	// Search describes which listing pages to walk
	Search SearchConfig `yaml:"search" json:"search"`

	// Fetch controls how item pages are retrieved
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// CrawlPolicy controls robots.txt handling
	CrawlPolicy CrawlPolicyConfig `yaml:"crawl_policy" json:"crawl_policy"`

	// Selectors locate listing items and product fields
	Selectors SelectorsConfig `yaml:"selectors" json:"selectors"`

	// Sink is the persistence service records are delivered to
	Sink SinkConfig `yaml:"sink" json:"sink"`

	// Delivery controls submission to the sink
	Delivery DeliveryConfig `yaml:"delivery" json:"delivery"`

	// Backup optionally writes cleaned records to a timestamped file
	Backup BackupConfig `yaml:"backup" json:"backup"`

	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// SearchConfig defines listing-page discovery.
type SearchConfig struct {
	// Term is the search term, spaces become dashes in the listing URL
	Term string `yaml:"term" json:"term"`

	// MaxPages caps how many listing pages are walked
	MaxPages int `yaml:"max_pages" json:"max_pages"`

	// PageSize is the number of items per listing page; page N starts at N*PageSize+1
	PageSize int `yaml:"page_size" json:"page_size"`

	// URLTemplate must contain {term} and {offset}
	URLTemplate string `yaml:"url_template" json:"url_template"`

	// PageInterval is the minimum delay between listing page requests
	PageInterval time.Duration `yaml:"page_interval,omitempty" json:"page_interval,omitempty"`
}

// FetchConfig defines how pages are requested.
type FetchConfig struct {
	// Mode is "http" or "browser"
	Mode string `yaml:"mode" json:"mode"`

	// Concurrency is the ceiling of in-flight fetch+extract units
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// Timeout applies to each individual request
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// Locale drives the Accept-Language header, e.g. "es-ES"
	Locale string `yaml:"locale" json:"locale"`

	Referer string `yaml:"referer,omitempty" json:"referer,omitempty"`

	// Headers are sent with every request and override the defaults
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// RequestsPerSecond paces item requests; 0 disables pacing
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty"`

	// Browser settings used when Mode is "browser"
	Browser BrowserConfig `yaml:"browser,omitempty" json:"browser,omitempty"`
}

// BrowserConfig holds headless browser settings.
type BrowserConfig struct {
	Headless      bool   `yaml:"headless" json:"headless"`
	ExecPath      string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	DisableImages bool   `yaml:"disable_images" json:"disable_images"`
	// WaitSelector is awaited before the page HTML is captured
	WaitSelector string `yaml:"wait_selector,omitempty" json:"wait_selector,omitempty"`
}

// CrawlPolicyConfig defines robots.txt handling.
type CrawlPolicyConfig struct {
	// Enabled turns the robots.txt check on at all
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Enforce stops pagination at a disallowed page instead of only logging
	Enforce bool `yaml:"enforce" json:"enforce"`

	// RobotsURL overrides the per-host /robots.txt location
	RobotsURL string `yaml:"robots_url,omitempty" json:"robots_url,omitempty"`
}

// SelectorsConfig groups CSS selectors for listing and item pages.
type SelectorsConfig struct {
	Listing ListingSelectors `yaml:"listing" json:"listing"`
	Item    ItemSelectors    `yaml:"item" json:"item"`
}

// ListingSelectors locate item containers and their detail links.
type ListingSelectors struct {
	Container string `yaml:"container" json:"container"`
	Link      string `yaml:"link" json:"link"`
}

// ItemSelectors locate product fields on an item page.
type ItemSelectors struct {
	Name             FieldConfig `yaml:"name" json:"name"`
	Price            FieldConfig `yaml:"price" json:"price"`
	Rating           FieldConfig `yaml:"rating" json:"rating"`
	RatingCount      FieldConfig `yaml:"rating_count" json:"rating_count"`
	Features         FieldConfig `yaml:"features" json:"features"`
	FeatureSeparator string      `yaml:"feature_separator" json:"feature_separator"`
}

// FieldConfig defines how to extract a single field.
type FieldConfig struct {
	// Selector is the CSS selector for the field
	Selector string `yaml:"selector" json:"selector"`

	// Required indicates the markup must contain this field
	Required bool `yaml:"required" json:"required"`
}

// SinkConfig defines the persistence sink.
type SinkConfig struct {
	// Type is "http" or "sql"
	Type string `yaml:"type" json:"type"`

	BaseURL     string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	RecordsPath string        `yaml:"records_path,omitempty" json:"records_path,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// PageSize is the limit used while scanning known records
	PageSize int `yaml:"page_size" json:"page_size"`

	SQL SQLSinkConfig `yaml:"sql,omitempty" json:"sql,omitempty"`
}

// SQLSinkConfig defines a database/sql backed sink.
type SQLSinkConfig struct {
	// Driver is "postgres", "sqlite3" or "mysql"
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn" json:"dsn"`
	Table  string `yaml:"table" json:"table"`
	// CreateTable creates the records table when missing
	CreateTable bool `yaml:"create_table" json:"create_table"`
}

// DeliveryConfig controls submission to the sink.
type DeliveryConfig struct {
	// Concurrency of submissions; 1 keeps delivery sequential
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// BackupConfig controls the optional per-run backup file.
type BackupConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
	// Format is csv, json, yaml, xlsx or sqlite
	Format string `yaml:"format" json:"format"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr enables the /metrics and /health server when set, e.g. ":9090"
	Addr      string `yaml:"addr,omitempty" json:"addr,omitempty"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}
