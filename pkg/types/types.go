// pkg/types/types.go

// Package types holds the records that flow through a harvest run and the
// enumerations shared by its stages.
package types

import (
	"fmt"
	"strconv"
)

// RunStatus represents the terminal state of a harvest run
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusAborted   RunStatus = "aborted"
)

// FetchMode selects how item pages are retrieved
type FetchMode string

const (
	FetchModeHTTP    FetchMode = "http"
	FetchModeBrowser FetchMode = "browser"
)

// IsValid checks if the fetch mode is supported
func (m FetchMode) IsValid() bool {
	return m == FetchModeHTTP || m == FetchModeBrowser
}

// BackupFormat represents supported backup file formats
type BackupFormat string

const (
	FormatCSV    BackupFormat = "csv"
	FormatJSON   BackupFormat = "json"
	FormatYAML   BackupFormat = "yaml"
	FormatXLSX   BackupFormat = "xlsx"
	FormatSQLite BackupFormat = "sqlite"
)

// ValidBackupFormats returns all valid backup format values
func ValidBackupFormats() []BackupFormat {
	return []BackupFormat{FormatCSV, FormatJSON, FormatYAML, FormatXLSX, FormatSQLite}
}

// IsValid checks if the backup format is valid
func (f BackupFormat) IsValid() bool {
	for _, valid := range ValidBackupFormats() {
		if f == valid {
			return true
		}
	}
	return false
}

// GetFileExtension returns the file extension for the format
func (f BackupFormat) GetFileExtension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	case FormatXLSX:
		return ".xlsx"
	case FormatSQLite:
		return ".db"
	default:
		return ".txt"
	}
}

// RawCandidate is the untyped text pulled from one item page. SourceAddress
// is always set; the other fields may be empty when the markup lacks them.
type RawCandidate struct {
	Name          string `json:"name"`
	Price         string `json:"price"`
	Rating        string `json:"rating"`
	RatingCount   string `json:"rating_count"`
	Description   string `json:"description"`
	SourceAddress string `json:"source_address"`
}

// CleanRecord is a normalized record ready for delivery. Name and Key are
// never empty.
type CleanRecord struct {
	Name        string  `json:"name" yaml:"name"`
	Price       int64   `json:"price" yaml:"price"`
	Rating      float64 `json:"average_rating" yaml:"average_rating"`
	RatingCount int64   `json:"rating_count" yaml:"rating_count"`
	Description string  `json:"description" yaml:"description"`
	Key         string  `json:"address" yaml:"address"`
}

// Columns lists the flat column names used by tabular writers.
func (CleanRecord) Columns() []string {
	return []string{"name", "price", "average_rating", "rating_count", "description", "address"}
}

// Values returns the record as strings in Columns order.
func (r CleanRecord) Values() []string {
	return []string{
		r.Name,
		fmt.Sprintf("%d", r.Price),
		strconv.FormatFloat(r.Rating, 'f', -1, 64),
		fmt.Sprintf("%d", r.RatingCount),
		r.Description,
		r.Key,
	}
}

// DeliveryOutcome classifies a single sink submission
type DeliveryOutcome int

const (
	OutcomeError DeliveryOutcome = iota
	OutcomeCreated
	OutcomeDuplicate
)

// String returns the string representation of the outcome
func (o DeliveryOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "error"
	}
}

// RunSummary accumulates delivery counters for one run
type RunSummary struct {
	Created   int `json:"created"`
	Duplicate int `json:"duplicate"`
	Error     int `json:"error"`
}

// Total returns the number of records accounted for
func (s RunSummary) Total() int {
	return s.Created + s.Duplicate + s.Error
}

// Report is the outcome of a complete run
type Report struct {
	RunID      string     `json:"run_id"`
	Term       string     `json:"term"`
	Status     RunStatus  `json:"status"`
	Discovered int        `json:"discovered"`
	Extracted  int        `json:"extracted"`
	Cleaned    int        `json:"cleaned"`
	Known      int        `json:"known"`
	BackupPath string     `json:"backup_path,omitempty"`
	Summary    RunSummary `json:"summary"`
}

// String renders the one-line run report
func (r Report) String() string {
	return fmt.Sprintf("%d addresses | %d extracted | %d cleaned | %d created | %d duplicates | %d errors",
		r.Discovered, r.Extracted, r.Cleaned, r.Summary.Created, r.Summary.Duplicate, r.Summary.Error)
}
