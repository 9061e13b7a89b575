// internal/output/types.go
package output

import (
	"errors"
	"regexp"

	"github.com/valpere/listingharvest/pkg/types"
)

// Writer defines the interface for backup writers
type Writer interface {
	Write(records []types.CleanRecord) error
	Close() error
}

// TimestampLayout is the layout of the timestamp in backup file names.
const TimestampLayout = "2006-01-02_15-04-05"

// DefaultBackupDir is used when no directory is configured.
const DefaultBackupDir = "backups"

// DefaultSQLiteTable is the table written by the sqlite backup writer.
const DefaultSQLiteTable = "records"

var (
	// ErrUnsupportedFormat is returned for unknown backup formats.
	ErrUnsupportedFormat = errors.New("unsupported backup format")
	// ErrWriterClosed is returned when writing after Close.
	ErrWriterClosed = errors.New("writer is closed")

	sqlIdentifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Result describes one written backup file.
type Result struct {
	FilePath     string `json:"file_path"`
	Format       string `json:"format"`
	RecordsCount int    `json:"records_count"`
	Size         int64  `json:"size"`
}
