// internal/output/manager.go

// Package output writes the cleaned batch of a run to a timestamped backup
// file in one of several formats.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

// Manager writes backups under a directory in the configured format
type Manager struct {
	dir    string
	format types.BackupFormat
	now    func() time.Time
	logger utils.Logger
}

// NewManager creates a new backup manager
func NewManager(cfg config.BackupConfig, logger utils.Logger) (*Manager, error) {
	format := types.BackupFormat(cfg.Format)
	if format == "" {
		format = types.FormatCSV
	}
	if !format.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, cfg.Format)
	}

	dir := cfg.Dir
	if dir == "" {
		dir = DefaultBackupDir
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	return &Manager{
		dir:    dir,
		format: format,
		now:    time.Now,
		logger: logger,
	}, nil
}

// FileName returns the backup file name for a term at t, e.g.
// dataset_smart_tv_2024-03-01_10-20-30.csv.
func (m *Manager) FileName(term string, t time.Time) string {
	return fmt.Sprintf("dataset_%s_%s%s", utils.CleanFileName(term), t.Format(TimestampLayout), m.format.GetFileExtension())
}

// GetWriter returns the writer for the configured format at path
func (m *Manager) GetWriter(path string) (Writer, error) {
	switch m.format {
	case types.FormatCSV:
		return NewCSVWriter(path)
	case types.FormatJSON:
		return NewJSONWriter(path)
	case types.FormatYAML:
		return NewYAMLWriter(path)
	case types.FormatXLSX:
		return NewExcelWriter(path)
	case types.FormatSQLite:
		return NewSQLiteWriter(path, DefaultSQLiteTable)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, m.format)
	}
}

// Write writes records to a new backup file and returns its path
func (m *Manager) Write(term string, records []types.CleanRecord) (string, error) {
	result, err := m.WriteResult(term, records)
	if err != nil {
		return "", err
	}
	return result.FilePath, nil
}

// WriteResult is Write with file details
func (m *Manager) WriteResult(term string, records []types.CleanRecord) (*Result, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(m.dir, m.FileName(term, m.now()))
	writer, err := m.GetWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get writer: %w", err)
	}

	if err := writer.Write(records); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close backup: %w", err)
	}

	result := &Result{
		FilePath:     path,
		Format:       string(m.format),
		RecordsCount: len(records),
	}
	if info, err := os.Stat(path); err == nil {
		result.Size = info.Size()
	}
	m.logger.WithFields(map[string]interface{}{
		"path":    path,
		"records": result.RecordsCount,
		"bytes":   result.Size,
	}).Debug("backup file written")
	return result, nil
}
