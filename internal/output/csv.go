// internal/output/csv.go
package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/valpere/listingharvest/pkg/types"
)

// utf8BOM lets spreadsheet tools detect the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes records in CSV format
type CSVWriter struct {
	filename string
	file     *os.File
	writer   *csv.Writer
	header   bool
}

// NewCSVWriter creates a new CSV writer
func NewCSVWriter(filename string) (*CSVWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	if _, err := file.Write(utf8BOM); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write BOM: %w", err)
	}

	return &CSVWriter{
		filename: filename,
		file:     file,
		writer:   csv.NewWriter(file),
	}, nil
}

// Write writes records to the CSV file. The header row is written once,
// even for an empty batch.
func (w *CSVWriter) Write(records []types.CleanRecord) error {
	if w.writer == nil {
		return ErrWriterClosed
	}

	if !w.header {
		if err := w.writer.Write(types.CleanRecord{}.Columns()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		w.header = true
	}

	for _, rec := range records {
		if err := w.writer.Write(rec.Values()); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close closes the CSV writer
func (w *CSVWriter) Close() error {
	if w.writer != nil {
		w.writer.Flush()
		w.writer = nil
	}
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
