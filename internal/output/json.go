// internal/output/json.go
package output

import (
	"encoding/json"
	"os"

	"github.com/valpere/listingharvest/pkg/types"
)

// JSONWriter writes records as one indented JSON array
type JSONWriter struct {
	filename string
	file     *os.File
}

// NewJSONWriter creates a new JSON writer
func NewJSONWriter(filename string) (*JSONWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		filename: filename,
		file:     file,
	}, nil
}

// Write writes records to the JSON file
func (w *JSONWriter) Write(records []types.CleanRecord) error {
	if w.file == nil {
		return ErrWriterClosed
	}
	if records == nil {
		records = []types.CleanRecord{}
	}
	encoder := json.NewEncoder(w.file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(records)
}

// Close closes the JSON writer
func (w *JSONWriter) Close() error {
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
