// internal/output/yaml.go
package output

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/valpere/listingharvest/pkg/types"
)

// YAMLWriter writes records as a YAML sequence
type YAMLWriter struct {
	file    *os.File
	encoder *yaml.Encoder
}

// NewYAMLWriter creates a new YAML writer
func NewYAMLWriter(filename string) (*YAMLWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)

	return &YAMLWriter{file: file, encoder: encoder}, nil
}

// Write encodes records as one YAML document
func (w *YAMLWriter) Write(records []types.CleanRecord) error {
	if w.encoder == nil {
		return ErrWriterClosed
	}
	if records == nil {
		records = []types.CleanRecord{}
	}
	if err := w.encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

// Close closes the YAML writer
func (w *YAMLWriter) Close() error {
	var firstErr error
	if w.encoder != nil {
		firstErr = w.encoder.Close()
		w.encoder = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.file = nil
	}
	return firstErr
}
