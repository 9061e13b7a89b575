// internal/output/excel.go
package output

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/valpere/listingharvest/pkg/types"
)

const (
	// DefaultExcelSheetName is the sheet holding the records
	DefaultExcelSheetName = "dataset"
	// ExcelMaxCellLength is the maximum characters in a single Excel cell
	ExcelMaxCellLength = 32767
)

// excelColumnWidths by column name; unknown columns get 15.
var excelColumnWidths = map[string]float64{
	"name":        40,
	"description": 60,
	"address":     60,
}

// ExcelWriter writes records to an .xlsx workbook. Rows are buffered in the
// workbook and saved on Close.
type ExcelWriter struct {
	file      *excelize.File
	filePath  string
	sheetName string
	row       int
}

// NewExcelWriter creates a new Excel writer
func NewExcelWriter(filePath string) (*ExcelWriter, error) {
	if filePath == "" {
		return nil, fmt.Errorf("Excel file path is required")
	}

	file := excelize.NewFile()
	if err := file.SetSheetName(file.GetSheetName(0), DefaultExcelSheetName); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	w := &ExcelWriter{
		file:      file,
		filePath:  filePath,
		sheetName: DefaultExcelSheetName,
		row:       1,
	}
	if err := w.writeHeaders(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *ExcelWriter) writeHeaders() error {
	headers := types.CleanRecord{}.Columns()
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := w.file.SetSheetRow(w.sheetName, "A1", &row); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := w.file.SetCellStyle(w.sheetName, "A1", last, style); err != nil {
		return err
	}

	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width, ok := excelColumnWidths[h]
		if !ok {
			width = 15
		}
		if err := w.file.SetColWidth(w.sheetName, col, col, width); err != nil {
			return err
		}
	}

	w.row = 2
	return nil
}

// Write appends records as rows, keeping numeric columns numeric
func (w *ExcelWriter) Write(records []types.CleanRecord) error {
	if w.file == nil {
		return ErrWriterClosed
	}
	for _, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, w.row)
		if err != nil {
			return err
		}
		row := []interface{}{
			truncateCell(rec.Name),
			rec.Price,
			rec.Rating,
			rec.RatingCount,
			truncateCell(rec.Description),
			truncateCell(rec.Key),
		}
		if err := w.file.SetSheetRow(w.sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", w.row, err)
		}
		w.row++
	}
	return nil
}

// Close applies the filter and frozen header, then saves the workbook
func (w *ExcelWriter) Close() error {
	if w.file == nil {
		return nil
	}
	defer func() {
		w.file.Close()
		w.file = nil
	}()

	if err := w.applyFinalFormatting(); err != nil {
		return err
	}
	return w.file.SaveAs(w.filePath)
}

func (w *ExcelWriter) applyFinalFormatting() error {
	lastCol, err := excelize.ColumnNumberToName(len(types.CleanRecord{}.Columns()))
	if err != nil {
		return err
	}
	lastRow := w.row - 1
	if lastRow > 1 {
		if err := w.file.AutoFilter(w.sheetName, fmt.Sprintf("A1:%s%d", lastCol, lastRow), nil); err != nil {
			return err
		}
	}
	return w.file.SetPanes(w.sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func truncateCell(s string) string {
	r := []rune(s)
	if len(r) > ExcelMaxCellLength {
		return string(r[:ExcelMaxCellLength])
	}
	return s
}
