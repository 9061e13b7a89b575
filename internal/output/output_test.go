// internal/output/output_test.go
package output

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/internal/utils"
	"github.com/valpere/listingharvest/pkg/types"
)

var sampleRecords = []types.CleanRecord{
	{Name: "Phone", Price: 1299, Rating: 4.5, RatingCount: 120, Key: "https://s/p/1"},
	{Name: "Funda, \"premium\"", Price: 20000, Description: "Negro | Silicona", Key: "https://s/p/2"},
}

func newTestManager(t *testing.T, format string) (*Manager, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "backups")
	m, err := NewManager(config.BackupConfig{Enabled: true, Dir: dir, Format: format}, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	m.now = func() time.Time { return time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC) }
	return m, dir
}

func TestManager_FileName(t *testing.T) {
	m, _ := newTestManager(t, "csv")

	got := m.FileName("smart tv", m.now())
	want := "dataset_smart_tv_2024-03-01_10-20-30.csv"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestManager_UnsupportedFormat(t *testing.T) {
	_, err := NewManager(config.BackupConfig{Format: "pdf"}, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestManager_DefaultsToCSV(t *testing.T) {
	m, err := NewManager(config.BackupConfig{}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.format != types.FormatCSV {
		t.Errorf("Expected csv, got %s", m.format)
	}
	if m.dir != DefaultBackupDir {
		t.Errorf("Expected %s, got %s", DefaultBackupDir, m.dir)
	}
}

func TestManager_WriteCSV(t *testing.T) {
	m, dir := newTestManager(t, "csv")

	path, err := m.Write("phone", sampleRecords)
	if err != nil {
		t.Fatalf("Failed to write backup: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Expected backup under %s, got %s", dir, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read backup: %v", err)
	}
	if !bytes.HasPrefix(content, utf8BOM) {
		t.Error("Expected UTF-8 BOM at start of file")
	}

	rows, err := csv.NewReader(bytes.NewReader(content[len(utf8BOM):])).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != "name,price,average_rating,rating_count,description,address" {
		t.Errorf("Unexpected header: %v", rows[0])
	}
	if rows[1][2] != "4.5" || rows[1][1] != "1299" {
		t.Errorf("Unexpected first row: %v", rows[1])
	}
	if rows[2][0] != "Funda, \"premium\"" {
		t.Errorf("Expected quoted name to round-trip, got %q", rows[2][0])
	}
}

func TestManager_WriteCSV_EmptyBatchHasHeader(t *testing.T) {
	m, _ := newTestManager(t, "csv")

	path, err := m.Write("nothing", nil)
	if err != nil {
		t.Fatalf("Failed to write backup: %v", err)
	}
	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "name,price") {
		t.Errorf("Expected header in empty backup, got %q", content)
	}
}

func TestManager_WriteJSON(t *testing.T) {
	m, _ := newTestManager(t, "json")

	path, err := m.Write("phone", sampleRecords)
	if err != nil {
		t.Fatalf("Failed to write backup: %v", err)
	}
	if filepath.Ext(path) != ".json" {
		t.Errorf("Expected .json extension, got %s", path)
	}

	content, _ := os.ReadFile(path)
	var got []types.CleanRecord
	if err := json.Unmarshal(content, &got); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if len(got) != 2 || got[0].Key != "https://s/p/1" {
		t.Errorf("Unexpected records: %+v", got)
	}
}

func TestManager_WriteYAML(t *testing.T) {
	m, _ := newTestManager(t, "yaml")

	path, err := m.Write("phone", sampleRecords)
	if err != nil {
		t.Fatalf("Failed to write backup: %v", err)
	}

	content, _ := os.ReadFile(path)
	var got []map[string]interface{}
	if err := yaml.Unmarshal(content, &got); err != nil {
		t.Fatalf("Failed to decode YAML: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(got))
	}
	if got[0]["address"] != "https://s/p/1" {
		t.Errorf("Unexpected address: %v", got[0]["address"])
	}
}

func TestManager_WriteXLSX(t *testing.T) {
	m, _ := newTestManager(t, "xlsx")

	path, err := m.Write("phone", sampleRecords)
	if err != nil {
		t.Fatalf("Failed to write backup: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(DefaultExcelSheetName)
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "name" || rows[1][0] != "Phone" {
		t.Errorf("Unexpected rows: %v", rows[:2])
	}
	if rows[1][1] != "1299" {
		t.Errorf("Expected price 1299, got %s", rows[1][1])
	}
}

func TestManager_WriteSQLite(t *testing.T) {
	m, _ := newTestManager(t, "sqlite")

	result, err := m.WriteResult("phone", append(sampleRecords, sampleRecords[0]))
	if err != nil {
		t.Fatalf("Failed to write backup: %v", err)
	}
	if filepath.Ext(result.FilePath) != ".db" {
		t.Errorf("Expected .db extension, got %s", result.FilePath)
	}
	if result.RecordsCount != 3 {
		t.Errorf("Expected records count 3, got %d", result.RecordsCount)
	}

	db, err := sql.Open("sqlite3", result.FilePath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 unique rows, got %d", count)
	}
}

func TestManager_WriteFailsOnUnwritableDir(t *testing.T) {
	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(config.BackupConfig{Dir: filepath.Join(blocker, "sub"), Format: "csv"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Write("phone", sampleRecords); err == nil {
		t.Error("Expected error when backup directory cannot be created")
	}
}

func TestWriters_WriteAfterClose(t *testing.T) {
	dir := t.TempDir()

	csvW, err := NewCSVWriter(filepath.Join(dir, "a.csv"))
	if err != nil {
		t.Fatal(err)
	}
	csvW.Close()
	if err := csvW.Write(sampleRecords); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("CSV: expected ErrWriterClosed, got %v", err)
	}

	jsonW, err := NewJSONWriter(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatal(err)
	}
	jsonW.Close()
	if err := jsonW.Write(sampleRecords); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("JSON: expected ErrWriterClosed, got %v", err)
	}
}

func TestNewSQLiteWriter_InvalidTable(t *testing.T) {
	_, err := NewSQLiteWriter(filepath.Join(t.TempDir(), "x.db"), "records; DROP")
	if err == nil {
		t.Error("Expected error for invalid table name")
	}
}
