// internal/output/sqlite.go
package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/valpere/listingharvest/pkg/types"
)

// SQLiteWriter writes records to a standalone SQLite database file
type SQLiteWriter struct {
	db    *sql.DB
	table string
}

// NewSQLiteWriter creates the database file and the records table
func NewSQLiteWriter(databasePath, table string) (*SQLiteWriter, error) {
	if databasePath == "" {
		return nil, fmt.Errorf("SQLite database path is required")
	}
	if table == "" {
		table = DefaultSQLiteTable
	}
	if !sqlIdentifierRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}

	if dir := filepath.Dir(databasePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", databasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &SQLiteWriter{db: db, table: table}
	if err := w.createTable(); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLiteWriter) createTable() error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	price INTEGER NOT NULL,
	average_rating REAL NOT NULL DEFAULT 0,
	rating_count INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`, w.table)
	if _, err := w.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Write inserts records in one transaction. A record whose address is
// already present is left unchanged.
func (w *SQLiteWriter) Write(records []types.CleanRecord) error {
	if w.db == nil {
		return ErrWriterClosed
	}
	if len(records) == 0 {
		return nil
	}

	ctx := context.Background()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR IGNORE INTO "%s" (name, price, average_rating, rating_count, description, address) VALUES (?, ?, ?, ?, ?, ?)`,
		w.table))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Name, rec.Price, rec.Rating, rec.RatingCount, rec.Description, rec.Key); err != nil {
			return fmt.Errorf("failed to insert %s: %w", rec.Key, err)
		}
	}
	return tx.Commit()
}

// Close closes the database
func (w *SQLiteWriter) Close() error {
	if w.db != nil {
		err := w.db.Close()
		w.db = nil
		return err
	}
	return nil
}
