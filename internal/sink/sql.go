// internal/sink/sql.go
package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/valpere/listingharvest/internal/config"
	"github.com/valpere/listingharvest/pkg/types"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures the statements that differ between drivers.
type dialect struct {
	placeholder  func(n int) string
	quote        func(ident string) string
	insertPrefix string
	insertSuffix string
	createTable  string
	// maxKeyLength is the address column width in characters; 0 is unbounded.
	maxKeyLength int
}

var dialects = map[string]dialect{
	"postgres": {
		placeholder:  func(n int) string { return fmt.Sprintf("$%d", n) },
		quote:        func(id string) string { return `"` + id + `"` },
		insertPrefix: "INSERT INTO",
		insertSuffix: " ON CONFLICT (address) DO NOTHING",
		createTable: `CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	price BIGINT NOT NULL,
	average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
	rating_count BIGINT NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	},
	"sqlite3": {
		placeholder:  func(int) string { return "?" },
		quote:        func(id string) string { return `"` + id + `"` },
		insertPrefix: "INSERT INTO",
		insertSuffix: " ON CONFLICT (address) DO NOTHING",
		createTable: `CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	price INTEGER NOT NULL,
	average_rating REAL NOT NULL DEFAULT 0,
	rating_count INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL UNIQUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`,
	},
	"mysql": {
		placeholder:  func(int) string { return "?" },
		quote:        func(id string) string { return "`" + id + "`" },
		insertPrefix: "INSERT INTO",
		insertSuffix: " ON DUPLICATE KEY UPDATE id = id",
		maxKeyLength: 768,
		createTable: "CREATE TABLE IF NOT EXISTS %s (\n" +
			"\tid BIGINT AUTO_INCREMENT PRIMARY KEY,\n" +
			"\tname TEXT NOT NULL,\n" +
			"\tprice BIGINT NOT NULL,\n" +
			"\taverage_rating DOUBLE NOT NULL DEFAULT 0,\n" +
			"\trating_count BIGINT NOT NULL DEFAULT 0,\n" +
			"\tdescription TEXT NOT NULL,\n" +
			"\taddress VARCHAR(768) NOT NULL UNIQUE,\n" +
			"\tcreated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP\n" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
	},
}

// SQLSink stores records in a table with a unique address column.
type SQLSink struct {
	db      *sql.DB
	dialect dialect
	table   string

	insertSQL string
	listSQL   string
}

// OpenSQLSink connects using cfg and optionally creates the table.
func OpenSQLSink(ctx context.Context, cfg config.SQLSinkConfig) (*SQLSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("SQL sink DSN is required")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	s, err := NewSQLSink(ctx, db, cfg.Driver, cfg.Table, cfg.CreateTable)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLSink wraps an open database handle.
func NewSQLSink(ctx context.Context, db *sql.DB, driver, table string, createTable bool) (*SQLSink, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: sql driver %q", ErrUnsupportedType, driver)
	}
	if table == "" {
		table = "records"
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// single writer
		db.SetMaxOpenConns(1)
	}

	quoted := d.quote(table)
	s := &SQLSink{db: db, dialect: d, table: table}

	placeholders := make([]string, 6)
	for i := range placeholders {
		placeholders[i] = d.placeholder(i + 1)
	}
	s.insertSQL = fmt.Sprintf("%s %s (name, price, average_rating, rating_count, description, address) VALUES (%s)%s",
		d.insertPrefix, quoted, strings.Join(placeholders, ", "), d.insertSuffix)
	s.listSQL = fmt.Sprintf("SELECT address FROM %s ORDER BY id LIMIT %s OFFSET %s",
		quoted, d.placeholder(1), d.placeholder(2))

	if createTable {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(d.createTable, quoted)); err != nil {
			return nil, fmt.Errorf("failed to create table '%s': %w", table, err)
		}
	}
	return s, nil
}

// ListKeys returns the addresses of one page of rows ordered by id.
func (s *SQLSink) ListKeys(ctx context.Context, offset, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.listSQL, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("list records: scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return keys, nil
}

// Submit inserts a record; an insert that affects no rows is a duplicate.
func (s *SQLSink) Submit(ctx context.Context, r types.CleanRecord) (types.DeliveryOutcome, error) {
	if limit := s.dialect.maxKeyLength; limit > 0 && utf8.RuneCountInString(r.Key) > limit {
		return types.OutcomeError, fmt.Errorf("insert record: address longer than %d characters", limit)
	}
	res, err := s.db.ExecContext(ctx, s.insertSQL, r.Name, r.Price, r.Rating, r.RatingCount, r.Description, r.Key)
	if err != nil {
		return types.OutcomeError, fmt.Errorf("insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.OutcomeError, fmt.Errorf("insert record: %w", err)
	}
	if n == 0 {
		return types.OutcomeDuplicate, nil
	}
	return types.OutcomeCreated, nil
}

// Close closes the database handle.
func (s *SQLSink) Close() error {
	return s.db.Close()
}
