// Package sqlite stores normalization results in a local SQLite file, which
// is what the CLI uses when no server database is configured.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"recordnorm/internal/storage"
)

const pingTimeout = 5 * time.Second

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

type Repository struct {
	db *sql.DB
}

// Open returns a handle capped at one connection. Writers are serialised by
// SQLite anyway, and ":memory:" is per connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// NewRepository opens and pings dsn ("results.db",
// "file:results.db?_pragma=busy_timeout(5000)", ":memory:").
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: DSN must not be empty")
	}
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return New(db), nil
}

// sqlType maps a column kind onto SQLite's storage classes.
func sqlType(k storage.ColumnKind) string {
	switch k {
	case storage.KindInt:
		return "INTEGER"
	case storage.KindTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (r *Repository) EnsureTables(ctx context.Context, recordsTable, failuresTable string) error {
	if err := r.Exec(ctx, storage.CreateTableSQL(recordsTable, storage.RecordSchema, storage.QuoteIdent, sqlType)); err != nil {
		return err
	}
	return r.Exec(ctx, storage.CreateTableSQL(failuresTable, storage.FindingSchema, storage.QuoteIdent, sqlType))
}

// insertSQL is a single-row INSERT with one ? per column.
func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = storage.QuoteIdent(c)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return "INSERT INTO " + storage.QuoteIdent(table) +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + marks + ")"
}

// CopyFrom writes rows in one transaction; any failure leaves table as it
// was. SQLite has no bulk path, so each row is one prepared exec.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, errors.New("sqlite: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var n int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertSQL(table, columns))
		if err != nil {
			return fmt.Errorf("sqlite: prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, row := range rows {
			if len(row) != len(columns) {
				return fmt.Errorf("sqlite: CopyFrom: row length %d != columns length %d", len(row), len(columns))
			}
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return fmt.Errorf("sqlite: insert into %s: %w", table, err)
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// inTx commits when fn succeeds and rolls back otherwise.
func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Exec runs one statement. Blank input is a no-op.
func (r *Repository) Exec(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Close() error { return r.db.Close() }
