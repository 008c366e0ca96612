// Package mysql implements storage.Repository for MySQL with batched
// multi-row INSERT statements.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"recordnorm/internal/storage"
)

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository parses dsn, forces parseTime so created_at round-trips as
// time.Time, and pings the server.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

// ParseDSN parses a go-sql-driver DSN such as "user:pw@tcp(host:3306)/db".
func ParseDSN(dsn string) (*mysql.Config, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

func sqlType(k storage.ColumnKind) string {
	switch k {
	case storage.KindInt:
		return "BIGINT"
	case storage.KindTime:
		return "DATETIME(6)"
	}
	return "LONGTEXT"
}

// DDL returns the CREATE TABLE statements for both result tables.
func DDL(recordsTable, failuresTable string) []string {
	return []string{
		storage.CreateTableSQL(recordsTable, storage.RecordSchema, quoteIdent, sqlType),
		storage.CreateTableSQL(failuresTable, storage.FindingSchema, quoteIdent, sqlType),
	}
}

func (r *Repository) EnsureTables(ctx context.Context, recordsTable, failuresTable string) error {
	for _, stmt := range DDL(recordsTable, failuresTable) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql: create table: %w", err)
		}
	}
	return nil
}

// CopyFrom writes rows with one multi-row INSERT inside a transaction.
// LoadBatches bounds the statement size.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	query, args, err := insertSQL(table, columns, rows)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		_ = tx.Rollback()
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			return 0, fmt.Errorf("mysql: insert into %s: %s (%d)", table, myErr.Message, myErr.Number)
		}
		return 0, fmt.Errorf("mysql: insert into %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mysql: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return n, nil
}

// insertSQL builds "INSERT INTO t (a, b) VALUES (?, ?), (?, ?)" and the
// flattened arguments.
func insertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", quoteIdent(table), strings.Join(quoted, ", "))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("mysql: CopyFrom: row length %d != columns length %d", len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
		args = append(args, row...)
	}
	return b.String(), args, nil
}

func (r *Repository) Close() error { return r.db.Close() }

// quoteIdent backtick-quotes each dot-separated part of name.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}
