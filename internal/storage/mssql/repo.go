// Package mssql writes normalization results to SQL Server through the
// driver's bulk copy protocol.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"recordnorm/internal/storage"
)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

type Repository struct {
	db *sql.DB
}

// NewRepository rejects a malformed dsn before dialing, then pings the
// server.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql: parse dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}
	return &Repository{db: db}, nil
}

func sqlType(k storage.ColumnKind) string {
	switch k {
	case storage.KindInt:
		return "BIGINT"
	case storage.KindTime:
		return "DATETIMEOFFSET"
	default:
		return "NVARCHAR(MAX)"
	}
}

// DDL is the bootstrap script for both result tables. Each CREATE sits
// behind an OBJECT_ID check so a rerun is a no-op.
func DDL(recordsTable, failuresTable string) []string {
	return []string{
		createTableSQL(recordsTable, storage.RecordSchema),
		createTableSQL(failuresTable, storage.FindingSchema),
	}
}

func createTableSQL(table string, cols []storage.Column) string {
	name := msFQN(table)
	var b strings.Builder
	fmt.Fprintf(&b, "IF OBJECT_ID(N'%s', N'U') IS NULL\n", strings.ReplaceAll(name, "'", "''"))
	b.WriteString("BEGIN\n")
	fmt.Fprintf(&b, "  CREATE TABLE %s (\n    ", name)
	b.WriteString(storage.ColumnDefs(cols, msFQN, sqlType, ",\n    "))
	b.WriteString("\n  );\nEND;")
	return b.String()
}

func (r *Repository) EnsureTables(ctx context.Context, recordsTable, failuresTable string) error {
	for _, stmt := range DDL(recordsTable, failuresTable) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mssql: create table: %w", err)
		}
	}
	return nil
}

// CopyFrom streams rows through one bulk copy inside a transaction and
// reports the row count the server acknowledged.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (n int64, err error) {
	if len(columns) == 0 {
		return 0, errors.New("mssql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if n, err = bulkCopy(ctx, tx, table, columns, rows); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return n, nil
}

// bulkCopy feeds every row to a CopyIn statement; the final argument-less
// exec flushes the batch to the server.
func bulkCopy(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("mssql: prepare bulk copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("mssql: CopyFrom: row %d has %d values for %d columns", i, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("mssql: flush bulk copy: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) Close() error { return r.db.Close() }

func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN brackets each dotted part, so "dbo.records" becomes
// "[dbo].[records]".
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}
