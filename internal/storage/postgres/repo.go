// Package postgres implements storage.Repository on pgx v5, loading rows
// with COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"recordnorm/internal/storage"
)

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return NewRepository(ctx, cfg.DSN)
	})
}

// Repository is a Postgres-backed storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a connection pool for dsn. Connections are made
// lazily, so an unreachable server surfaces on first use.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func sqlType(k storage.ColumnKind) string {
	switch k {
	case storage.KindInt:
		return "INTEGER"
	case storage.KindTime:
		return "TIMESTAMPTZ"
	}
	return "TEXT"
}

// DDL returns the CREATE TABLE statements for both result tables.
func DDL(recordsTable, failuresTable string) []string {
	return []string{
		storage.CreateTableSQL(recordsTable, storage.RecordSchema, storage.QuoteIdent, sqlType),
		storage.CreateTableSQL(failuresTable, storage.FindingSchema, storage.QuoteIdent, sqlType),
	}
}

func (r *Repository) EnsureTables(ctx context.Context, recordsTable, failuresTable string) error {
	for _, stmt := range DDL(recordsTable, failuresTable) {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: create table: %w", err)
		}
	}
	return nil
}

// CopyFrom streams rows into table with COPY on a pooled connection.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	n, err := conn.CopyFrom(ctx, Identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return n, fmt.Errorf("postgres: copy into %s: %s (%s)", table, pgErr.Detail, pgErr.SQLState())
		}
		return n, fmt.Errorf("postgres: copy into %s: %w", table, err)
	}
	return n, nil
}

// Identifier splits a possibly schema-qualified name like "public.results".
func Identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.Split(table, "."))
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}
