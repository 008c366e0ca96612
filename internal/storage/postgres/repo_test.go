package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordnorm/internal/storage"
)

func TestDDL(t *testing.T) {
	t.Parallel()

	stmts := DDL("public.normalized_records", "record_findings")
	require.Len(t, stmts, 2)

	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "public"."normalized_records" (`)
	assert.Contains(t, stmts[0], `"id" TEXT NOT NULL`)
	assert.Contains(t, stmts[0], `"created_at" TIMESTAMPTZ`)
	assert.Contains(t, stmts[1], `"record_index" INTEGER`)
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pgx.Identifier{"results"}, Identifier("results"))
	assert.Equal(t, pgx.Identifier{"app", "results"}, Identifier("app.results"))
}

func TestNewRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewRepository(ctx, "  ")
	assert.Error(t, err)

	_, err = NewRepository(ctx, "postgres://user@localhost:5432/db?pool_max_conns=zero")
	assert.Error(t, err)

	// the pool connects lazily
	repo, err := NewRepository(ctx, "postgres://user@127.0.0.1:1/db")
	require.NoError(t, err)
	assert.NoError(t, repo.Close())

	assert.Contains(t, storage.Kinds(), "postgres")
}
