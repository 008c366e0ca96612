package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recordnorm/internal/batch"
	"recordnorm/internal/report"
	"recordnorm/internal/rules"
	"recordnorm/internal/severity"
	"recordnorm/internal/storage"
	"recordnorm/pkg/records"
)

func memRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	repo := New(db)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func count(t *testing.T, repo *Repository, table string) int {
	t.Helper()
	var n int
	require.NoError(t, repo.DB().QueryRow("SELECT COUNT(*) FROM "+storage.QuoteIdent(table)).Scan(&n))
	return n
}

func TestCopyFrom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memRepo(t)

	require.NoError(t, repo.Exec(ctx, `CREATE TABLE t (a TEXT, b INTEGER)`))

	n, err := repo.CopyFrom(ctx, "t", []string{"a", "b"}, [][]any{{"x", 1}, {"y", nil}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 2, count(t, repo, "t"))

	n, err = repo.CopyFrom(ctx, "t", []string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.CopyFrom(ctx, "t", nil, [][]any{{"x"}})
	assert.Error(t, err)

	// a short row rolls back the whole batch
	_, err = repo.CopyFrom(ctx, "t", []string{"a", "b"}, [][]any{{"z", 3}, {"w"}})
	assert.ErrorContains(t, err, "row length 1 != columns length 2")
	assert.Equal(t, 2, count(t, repo, "t"))

	_, err = repo.CopyFrom(ctx, "missing", []string{"a"}, [][]any{{"x"}})
	assert.Error(t, err)
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		table   string
		columns []string
		want    string
	}{
		{"one column", "t", []string{"a"}, `INSERT INTO "t" ("a") VALUES (?)`},
		{"three columns", "normalized_records", []string{"id", "topic", "content"},
			`INSERT INTO "normalized_records" ("id", "topic", "content") VALUES (?, ?, ?)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, insertSQL(tt.table, tt.columns))
		})
	}
}

func TestSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := memRepo(t)

	rec := records.New(records.SourceChat, records.ContentMessage, "User: hello")
	rec.ID, rec.Topic, rec.GroupID = "r1", "Conversation", "conversation-1"
	rec.RawContent = "hello"
	rec.Metadata.FileName = "chat.txt"
	rec.CreatedAt = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	res := batch.Result{Successful: []records.UnifiedRecord{rec}}
	rep := report.ErrorReport{Entries: []report.Entry{
		{File: "a.json", RecordID: "x1", RecordIndex: 0, Status: batch.StatusFailed, Severity: severity.Critical, Code: rules.CodeInvalidJSON, Message: "bad"},
		{File: "a.json", RecordID: "x2", RecordIndex: 1, Status: batch.StatusSuccess, Severity: severity.Medium, Code: rules.CodeInvalidJSON, Message: "meh", Suggestion: "fix it"},
	}}
	cfg := storage.Config{RecordsTable: "normalized_records", FailuresTable: "record_findings", BatchSize: 1}

	saved, err := storage.Save(ctx, nil, repo, cfg, res, rep)
	require.NoError(t, err)
	assert.Equal(t, storage.Saved{Records: 1, Findings: 2}, saved)
	assert.Equal(t, 1, count(t, repo, "normalized_records"))
	assert.Equal(t, 2, count(t, repo, "record_findings"))

	var topic, content, meta string
	require.NoError(t, repo.DB().QueryRow(
		`SELECT topic, content, metadata FROM normalized_records WHERE id = ?`, "r1",
	).Scan(&topic, &content, &meta))
	assert.Equal(t, "Conversation", topic)
	assert.Equal(t, "User: hello", content)
	assert.JSONEq(t, `{"file_name":"chat.txt"}`, meta)

	var sev string
	var idx int
	require.NoError(t, repo.DB().QueryRow(
		`SELECT severity, record_index FROM record_findings WHERE record_id = ?`, "x2",
	).Scan(&sev, &idx))
	assert.Equal(t, "MEDIUM", sev)
	assert.Equal(t, 1, idx)

	// tables already exist on a second run
	_, err = storage.Save(ctx, nil, repo, cfg, res, rep)
	require.NoError(t, err)
	assert.Equal(t, 4, count(t, repo, "record_findings"))
}

func TestRegistered(t *testing.T) {
	t.Parallel()

	assert.Contains(t, storage.Kinds(), "sqlite")

	_, err := storage.Open(context.Background(), storage.Config{Kind: "sqlite"})
	assert.Error(t, err)

	repo, err := storage.Open(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	assert.NoError(t, repo.Close())
}
