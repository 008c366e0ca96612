package storage

import (
	"encoding/json"
	"fmt"

	"recordnorm/internal/report"
	"recordnorm/pkg/records"
)

// RecordColumns is the column order of the records table.
var RecordColumns = []string{
	"id", "group_id", "topic", "source_type", "content_type",
	"content", "raw_content", "file_name", "metadata", "created_at",
}

// FindingColumns is the column order of the findings table.
var FindingColumns = []string{
	"file_name", "record_id", "record_index", "status",
	"severity", "code", "message", "suggestion",
}

// RecordRows builds insert rows for recs. Metadata is stored as JSON text.
func RecordRows(recs []records.UnifiedRecord) ([][]any, error) {
	out := make([][]any, 0, len(recs))
	for _, r := range recs {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("storage: encode metadata of %s: %w", r.ID, err)
		}
		out = append(out, []any{
			r.ID,
			r.GroupID,
			r.Topic,
			string(r.SourceType),
			string(r.ContentType),
			r.StructuredContent,
			nullable(r.RawContent),
			r.Metadata.FileName,
			string(meta),
			r.CreatedAt.UTC(),
		})
	}
	return out, nil
}

// FindingRows builds insert rows for report entries.
func FindingRows(entries []report.Entry) [][]any {
	out := make([][]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, []any{
			e.File,
			e.RecordID,
			int64(e.RecordIndex),
			string(e.Status),
			e.Severity.String(),
			string(e.Code),
			e.Message,
			nullable(e.Suggestion),
		})
	}
	return out
}

// nullable maps "" to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
