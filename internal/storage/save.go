package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"recordnorm/internal/batch"
	"recordnorm/internal/report"
)

// Saved counts the rows written by Save.
type Saved struct {
	Records  int64 `json:"records"`
	Findings int64 `json:"findings"`
}

// Save writes the successful records of res and every entry of rep.
func Save(ctx context.Context, log *zap.Logger, repo Repository, cfg Config, res batch.Result, rep report.ErrorReport) (Saved, error) {
	var saved Saved
	if log == nil {
		log = zap.NewNop()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	if err := repo.EnsureTables(ctx, cfg.RecordsTable, cfg.FailuresTable); err != nil {
		return saved, fmt.Errorf("storage: ensure tables: %w", err)
	}

	recRows, err := RecordRows(res.Successful)
	if err != nil {
		return saved, err
	}
	saved.Records, err = LoadBatches(ctx, log.With(zap.String("table", cfg.RecordsTable)), RecordColumns, recRows, batchSize,
		func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			return repo.CopyFrom(ctx, cfg.RecordsTable, cols, rows)
		})
	if err != nil {
		return saved, fmt.Errorf("storage: load records: %w", err)
	}

	saved.Findings, err = LoadBatches(ctx, log.With(zap.String("table", cfg.FailuresTable)), FindingColumns, FindingRows(rep.Entries), batchSize,
		func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			return repo.CopyFrom(ctx, cfg.FailuresTable, cols, rows)
		})
	if err != nil {
		return saved, fmt.Errorf("storage: load findings: %w", err)
	}

	log.Info("results stored",
		zap.Int64("records", saved.Records),
		zap.Int64("findings", saved.Findings),
	)
	return saved, nil
}
