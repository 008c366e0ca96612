package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CopyFn abstracts a backend's bulk insert. It inserts rows aligned to
// columns and returns the number of rows inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches splits rows into batches of batchSize and calls copyFn for each.
// It returns the total reported by copyFn and the first error. Cancellation is
// checked before every batch. Progress is logged at debug level per batch.
func LoadBatches(
	ctx context.Context,
	log *zap.Logger,
	columns []string,
	rows [][]any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		total   int64
		batches int
		start   = time.Now()
		last    = start
	)
	for lo := 0; lo < len(rows); lo += batchSize {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+batchSize, len(rows))

		n, err := copyFn(ctx, columns, rows[lo:hi])
		total += n
		if err != nil {
			log.Error("copy failed",
				zap.Int("batch", batches+1),
				zap.Int64("inserted", n),
				zap.Int64("total", total),
				zap.Error(err),
			)
			return total, err
		}

		batches++
		now := time.Now()
		since := now.Sub(last)
		rps := float64(0)
		if since > 0 {
			rps = float64(n) / since.Seconds()
		}
		log.Debug("batch loaded",
			zap.Int("batch", batches),
			zap.Float64("rps", rps),
			zap.Int64("inserted", n),
			zap.Int64("total", total),
			zap.Duration("elapsed", now.Sub(start).Truncate(time.Millisecond)),
		)
		last = now
	}
	return total, nil
}
