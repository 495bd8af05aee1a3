package converter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"toxref_brick/database"
	"toxref_brick/source"
	"toxref_brick/value"
)

// CopyStats counts rows moved by CopyRows.
type CopyStats struct {
	Read    int
	Copied  int
	Skipped int
}

// CopyRows drains cur into the destination through ins, batchSize rows at a time.
// Every value is normalized before insertion. Rows rejected by the destination
// are logged and skipped; cursor errors abort the copy.
func CopyRows(ctx context.Context, cur source.Cursor, ins *database.Inserter, batchSize int, table string, logger *zap.SugaredLogger) (CopyStats, error) {
	var stats CopyStats
	if batchSize <= 0 {
		return stats, fmt.Errorf("copy %s: batch size must be positive, got %d", table, batchSize)
	}

	for batchNo := 0; ; batchNo++ {
		batch, err := cur.Fetch(ctx, batchSize)
		if err != nil {
			return stats, fmt.Errorf("fetch batch %d of %s: %w", batchNo, table, err)
		}
		if len(batch) == 0 {
			return stats, nil
		}
		stats.Read += len(batch)

		for i, row := range batch {
			batch[i] = value.NormalizeRow(row)
		}

		res, err := ins.InsertBatch(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("insert batch %d into %s: %w", batchNo, table, err)
		}
		stats.Copied += res.Inserted

		if !res.Bulk {
			logger.Warnw("batch insert failed, inserting rows one by one",
				"table", table,
				"batch", batchNo,
				"error", res.BulkErr,
			)
			for _, o := range res.Failed() {
				stats.Skipped++
				logger.Warnw("skipping row",
					"table", table,
					"batch", batchNo,
					"index", o.Index,
					"error", o.Err,
				)
			}
		}
	}
}
