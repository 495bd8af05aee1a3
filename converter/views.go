package converter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"toxref_brick/database"
	"toxref_brick/source"
)

// ConvertViews flattens every view of opts.Schema into a plain all-TEXT table
// holding the view's rows. Materialized views are included when
// opts.IncludeMaterializedViews is set. All views share one transaction.
func ConvertViews(ctx context.Context, src source.Source, dst *database.DB, opts Options, logger *zap.SugaredLogger) ([]Summary, error) {
	kinds := []source.Kind{source.KindView}
	if opts.IncludeMaterializedViews {
		kinds = append(kinds, source.KindMaterializedView)
	}
	rels, err := src.Relations(ctx, opts.Schema, kinds...)
	if err != nil {
		return nil, err
	}
	logger.Infof("found %d views in %s", len(rels), opts.Schema)

	tx, err := dst.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var summaries []Summary
	for _, rel := range rels {
		if !opts.wants(rel.Name) {
			logger.Debugf("view %s filtered out", rel.Name)
			continue
		}

		sum, skipped, err := convertView(ctx, src, tx, rel, opts.BatchSize, logger)
		if skipped {
			continue
		}
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, fmt.Errorf("view %s: %w", rel.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return summaries, err
	}
	return summaries, nil
}

// describeView samples one row of the view to learn its result columns.
func describeView(ctx context.Context, src source.Source, rel source.Relation) ([]string, error) {
	cur, err := src.Select(ctx, rel, 1)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	return cur.Columns(), nil
}

func convertView(ctx context.Context, src source.Source, tx *database.Tx, rel source.Relation, batchSize int, logger *zap.SugaredLogger) (sum Summary, skipped bool, err error) {
	start := time.Now()
	sum = Summary{Relation: rel.Name, Kind: rel.Kind, Status: StatusFailed}
	defer func() { sum.Duration = time.Since(start) }()

	names, err := describeView(ctx, src, rel)
	if err != nil {
		return sum, false, err
	}
	if len(names) == 0 {
		logger.Debugf("view %s has no columns, skipping", rel.Name)
		return sum, true, nil
	}

	logger.Infof("converting view %s", rel.Name)
	table := database.Table{Name: rel.Name, Columns: make([]database.Column, len(names))}
	for i, n := range names {
		table.Columns[i] = database.Column{Name: n, Type: database.Text}
	}
	if err := tx.CreateTable(ctx, table); err != nil {
		return sum, false, err
	}

	cur, err := src.Select(ctx, rel, 0)
	if err != nil {
		return sum, false, err
	}
	defer cur.Close()

	ins, err := tx.Inserter(ctx, rel.Name, cur.Columns())
	if err != nil {
		return sum, false, err
	}
	defer ins.Close()

	stats, err := CopyRows(ctx, cur, ins, batchSize, rel.Name, logger)
	sum.apply(stats)
	if err != nil {
		return sum, false, err
	}

	sum.Status = StatusOK
	logger.Infof("view %s: %d rows copied, %d skipped", rel.Name, stats.Copied, stats.Skipped)
	return sum, false, nil
}
