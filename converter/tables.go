package converter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"toxref_brick/database"
	"toxref_brick/source"
)

var ErrColumnMismatch = errors.New("catalog columns do not match query columns")

// Options controls which relations are converted and how.
type Options struct {
	Schema                   string
	BatchSize                int
	IncludeMaterializedViews bool
	Tables                   []string // when set, only these relations are converted
	Exclude                  []string
}

func (o Options) wants(name string) bool {
	if len(o.Tables) > 0 && !slices.Contains(o.Tables, name) {
		return false
	}
	return !slices.Contains(o.Exclude, name)
}

// TranslateTable builds the destination table for a source relation from its
// catalog columns.
func TranslateTable(name string, cols []source.Column) database.Table {
	t := database.Table{Name: name, Columns: make([]database.Column, len(cols))}
	for i, c := range cols {
		t.Columns[i] = database.Column{
			Name:    c.Name,
			Type:    database.MapType(c.Type),
			NotNull: !c.Nullable,
		}
	}
	return t
}

// ConvertTables copies every base table of opts.Schema into dst, in name order.
// Each table is created and filled in its own transaction. The summaries of the
// tables processed so far are returned with any error.
func ConvertTables(ctx context.Context, src source.Source, dst *database.DB, opts Options, logger *zap.SugaredLogger) ([]Summary, error) {
	rels, err := src.Relations(ctx, opts.Schema, source.KindBaseTable)
	if err != nil {
		return nil, err
	}
	logger.Infof("found %d base tables in %s", len(rels), opts.Schema)

	var summaries []Summary
	for _, rel := range rels {
		if !opts.wants(rel.Name) {
			logger.Debugf("table %s filtered out", rel.Name)
			continue
		}

		sum, err := convertTable(ctx, src, dst, rel, opts.BatchSize, logger)
		summaries = append(summaries, sum)
		if err != nil {
			return summaries, fmt.Errorf("table %s: %w", rel.Name, err)
		}
	}
	return summaries, nil
}

func convertTable(ctx context.Context, src source.Source, dst *database.DB, rel source.Relation, batchSize int, logger *zap.SugaredLogger) (sum Summary, err error) {
	start := time.Now()
	sum = Summary{Relation: rel.Name, Kind: rel.Kind, Status: StatusFailed}
	defer func() { sum.Duration = time.Since(start) }()

	logger.Infof("converting table %s", rel.Name)

	cols, err := src.Columns(ctx, rel.Schema, rel.Name)
	if err != nil {
		return sum, err
	}
	table := TranslateTable(rel.Name, cols)

	tx, err := dst.Begin(ctx)
	if err != nil {
		return sum, err
	}
	defer tx.Rollback()

	if err := tx.CreateTable(ctx, table); err != nil {
		return sum, err
	}

	cur, err := src.Select(ctx, rel, 0)
	if err != nil {
		return sum, err
	}
	defer cur.Close()

	if got := cur.Columns(); !slices.Equal(table.ColumnNames(), got) {
		return sum, fmt.Errorf("%w: catalog %v, query %v", ErrColumnMismatch, table.ColumnNames(), got)
	}

	ins, err := tx.Inserter(ctx, rel.Name, cur.Columns())
	if err != nil {
		return sum, err
	}
	defer ins.Close()

	stats, err := CopyRows(ctx, cur, ins, batchSize, rel.Name, logger)
	sum.apply(stats)
	if err != nil {
		return sum, err
	}

	if err := tx.Commit(); err != nil {
		return sum, err
	}

	sum.Status = StatusOK
	logger.Infof("table %s: %d rows copied, %d skipped", rel.Name, stats.Copied, stats.Skipped)
	return sum, nil
}
