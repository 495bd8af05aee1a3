package database

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	batchSavepoint = "copy_batch"

	// SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
	maxBindVars = 32766
)

// Inserter writes rows into one destination table through prepared statements.
type Inserter struct {
	tx      *Tx
	stmt    *sql.Stmt         // single row
	bulk    map[int]*sql.Stmt // multi-row, keyed by tuple count
	table   string
	names   []string
	columns int
}

// Inserter prepares a positional INSERT for table with the given column list.
func (t *Tx) Inserter(ctx context.Context, table string, columns []string) (*Inserter, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("insert into %s: %w", table, ErrNoColumns)
	}
	stmt, err := t.tx.PrepareContext(ctx, InsertSQL(table, columns))
	if err != nil {
		return nil, fmt.Errorf("prepare insert into %s: %w", table, err)
	}
	return &Inserter{
		tx:      t,
		stmt:    stmt,
		bulk:    make(map[int]*sql.Stmt),
		table:   table,
		names:   columns,
		columns: len(columns),
	}, nil
}

// Close releases the prepared statements.
func (ins *Inserter) Close() error {
	for n, stmt := range ins.bulk {
		stmt.Close()
		delete(ins.bulk, n)
	}
	return ins.stmt.Close()
}

// InsertBatch writes rows in two tiers. The bulk tier sends the rows as
// multi-row INSERTs under a savepoint and keeps all of them or none. If it
// fails, the row tier inserts each row on its own and records a RowOutcome per
// row; failing rows are skipped. The returned error is non-nil only when the
// savepoint itself cannot be managed.
func (ins *Inserter) InsertBatch(ctx context.Context, rows [][]any) (BatchResult, error) {
	res := BatchResult{Rows: len(rows)}
	if len(rows) == 0 {
		res.Bulk = true
		return res, nil
	}

	bulkErr, err := ins.insertBulk(ctx, rows)
	if err != nil {
		return res, err
	}
	if bulkErr == nil {
		res.Bulk = true
		res.Inserted = len(rows)
		return res, nil
	}

	res.BulkErr = bulkErr
	res.Outcomes = make([]RowOutcome, len(rows))
	for i, row := range rows {
		res.Outcomes[i] = RowOutcome{Index: i, Err: ins.insertRow(ctx, row)}
		if res.Outcomes[i].Err == nil {
			res.Inserted++
		}
	}
	return res, nil
}

// chunkRows is the largest tuple count one statement can bind.
func (ins *Inserter) chunkRows() int {
	return max(1, maxBindVars/ins.columns)
}

// insertBulk returns the first insert error (batch rolled back) or a savepoint error.
func (ins *Inserter) insertBulk(ctx context.Context, rows [][]any) (rowErr error, err error) {
	for i, row := range rows {
		if len(row) != ins.columns {
			return fmt.Errorf("row %d: expected %d values, got %d", i, ins.columns, len(row)), nil
		}
	}

	if _, err := ins.tx.tx.ExecContext(ctx, "SAVEPOINT "+batchSavepoint); err != nil {
		return nil, fmt.Errorf("savepoint: %w", err)
	}

	chunk := ins.chunkRows()
	values := make([]any, 0, min(len(rows), chunk)*ins.columns)
	for start := 0; start < len(rows) && rowErr == nil; start += chunk {
		end := min(start+chunk, len(rows))
		values = values[:0]
		for _, row := range rows[start:end] {
			values = append(values, row...)
		}
		rowErr = ins.execBulk(ctx, end-start, values)
	}

	if rowErr != nil {
		if _, err := ins.tx.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+batchSavepoint); err != nil {
			return nil, fmt.Errorf("rollback to savepoint: %w", err)
		}
	}
	if _, err := ins.tx.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+batchSavepoint); err != nil {
		return nil, fmt.Errorf("release savepoint: %w", err)
	}
	return rowErr, nil
}

// execBulk runs one multi-row INSERT of n tuples, preparing it on first use.
func (ins *Inserter) execBulk(ctx context.Context, n int, values []any) error {
	stmt, ok := ins.bulk[n]
	if !ok {
		var err error
		stmt, err = ins.tx.tx.PrepareContext(ctx, InsertValuesSQL(ins.table, ins.names, n))
		if err != nil {
			return fmt.Errorf("prepare bulk insert into %s: %w", ins.table, err)
		}
		ins.bulk[n] = stmt
	}
	_, err := stmt.ExecContext(ctx, values...)
	return err
}

func (ins *Inserter) insertRow(ctx context.Context, row []any) error {
	if len(row) != ins.columns {
		return fmt.Errorf("expected %d values, got %d", ins.columns, len(row))
	}
	_, err := ins.stmt.ExecContext(ctx, row...)
	return err
}
