package source

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
)

// SQLSource implements Source over a database/sql connection.
type SQLSource struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the source database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*SQLSource, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	// The conversion is sequential; a single connection serves catalog and data reads.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return &SQLSource{db: db, dialect: d}, nil
}

// Close closes the connection.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

func (s *SQLSource) Relations(ctx context.Context, schema string, kinds ...Kind) ([]Relation, error) {
	var rels []Relation
	for _, kind := range kinds {
		var (
			names []string
			err   error
		)
		switch kind {
		case KindMaterializedView:
			if !s.dialect.matViews {
				continue
			}
			names, err = s.names(ctx, s.dialect.matViewsQuery(), schema)
		default:
			names, err = s.names(ctx, s.dialect.tablesQuery(), schema, string(kind))
		}
		if err != nil {
			return nil, fmt.Errorf("list %s relations in %s: %w", strings.ToLower(string(kind)), schema, err)
		}
		for _, n := range names {
			rels = append(rels, Relation{Schema: schema, Name: n, Kind: kind})
		}
	}
	sort.SliceStable(rels, func(i, j int) bool { return rels[i].Name < rels[j].Name })
	return rels, nil
}

// names reads a single-column result set to exhaustion.
func (s *SQLSource) names(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLSource) Columns(ctx context.Context, schema, table string) ([]Column, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.columnsQuery(), schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var nullable string
		if err := rows.Scan(&c.Name, &c.Type, &nullable); err != nil {
			return nil, fmt.Errorf("scan column of %s.%s: %w", schema, table, err)
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns of %s.%s: %w", schema, table, err)
	}
	return cols, nil
}

func (s *SQLSource) Select(ctx context.Context, rel Relation, limit int) (Cursor, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.selectQuery(rel, limit))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", rel, err)
	}
	return newRowsCursor(rows)
}

// rowsCursor adapts *sql.Rows to Cursor, lifting driver values into the kinds
// understood by value.Normalize.
type rowsCursor struct {
	rows    *sql.Rows
	columns []string
	types   []string
	done    bool
}

func newRowsCursor(rows *sql.Rows) (*rowsCursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("column types: %w", err)
	}
	types := make([]string, len(colTypes))
	for i, ct := range colTypes {
		types[i] = strings.ToUpper(ct.DatabaseTypeName())
	}
	return &rowsCursor{rows: rows, columns: cols, types: types}, nil
}

func (c *rowsCursor) Columns() []string {
	return c.columns
}

func (c *rowsCursor) Fetch(ctx context.Context, n int) ([][]any, error) {
	if c.done {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var batch [][]any
	for len(batch) < n {
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				return nil, fmt.Errorf("iterate: %w", err)
			}
			break
		}
		values := make([]any, len(c.columns))
		ptrs := make([]any, len(c.columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := c.rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			values[i] = lift(v, c.types[i])
		}
		batch = append(batch, values)
	}
	return batch, nil
}

func (c *rowsCursor) Close() error {
	return c.rows.Close()
}
