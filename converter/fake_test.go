package converter

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"toxref_brick/source"
)

type fakeRelation struct {
	rel     source.Relation
	catalog []source.Column
	columns []string // result description; defaults to catalog names
	rows    [][]any
}

// fakeSource serves relations from memory.
type fakeSource struct {
	relations []fakeRelation
	fetchErr  error
	closed    bool
	selects   []string
}

func (f *fakeSource) find(name string) (fakeRelation, bool) {
	for _, r := range f.relations {
		if r.rel.Name == name {
			return r, true
		}
	}
	return fakeRelation{}, false
}

func (f *fakeSource) Relations(_ context.Context, schema string, kinds ...source.Kind) ([]source.Relation, error) {
	var rels []source.Relation
	for _, r := range f.relations {
		if slices.Contains(kinds, r.rel.Kind) {
			rel := r.rel
			rel.Schema = schema
			rels = append(rels, rel)
		}
	}
	slices.SortStableFunc(rels, func(a, b source.Relation) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return rels, nil
}

func (f *fakeSource) Columns(_ context.Context, _, table string) ([]source.Column, error) {
	r, ok := f.find(table)
	if !ok {
		return nil, fmt.Errorf("no relation %s", table)
	}
	return r.catalog, nil
}

func (f *fakeSource) Select(_ context.Context, rel source.Relation, limit int) (source.Cursor, error) {
	r, ok := f.find(rel.Name)
	if !ok {
		return nil, fmt.Errorf("no relation %s", rel.Name)
	}
	f.selects = append(f.selects, fmt.Sprintf("%s/%d", rel.Name, limit))

	cols := r.columns
	if cols == nil {
		for _, c := range r.catalog {
			cols = append(cols, c.Name)
		}
	}
	rows := r.rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return &fakeCursor{columns: cols, rows: rows, err: f.fetchErr}, nil
}

func (f *fakeSource) Close() error {
	if f.closed {
		return errors.New("already closed")
	}
	f.closed = true
	return nil
}

type fakeCursor struct {
	columns []string
	rows    [][]any
	pos     int
	err     error
}

func (c *fakeCursor) Columns() []string { return c.columns }

func (c *fakeCursor) Fetch(ctx context.Context, n int) ([][]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	var batch [][]any
	for len(batch) < n && c.pos < len(c.rows) {
		batch = append(batch, slices.Clone(c.rows[c.pos]))
		c.pos++
	}
	return batch, nil
}

func (c *fakeCursor) Close() error { return nil }
