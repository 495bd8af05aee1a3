// Package source reads catalog metadata and rows from the relational database
// being converted.
package source

import (
	"context"
)

// Kind is the catalog kind of a relation.
type Kind string

const (
	KindBaseTable        Kind = "BASE TABLE"
	KindView             Kind = "VIEW"
	KindMaterializedView Kind = "MATERIALIZED VIEW"
)

// Relation is a table or view inside a source schema.
type Relation struct {
	Schema string
	Name   string
	Kind   Kind
}

func (r Relation) String() string {
	return r.Schema + "." + r.Name
}

// Column is a catalog column, in ordinal order.
type Column struct {
	Name     string
	Type     string // declared data type as reported by the catalog
	Nullable bool
}

// Cursor is a forward-only result set consumed in batches.
type Cursor interface {
	// Columns returns the result description, in select order.
	Columns() []string
	// Fetch returns up to n rows. An empty batch means the cursor is exhausted.
	Fetch(ctx context.Context, n int) ([][]any, error)
	Close() error
}

// Source is the read side of a conversion.
type Source interface {
	// Relations lists the relations of the given kinds in schema, sorted by name.
	Relations(ctx context.Context, schema string, kinds ...Kind) ([]Relation, error)
	// Columns returns the catalog columns of schema.table by ordinal position.
	Columns(ctx context.Context, schema, table string) ([]Column, error)
	// Select opens a cursor over every column of rel. limit <= 0 reads all rows.
	Select(ctx context.Context, rel Relation, limit int) (Cursor, error)
	Close() error
}
