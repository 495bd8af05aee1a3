package database

// ColumnType is the SQLite type written into generated DDL.
type ColumnType string

const (
	Integer ColumnType = "INTEGER"
	Real    ColumnType = "REAL"
	Text    ColumnType = "TEXT"
)

// Column describes one destination column.
type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
}

// Table describes a destination table.
type Table struct {
	Name    string
	Columns []Column // source order is kept
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// RowOutcome is the result of inserting one row of a batch on the row-by-row path.
type RowOutcome struct {
	Index int // position within the batch
	Err   error
}

// BatchResult reports how a batch was written.
type BatchResult struct {
	Rows     int
	Inserted int
	Bulk     bool         // true when the whole batch went in on the bulk path
	BulkErr  error        // why the bulk path was abandoned
	Outcomes []RowOutcome // one per row when the row path ran
}

// Failed returns the outcomes of rows that could not be inserted.
func (r BatchResult) Failed() []RowOutcome {
	var failed []RowOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
