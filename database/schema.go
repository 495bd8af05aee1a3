package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateTable = errors.New("destination table already exists")
	ErrNoColumns      = errors.New("table has no columns")
)

// MapType maps a source column type to a SQLite type by case-insensitive substring match.
func MapType(sourceType string) ColumnType {
	t := strings.ToLower(sourceType)

	switch {
	case strings.Contains(t, "int"):
		return Integer
	case strings.Contains(t, "numeric"),
		strings.Contains(t, "decimal"),
		strings.Contains(t, "real"),
		strings.Contains(t, "double"):
		return Real
	case strings.Contains(t, "bool"):
		return Integer
	default:
		return Text
	}
}

// QuoteIdent double-quotes a SQLite identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTableSQL builds the CREATE TABLE statement for t.
func CreateTableSQL(t Table) string {
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		def := QuoteIdent(c.Name) + " " + string(c.Type)
		if c.NotNull {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(t.Name), strings.Join(defs, ", "))
}

// InsertSQL builds a positional INSERT for the given columns.
func InsertSQL(table string, columns []string) string {
	return InsertValuesSQL(table, columns, 1)
}

// InsertValuesSQL builds a positional INSERT carrying rows value tuples.
func InsertValuesSQL(table string, columns []string, rows int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	tuples := make([]string, rows)
	for i := range tuples {
		tuples[i] = tuple
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		QuoteIdent(table),
		strings.Join(quoted, ","),
		strings.Join(tuples, ","),
	)
}

// TableExists reports whether a table or view named name is already defined.
func (t *Tx) TableExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup table %s: %w", name, err)
	}
	return n > 0, nil
}

// CreateTable creates table inside the transaction. It must be the first
// statement issued for that table name.
func (t *Tx) CreateTable(ctx context.Context, table Table) error {
	if len(table.Columns) == 0 {
		return fmt.Errorf("create %s: %w", table.Name, ErrNoColumns)
	}
	exists, err := t.TableExists(ctx, table.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create %s: %w", table.Name, ErrDuplicateTable)
	}
	if _, err := t.tx.ExecContext(ctx, CreateTableSQL(table)); err != nil {
		return fmt.Errorf("create %s: %w", table.Name, err)
	}
	return nil
}
