package source

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres" // github.com/lib/pq
	DriverPgx      = "pgx"      // github.com/jackc/pgx/v5/stdlib
	DriverMySQL    = "mysql"    // github.com/go-sql-driver/mysql
)

type dialect struct {
	driver string
	// postgres-family catalogs expose materialized views in pg_matviews
	matViews bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverPostgres, DriverPgx:
		return dialect{driver: driver, matViews: true}, nil
	case DriverMySQL:
		return dialect{driver: driver}, nil
	default:
		return dialect{}, fmt.Errorf("unsupported source driver: %q", driver)
	}
}

func (d dialect) placeholder(n int) string {
	if d.driver == DriverMySQL {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

func (d dialect) quote(ident string) string {
	if d.driver == DriverMySQL {
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (d dialect) tablesQuery() string {
	return fmt.Sprintf(
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = %s AND table_type = %s
		 ORDER BY table_name`,
		d.placeholder(1), d.placeholder(2),
	)
}

func (d dialect) matViewsQuery() string {
	return fmt.Sprintf(
		`SELECT matviewname FROM pg_matviews WHERE schemaname = %s ORDER BY matviewname`,
		d.placeholder(1),
	)
}

func (d dialect) columnsQuery() string {
	return fmt.Sprintf(
		`SELECT column_name, data_type, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = %s AND table_name = %s
		 ORDER BY ordinal_position`,
		d.placeholder(1), d.placeholder(2),
	)
}

func (d dialect) selectQuery(rel Relation, limit int) string {
	q := fmt.Sprintf("SELECT * FROM %s.%s", d.quote(rel.Schema), d.quote(rel.Name))
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return q
}
