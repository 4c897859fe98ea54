package db

import (
	"strconv"
	"strings"
	"time"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/schema"
)

// Dialect renders the parts of a statement that differ between SQL stores.
type Dialect interface {
	// Name is the store name used in logs: postgres, mysql or sqlite.
	Name() string
	Quote(ident string) string
	// Placeholder returns the bind marker for the n-th argument, from 1.
	Placeholder(n int) string
	// DateText and DateTimeText render a date or datetime expression as
	// YYYY-MM-DD and YYYY-MM-DD HH:MM:SS text.
	DateText(expr string) string
	DateTimeText(expr string) string
	// Float casts a numeric expression to double precision.
	Float(expr string) string
	// ByteOrder makes a text expression sort in byte order.
	ByteOrder(expr string) string
	// Bind converts a Go value to the form the driver stores and compares
	// against this dialect's columns.
	Bind(v any) any
	// ColumnType returns the column type used when creating dataset tables.
	ColumnType(kind schema.Kind) string
	// ColumnsQuery lists the column names of the table bound to its single
	// argument, in declaration order.
	ColumnsQuery() string
}

var (
	Postgres Dialect = postgresDialect{}
	MySQL    Dialect = mysqlDialect{}
	SQLite   Dialect = sqliteDialect{}
)

func quoteWith(ident, q string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

type postgresDialect struct{}

func (postgresDialect) Name() string                 { return "postgres" }
func (postgresDialect) Quote(ident string) string    { return quoteWith(ident, `"`) }
func (postgresDialect) Placeholder(n int) string     { return "$" + strconv.Itoa(n) }
func (postgresDialect) Float(expr string) string     { return "CAST(" + expr + " AS DOUBLE PRECISION)" }
func (postgresDialect) ByteOrder(expr string) string { return expr + ` COLLATE "C"` }
func (postgresDialect) Bind(v any) any               { return v }

func (postgresDialect) DateText(expr string) string {
	return "to_char(" + expr + ", 'YYYY-MM-DD')"
}

func (postgresDialect) DateTimeText(expr string) string {
	return "to_char(" + expr + ", 'YYYY-MM-DD HH24:MI:SS')"
}

func (postgresDialect) ColumnType(kind schema.Kind) string {
	switch kind {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindDate:
		return "DATE"
	case schema.KindDateTime:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (postgresDialect) ColumnsQuery() string {
	return `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                 { return "mysql" }
func (mysqlDialect) Quote(ident string) string    { return quoteWith(ident, "`") }
func (mysqlDialect) Placeholder(int) string       { return "?" }
func (mysqlDialect) Float(expr string) string     { return "CAST(" + expr + " AS DOUBLE)" }
func (mysqlDialect) ByteOrder(expr string) string { return "CAST(" + expr + " AS BINARY)" }
func (mysqlDialect) Bind(v any) any               { return bindText(v) }

// The format strings contain '%' and are concatenated rather than passed
// through fmt.
func (mysqlDialect) DateText(expr string) string {
	return "DATE_FORMAT(" + expr + ", '%Y-%m-%d')"
}

func (mysqlDialect) DateTimeText(expr string) string {
	return "DATE_FORMAT(" + expr + ", '%Y-%m-%d %H:%i:%s')"
}

func (mysqlDialect) ColumnType(kind schema.Kind) string {
	switch kind {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindDate:
		return "DATE"
	case schema.KindDateTime:
		return "DATETIME"
	default:
		return "VARCHAR(255)"
	}
}

func (mysqlDialect) ColumnsQuery() string {
	return `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position
	`
}

// sqliteDialect stores dates as ISO text, which sorts and compares
// correctly as plain strings.
type sqliteDialect struct{}

func (sqliteDialect) Name() string                 { return "sqlite" }
func (sqliteDialect) Quote(ident string) string    { return quoteWith(ident, `"`) }
func (sqliteDialect) Placeholder(int) string       { return "?" }
func (sqliteDialect) Float(expr string) string     { return "CAST(" + expr + " AS REAL)" }
func (sqliteDialect) ByteOrder(expr string) string { return expr }
func (sqliteDialect) Bind(v any) any               { return bindText(v) }

func (sqliteDialect) DateText(expr string) string {
	return "strftime('%Y-%m-%d', " + expr + ")"
}

func (sqliteDialect) DateTimeText(expr string) string {
	return "strftime('%Y-%m-%d %H:%M:%S', " + expr + ")"
}

func (sqliteDialect) ColumnType(kind schema.Kind) string {
	switch kind {
	case schema.KindInt:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) ColumnsQuery() string {
	return `SELECT name FROM pragma_table_info(?) ORDER BY cid`
}

func bindText(v any) any {
	if t, ok := v.(time.Time); ok {
		return timeText(t)
	}
	return v
}

// timeText renders a time as ISO text; a time at midnight is a date.
func timeText(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(plan.DateLayout)
	}
	return t.Format(plan.DateTimeLayout)
}
