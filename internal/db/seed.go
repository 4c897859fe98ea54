package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/foodstats/internal/schema"
	"github.com/tordrt/foodstats/internal/snapshot"
)

// seedBatch is the number of rows per INSERT statement.
const seedBatch = 100

// Seed replaces the dataset tables in the store with the snapshot's
// contents. No foreign keys are declared: exports contain dangling ids.
func Seed(ctx context.Context, client Client, snap *snapshot.Snapshot) error {
	d := client.Dialect()
	names := schema.Dataset.TableNames()

	for i := len(names) - 1; i >= 0; i-- {
		if err := client.Exec(ctx, "DROP TABLE IF EXISTS "+d.Quote(names[i])); err != nil {
			return fmt.Errorf("failed to drop %s: %w", names[i], err)
		}
	}

	for _, name := range names {
		t, ok := snap.Table(name)
		if !ok {
			return fmt.Errorf("snapshot has no table %s", name)
		}
		if err := client.Exec(ctx, CreateTableSQL(d, t.Def)); err != nil {
			return fmt.Errorf("failed to create %s: %w", name, err)
		}
		for start := 0; start < len(t.Rows); start += seedBatch {
			end := min(start+seedBatch, len(t.Rows))
			query, args := insertSQL(d, t.Def, t.Rows[start:end])
			if err := client.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("failed to insert into %s: %w", name, err)
			}
		}
	}
	return nil
}

// CreateTableSQL returns the CREATE TABLE statement for a dataset table.
func CreateTableSQL(d Dialect, t *schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, col := range t.Columns {
		def := d.Quote(col.Name) + " " + d.ColumnType(col.Kind)
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, "PRIMARY KEY ("+d.Quote(t.PrimaryKey)+")")
	return "CREATE TABLE " + d.Quote(t.Name) + " (" + strings.Join(defs, ", ") + ")"
}

func insertSQL(d Dialect, t *schema.Table, rows [][]any) (string, []any) {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = d.Quote(col.Name)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO " + d.Quote(t.Name) + " (" + strings.Join(cols, ", ") + ") VALUES ")
	args := make([]any, 0, len(rows)*len(cols))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for i, v := range row {
			if i > 0 {
				b.WriteString(", ")
			}
			args = append(args, d.Bind(v))
			b.WriteString(d.Placeholder(len(args)))
		}
		b.WriteString(")")
	}
	return b.String(), args
}
