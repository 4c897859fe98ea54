package db

import (
	"context"
	"fmt"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/schema"
)

// Inspect checks the store against the dataset schema. Every dataset table
// and required column must exist; the optional columns the store lacks are
// returned so that queries can read them as NULL.
func Inspect(ctx context.Context, client Client) (map[plan.Column]bool, error) {
	missing := make(map[plan.Column]bool)
	for _, table := range schema.Dataset.Tables {
		have, err := extractColumns(ctx, client, table.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to extract columns of %s: %w", table.Name, err)
		}
		if len(have) == 0 {
			return nil, fmt.Errorf("table %s not found", table.Name)
		}

		for _, col := range table.Columns {
			if have[col.Name] {
				continue
			}
			if !col.Optional {
				return nil, fmt.Errorf("table %s has no column %s", table.Name, col.Name)
			}
			missing[plan.Col(table.Name, col.Name)] = true
		}
	}
	return missing, nil
}

// extractColumns returns the column names the store has for a table
func extractColumns(ctx context.Context, client Client, tableName string) (map[string]bool, error) {
	rows, err := client.Query(ctx, client.Dialect().ColumnsQuery(), tableName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		columns[name] = true
	}

	return columns, rows.Err()
}
