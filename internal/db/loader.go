package db

import (
	"context"
	"fmt"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/schema"
	"github.com/tordrt/foodstats/internal/snapshot"
)

// LoadSnapshot copies the dataset tables out of the store.
func LoadSnapshot(ctx context.Context, b *Backend, source string) (*snapshot.Snapshot, error) {
	tables := make([]*snapshot.Table, 0, len(schema.Dataset.Tables))
	for _, name := range schema.Dataset.TableNames() {
		p, err := plan.TablePlan(name, 0)
		if err != nil {
			return nil, err
		}
		res, err := b.Execute(ctx, p, plan.Env{})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		t, err := snapshot.NewTable(name)
		if err != nil {
			return nil, err
		}
		for i, row := range res.Rows {
			if err := t.Append(row...); err != nil {
				return nil, fmt.Errorf("failed to load %s row %d: %w", name, i+1, err)
			}
		}
		tables = append(tables, t)
	}
	return snapshot.New(source, tables...)
}
