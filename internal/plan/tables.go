package plan

import (
	"fmt"

	"github.com/tordrt/foodstats/internal/schema"
)

// DefaultPreviewRows is the number of rows a table preview shows.
const DefaultPreviewRows = 20

// TablePlan selects every column of a dataset table ordered by its
// primary key. Dates are emitted with the date transforms so that every
// backend returns the same text. A limit of 0 returns all rows.
func TablePlan(table string, limit int) (*Plan, error) {
	t, ok := schema.Dataset.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	fields := make([]Field, 0, len(t.Columns))
	for _, c := range t.Columns {
		f := Field{Name: c.Name, Column: Col(t.Name, c.Name)}
		switch c.Kind {
		case schema.KindDate:
			f.Transform = TransformDate
		case schema.KindDateTime:
			f.Transform = TransformDateTime
		}
		fields = append(fields, f)
	}
	return &Plan{
		From:    t.Name,
		Fields:  fields,
		OrderBy: []Order{{Field: t.PrimaryKey}},
		Limit:   limit,
	}, nil
}

// CountPlan counts the rows of a dataset table.
func CountPlan(table string) (*Plan, error) {
	if _, ok := schema.Dataset.Table(table); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return &Plan{
		From:   table,
		Fields: []Field{{Name: "Total", Agg: AggCountRows}},
	}, nil
}
