// Package plan defines backend-neutral query descriptors.
//
// A Plan says what to compute (source table, inner joins, filters, an
// optional anti-join, grouping, output fields, ordering and a limit) and
// nothing about how. The SQL backend compiles a Plan into dialect-specific
// SQL; the memory backend interprets it over a snapshot. Every fixed query
// of the dashboard is declared exactly once in this package.
package plan

import (
	"fmt"
	"time"

	"github.com/tordrt/foodstats/internal/schema"
)

// Column references a dataset column.
type Column struct {
	Table string
	Name  string
}

// Col is shorthand for Column{Table: table, Name: name}.
func Col(table, name string) Column {
	return Column{Table: table, Name: name}
}

func (c Column) String() string {
	return c.Table + "." + c.Name
}

// IsZero reports whether the reference is unset.
func (c Column) IsZero() bool {
	return c.Table == "" && c.Name == ""
}

// Def resolves the reference against the dataset schema.
func (c Column) Def() (schema.Column, error) {
	t, ok := schema.Dataset.Table(c.Table)
	if !ok {
		return schema.Column{}, fmt.Errorf("%w: %s", ErrUnknownTable, c.Table)
	}
	col, ok := t.Column(c.Name)
	if !ok {
		return schema.Column{}, fmt.Errorf("unknown column %s", c)
	}
	return col, nil
}

// Transform reshapes a column value before it is grouped or emitted.
type Transform int

const (
	TransformNone Transform = iota
	// TransformDate renders a date or datetime as YYYY-MM-DD text.
	TransformDate
	// TransformDateTime renders a datetime as YYYY-MM-DD HH:MM:SS text.
	TransformDateTime
)

// Layouts produced by the date transforms.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Agg is an aggregate function.
type Agg int

const (
	AggNone Agg = iota
	AggCountRows
	AggCount
	AggCountDistinct
	AggSum
	AggAvg
	// AggPercent is COUNT(column) * 100 / row count of Field.PercentOf.
	AggPercent
)

// Join is an inner equi-join of Table on Left = Right. Right must belong
// to Table and Left to a table already in scope.
type Join struct {
	Table string
	Left  Column
	Right Column
}

// Op is a filter comparison.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIsNull
	OpNotNull
)

// Param is a value supplied by the environment at execution time.
type Param int

const (
	ParamNone Param = iota
	ParamToday
)

// Filter restricts rows before grouping. Comparisons against NULL never
// match.
type Filter struct {
	Column Column
	Op     Op
	Value  any
	Param  Param
}

// Arg returns the comparison operand for env.
func (f Filter) Arg(env Env) any {
	if f.Param == ParamToday {
		return env.Today
	}
	return f.Value
}

// AntiJoin keeps only rows of the plan's source that have no match through
// the join path. Joins[0].Left refers to the source table; the path behaves
// like a correlated NOT EXISTS subquery.
type AntiJoin struct {
	Joins []Join
}

// Field is one output column.
type Field struct {
	Name      string
	Column    Column
	Agg       Agg
	Transform Transform
	PercentOf string
	// Hidden fields take part in grouping and ordering but are not emitted.
	Hidden bool
}

// Kind returns the kind of the values the field produces.
func (f Field) Kind() schema.Kind {
	switch f.Agg {
	case AggCountRows, AggCount, AggCountDistinct:
		return schema.KindInt
	case AggAvg, AggPercent:
		return schema.KindFloat
	}
	if f.Transform != TransformNone {
		return schema.KindText
	}
	col, err := f.Column.Def()
	if err != nil {
		return schema.KindText
	}
	return col.Kind
}

// Order sorts by an output field. NULLs sort last in both directions.
type Order struct {
	Field string
	Desc  bool
}

// Plan is a complete query.
type Plan struct {
	From    string
	Joins   []Join
	Filters []Filter
	Exclude *AntiJoin
	GroupBy []string
	Fields  []Field
	OrderBy []Order
	Limit   int // 0 = no limit
}

// Env carries the per-execution inputs of a plan.
type Env struct {
	// Today is the processing date at UTC midnight.
	Today time.Time
}

// NewEnv builds an environment whose processing date is the calendar
// date of now.
func NewEnv(now time.Time) Env {
	return Env{Today: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)}
}

// Aggregated reports whether the plan groups rows.
func (p *Plan) Aggregated() bool {
	if len(p.GroupBy) > 0 {
		return true
	}
	for _, f := range p.Fields {
		if f.Agg != AggNone {
			return true
		}
	}
	return false
}

// Field looks up an output field by name.
func (p *Plan) Field(name string) (Field, int, bool) {
	for i, f := range p.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// OutputColumns returns the names of the emitted fields.
func (p *Plan) OutputColumns() []string {
	cols := make([]string, 0, len(p.Fields))
	for _, f := range p.Fields {
		if !f.Hidden {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// WithLimit returns a copy of the plan with a different limit.
func (p *Plan) WithLimit(n int) *Plan {
	cp := *p
	cp.Limit = n
	return &cp
}

// Validate checks the plan is well formed against the dataset schema.
func (p *Plan) Validate() error {
	if _, ok := schema.Dataset.Table(p.From); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, p.From)
	}
	scope := map[string]bool{p.From: true}

	for _, j := range p.Joins {
		if err := validateJoin(j, scope); err != nil {
			return err
		}
		scope[j.Table] = true
	}

	for _, f := range p.Filters {
		if err := checkColumn(f.Column, scope); err != nil {
			return fmt.Errorf("filter: %w", err)
		}
	}

	if p.Exclude != nil {
		if len(p.Exclude.Joins) == 0 {
			return fmt.Errorf("anti-join has no path")
		}
		inner := map[string]bool{}
		for i, j := range p.Exclude.Joins {
			if i == 0 {
				if err := checkColumn(j.Left, scope); err != nil {
					return fmt.Errorf("anti-join: %w", err)
				}
				if _, err := j.Right.Def(); err != nil {
					return fmt.Errorf("anti-join: %w", err)
				}
				if j.Right.Table != j.Table {
					return fmt.Errorf("anti-join: %s does not belong to %s", j.Right, j.Table)
				}
			} else if err := validateJoin(j, inner); err != nil {
				return fmt.Errorf("anti-join: %w", err)
			}
			inner[j.Table] = true
		}
	}

	if len(p.Fields) == 0 {
		return fmt.Errorf("plan has no fields")
	}
	names := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		if f.Name == "" {
			return fmt.Errorf("field without a name")
		}
		if names[f.Name] {
			return fmt.Errorf("duplicate field %s", f.Name)
		}
		names[f.Name] = true

		switch f.Agg {
		case AggCountRows:
		case AggPercent:
			if _, ok := schema.Dataset.Table(f.PercentOf); !ok {
				return fmt.Errorf("field %s: %w: %q", f.Name, ErrUnknownTable, f.PercentOf)
			}
			fallthrough
		default:
			if err := checkColumn(f.Column, scope); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
	}

	if p.Aggregated() {
		grouped := make(map[string]bool, len(p.GroupBy))
		for _, g := range p.GroupBy {
			f, _, ok := p.Field(g)
			if !ok {
				return fmt.Errorf("group by unknown field %s", g)
			}
			if f.Agg != AggNone {
				return fmt.Errorf("group by aggregate field %s", g)
			}
			grouped[g] = true
		}
		for _, f := range p.Fields {
			if f.Agg == AggNone && !grouped[f.Name] {
				return fmt.Errorf("field %s is neither grouped nor aggregated", f.Name)
			}
		}
	}

	for _, o := range p.OrderBy {
		if !names[o.Field] {
			return fmt.Errorf("order by unknown field %s", o.Field)
		}
	}

	if p.Limit < 0 {
		return fmt.Errorf("negative limit %d", p.Limit)
	}
	return nil
}

func validateJoin(j Join, scope map[string]bool) error {
	if _, ok := schema.Dataset.Table(j.Table); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, j.Table)
	}
	if j.Right.Table != j.Table {
		return fmt.Errorf("join: %s does not belong to %s", j.Right, j.Table)
	}
	if _, err := j.Right.Def(); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	if err := checkColumn(j.Left, scope); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	return nil
}

func checkColumn(c Column, scope map[string]bool) error {
	if !scope[c.Table] {
		return fmt.Errorf("table %s is not in scope for %s", c.Table, c)
	}
	_, err := c.Def()
	return err
}
