package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/schema"
)

// Compile renders p as a single SELECT statement for d. The returned
// arguments line up with the statement's placeholders.
func Compile(d Dialect, p *plan.Plan, env plan.Env) (string, []any, error) {
	c := &compiler{dialect: d}
	return c.compile(p, env)
}

type compiler struct {
	dialect Dialect
	// missing lists optional columns absent from the store; they read as NULL.
	missing map[plan.Column]bool
	args    []any
}

func (c *compiler) compile(p *plan.Plan, env plan.Env) (string, []any, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}
	c.args = nil

	exprs := make([]string, len(p.Fields))
	for i, f := range p.Fields {
		exprs[i] = c.field(f, "")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	for i, f := range p.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(exprs[i] + " AS " + c.dialect.Quote(f.Name))
	}

	b.WriteString(" FROM " + c.table(p.From, ""))
	for _, j := range p.Joins {
		b.WriteString(" JOIN " + c.table(j.Table, "") + " ON " + c.column(j.Left, "") + " = " + c.column(j.Right, ""))
	}

	var conds []string
	for _, f := range p.Filters {
		conds = append(conds, c.filter(f, env))
	}
	if p.Exclude != nil {
		conds = append(conds, c.notExists(p.Exclude))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if len(p.GroupBy) > 0 {
		keys := make([]string, len(p.GroupBy))
		for i, name := range p.GroupBy {
			_, idx, _ := p.Field(name)
			keys[i] = exprs[idx]
		}
		b.WriteString(" GROUP BY " + strings.Join(keys, ", "))
	}

	if len(p.OrderBy) > 0 {
		var keys []string
		for _, o := range p.OrderBy {
			f, idx, _ := p.Field(o.Field)
			keys = append(keys, c.orderKeys(exprs[idx], f.Kind(), o.Desc)...)
		}
		b.WriteString(" ORDER BY " + strings.Join(keys, ", "))
	}

	if p.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(p.Limit))
	}
	return b.String(), c.args, nil
}

// prefix distinguishes the aliases of a correlated subquery from the
// outer query's.
func (c *compiler) table(name, prefix string) string {
	t, _ := schema.Dataset.Table(name)
	return c.dialect.Quote(t.Name) + " " + prefix + t.Alias
}

func (c *compiler) column(col plan.Column, prefix string) string {
	if c.missing[col] {
		return "NULL"
	}
	t, _ := schema.Dataset.Table(col.Table)
	return prefix + t.Alias + "." + c.dialect.Quote(col.Name)
}

func (c *compiler) field(f plan.Field, prefix string) string {
	var col string
	if !f.Column.IsZero() {
		col = c.column(f.Column, prefix)
	}
	switch f.Agg {
	case plan.AggCountRows:
		return "COUNT(*)"
	case plan.AggCount:
		return "COUNT(" + col + ")"
	case plan.AggCountDistinct:
		return "COUNT(DISTINCT " + col + ")"
	case plan.AggSum:
		return "SUM(" + col + ")"
	case plan.AggAvg:
		return "AVG(" + c.dialect.Float(col) + ")"
	case plan.AggPercent:
		return c.dialect.Float("COUNT("+col+")") + " * 100 / (SELECT COUNT(*) FROM " + c.dialect.Quote(f.PercentOf) + ")"
	}
	switch f.Transform {
	case plan.TransformDate:
		return c.dialect.DateText(col)
	case plan.TransformDateTime:
		return c.dialect.DateTimeText(col)
	}
	return col
}

var comparisonOps = map[plan.Op]string{
	plan.OpEq: "=",
	plan.OpNe: "<>",
	plan.OpLt: "<",
	plan.OpLe: "<=",
	plan.OpGt: ">",
	plan.OpGe: ">=",
}

func (c *compiler) filter(f plan.Filter, env plan.Env) string {
	col := c.column(f.Column, "")
	switch f.Op {
	case plan.OpIsNull:
		return col + " IS NULL"
	case plan.OpNotNull:
		return col + " IS NOT NULL"
	}
	return col + " " + comparisonOps[f.Op] + " " + c.bind(f.Arg(env))
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, c.dialect.Bind(v))
	return c.dialect.Placeholder(len(c.args))
}

// notExists renders the anti-join path as a correlated subquery. Inner
// tables take an "x" alias prefix.
func (c *compiler) notExists(ex *plan.AntiJoin) string {
	const prefix = "x"
	first := ex.Joins[0]

	var b strings.Builder
	b.WriteString("NOT EXISTS (SELECT 1 FROM " + c.table(first.Table, prefix))
	for _, j := range ex.Joins[1:] {
		b.WriteString(" JOIN " + c.table(j.Table, prefix) + " ON " + c.column(j.Left, prefix) + " = " + c.column(j.Right, prefix))
	}
	b.WriteString(" WHERE " + c.column(first.Right, prefix) + " = " + c.column(first.Left, "") + ")")
	return b.String()
}

// orderKeys sorts NULLs last in both directions and text in byte order.
func (c *compiler) orderKeys(expr string, kind schema.Kind, desc bool) []string {
	key := expr
	if kind == schema.KindText {
		key = c.dialect.ByteOrder(expr)
	}
	if desc {
		key += " DESC"
	}
	return []string{
		fmt.Sprintf("CASE WHEN %s IS NULL THEN 1 ELSE 0 END", expr),
		key,
	}
}
