package memory

import (
	"fmt"
	"time"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/result"
	"github.com/tordrt/foodstats/internal/schema"
	"github.com/tordrt/foodstats/internal/snapshot"
)

// execute interprets p over snap.
func execute(snap *snapshot.Snapshot, p *plan.Plan, env plan.Env) (*result.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	f, err := tableFrame(snap, p.From)
	if err != nil {
		return nil, err
	}
	if f, err = joinPath(snap, f, p.Joins); err != nil {
		return nil, err
	}

	for _, flt := range p.Filters {
		idx := f.index(flt.Column.String())
		op, arg := flt.Op, flt.Arg(env)
		f = f.where(func(row []any) bool { return match(row[idx], op, arg) })
	}

	if p.Exclude != nil {
		if f, err = antiJoin(snap, f, p.Exclude); err != nil {
			return nil, err
		}
	}

	cols := make([]int, len(p.Fields))
	for i, field := range p.Fields {
		cols[i] = -1
		if !field.Column.IsZero() {
			cols[i] = f.index(field.Column.String())
		}
	}

	var rows [][]any
	if p.Aggregated() {
		rows = aggregate(snap, f, p, cols)
	} else {
		rows = make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			out := make([]any, len(p.Fields))
			for i, field := range p.Fields {
				out[i] = transform(row[cols[i]], field.Transform)
			}
			rows = append(rows, out)
		}
	}

	keys := make([]sortKey, 0, len(p.OrderBy))
	for _, o := range p.OrderBy {
		_, idx, _ := p.Field(o.Field)
		keys = append(keys, sortKey{idx: idx, desc: o.Desc})
	}
	sortRows(rows, keys)

	if p.Limit > 0 && len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}

	res := result.New(p.OutputColumns()...)
	for _, row := range rows {
		out := make([]any, 0, len(res.Columns))
		for i, field := range p.Fields {
			if !field.Hidden {
				out = append(out, row[i])
			}
		}
		res.Append(out...)
	}
	return res, nil
}

func joinPath(snap *snapshot.Snapshot, f *frame, joins []plan.Join) (*frame, error) {
	for _, j := range joins {
		right, err := tableFrame(snap, j.Table)
		if err != nil {
			return nil, err
		}
		left, rightIdx := f.index(j.Left.String()), right.index(j.Right.String())
		if left < 0 || rightIdx < 0 {
			return nil, fmt.Errorf("join %s: column not in scope", j.Table)
		}
		f = f.join(right, left, rightIdx)
	}
	return f, nil
}

// antiJoin keeps the rows of f whose key reaches nothing through the path.
// A NULL key reaches nothing, so NOT EXISTS holds for it.
func antiJoin(snap *snapshot.Snapshot, f *frame, ex *plan.AntiJoin) (*frame, error) {
	first := ex.Joins[0]
	inner, err := tableFrame(snap, first.Table)
	if err != nil {
		return nil, err
	}
	if inner, err = joinPath(snap, inner, ex.Joins[1:]); err != nil {
		return nil, err
	}

	reached := make(map[string]bool)
	rightIdx := inner.index(first.Right.String())
	for _, row := range inner.rows {
		if v := row[rightIdx]; v != nil {
			reached[valueKey(v)] = true
		}
	}

	leftIdx := f.index(first.Left.String())
	return f.where(func(row []any) bool {
		v := row[leftIdx]
		return v == nil || !reached[valueKey(v)]
	}), nil
}

type group struct {
	keys []any
	rows [][]any
}

// aggregate groups f by the plan's group fields in first-seen order and
// computes one output row per group. Without group fields the whole frame
// is one group, so an empty input still yields a row.
func aggregate(snap *snapshot.Snapshot, f *frame, p *plan.Plan, cols []int) [][]any {
	groupIdx := make([]int, len(p.GroupBy))
	for i, name := range p.GroupBy {
		_, groupIdx[i], _ = p.Field(name)
	}

	var groups []*group
	byKey := make(map[string]*group)
	if len(groupIdx) == 0 {
		g := &group{}
		groups = append(groups, g)
		byKey[""] = g
	}

	for _, row := range f.rows {
		keys := make([]any, len(groupIdx))
		for i, idx := range groupIdx {
			keys[i] = transform(row[cols[idx]], p.Fields[idx].Transform)
		}
		k := rowKey(keys)
		g, ok := byKey[k]
		if !ok {
			g = &group{keys: keys}
			byKey[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}

	out := make([][]any, 0, len(groups))
	for _, g := range groups {
		row := make([]any, len(p.Fields))
		for i, field := range p.Fields {
			if field.Agg == plan.AggNone {
				for gi, idx := range groupIdx {
					if idx == i {
						row[i] = g.keys[gi]
					}
				}
				continue
			}
			row[i] = aggregateValue(snap, field, cols[i], g.rows)
		}
		out = append(out, row)
	}
	return out
}

func aggregateValue(snap *snapshot.Snapshot, field plan.Field, idx int, rows [][]any) any {
	switch field.Agg {
	case plan.AggCountRows:
		return int64(len(rows))
	case plan.AggCount:
		return int64(countNonNull(rows, idx))
	case plan.AggCountDistinct:
		seen := make(map[string]bool)
		for _, row := range rows {
			if v := row[idx]; v != nil {
				seen[valueKey(v)] = true
			}
		}
		return int64(len(seen))
	case plan.AggSum:
		return sum(rows, idx, field.Kind() == schema.KindInt)
	case plan.AggAvg:
		var total float64
		var n int
		for _, row := range rows {
			if x, ok := toFloat(row[idx]); ok {
				total += x
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return total / float64(n)
	case plan.AggPercent:
		all := snap.Count(field.PercentOf)
		if all == 0 {
			return nil
		}
		return float64(countNonNull(rows, idx)) * 100 / float64(all)
	}
	return nil
}

func countNonNull(rows [][]any, idx int) int {
	n := 0
	for _, row := range rows {
		if row[idx] != nil {
			n++
		}
	}
	return n
}

// sum follows SQL: the sum of no values is NULL.
func sum(rows [][]any, idx int, integral bool) any {
	var (
		ints   int64
		floats float64
		n      int
	)
	for _, row := range rows {
		switch x := row[idx].(type) {
		case int64:
			ints += x
			floats += float64(x)
			n++
		case float64:
			floats += x
			n++
		}
	}
	switch {
	case n == 0:
		return nil
	case integral:
		return ints
	default:
		return floats
	}
}

func transform(v any, t plan.Transform) any {
	if v == nil || t == plan.TransformNone {
		return v
	}
	tm, ok := v.(time.Time)
	if !ok {
		return v
	}
	if t == plan.TransformDateTime {
		return tm.Format(plan.DateTimeLayout)
	}
	return tm.Format(plan.DateLayout)
}
