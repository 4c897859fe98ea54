package memory

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/snapshot"
)

// frame is a row-major table with qualified column names ("table.Column").
// Frames are never mutated in place; every operation returns a new frame
// whose rows may share backing arrays with the snapshot.
type frame struct {
	cols []string
	rows [][]any
}

func tableFrame(snap *snapshot.Snapshot, name string) (*frame, error) {
	t, ok := snap.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", plan.ErrUnknownTable, name)
	}
	cols := make([]string, len(t.Def.Columns))
	for i, c := range t.Def.Columns {
		cols[i] = t.Def.Name + "." + c.Name
	}
	return &frame{cols: cols, rows: t.Rows}, nil
}

func (f *frame) index(name string) int {
	for i, c := range f.cols {
		if c == name {
			return i
		}
	}
	return -1
}

// join is an inner hash join on f[left] = r[right]. NULL keys never match.
// Output rows follow the order of f, then of r.
func (f *frame) join(r *frame, left, right int) *frame {
	return f.joinIndexed(r, joinIndex(r, right), left)
}

// joinIndex maps each non-NULL key in column right of r to its rows.
func joinIndex(r *frame, right int) map[string][]int {
	idx := make(map[string][]int, len(r.rows))
	for i, row := range r.rows {
		if row[right] == nil {
			continue
		}
		k := valueKey(row[right])
		idx[k] = append(idx[k], i)
	}
	return idx
}

// joinSize counts the rows joinIndexed would produce.
func (f *frame) joinSize(idx map[string][]int, left int) int {
	n := 0
	for _, row := range f.rows {
		if row[left] != nil {
			n += len(idx[valueKey(row[left])])
		}
	}
	return n
}

func (f *frame) joinIndexed(r *frame, idx map[string][]int, left int) *frame {
	cols := make([]string, 0, len(f.cols)+len(r.cols))
	cols = append(append(cols, f.cols...), r.cols...)
	out := &frame{cols: cols}
	for _, row := range f.rows {
		if row[left] == nil {
			continue
		}
		for _, j := range idx[valueKey(row[left])] {
			joined := make([]any, 0, len(cols))
			joined = append(append(joined, row...), r.rows[j]...)
			out.rows = append(out.rows, joined)
		}
	}
	return out
}

func (f *frame) where(keep func(row []any) bool) *frame {
	out := &frame{cols: f.cols}
	for _, row := range f.rows {
		if keep(row) {
			out.rows = append(out.rows, row)
		}
	}
	return out
}

type sortKey struct {
	idx  int
	desc bool
}

// sortRows orders rows by keys with NULLs last in both directions. The
// sort is stable so full ties keep their input order.
func sortRows(rows [][]any, keys []sortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			a, b := rows[i][k.idx], rows[j][k.idx]
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				return false
			case b == nil:
				return true
			}
			c, ok := compareValues(a, b)
			if !ok || c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders two non-nil values. ok is false when the values
// are not comparable. Text compares in byte order; text compared with a
// time is parsed as a date.
func compareValues(a, b any) (int, bool) {
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, y), true
		case float64:
			return cmp.Compare(float64(x), y), true
		}
	case float64:
		switch y := b.(type) {
		case int64:
			return cmp.Compare(x, float64(y)), true
		case float64:
			return cmp.Compare(x, y), true
		}
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y), true
		case time.Time:
			t, err := snapshot.ParseTime(x)
			if err != nil {
				return 0, false
			}
			return t.Compare(y), true
		}
	case time.Time:
		switch y := b.(type) {
		case time.Time:
			return x.Compare(y), true
		case string:
			t, err := snapshot.ParseTime(y)
			if err != nil {
				return 0, false
			}
			return x.Compare(t), true
		}
	}
	return 0, false
}

// match evaluates a filter comparison. Comparisons involving NULL are
// false, as in SQL.
func match(v any, op plan.Op, arg any) bool {
	switch op {
	case plan.OpIsNull:
		return v == nil
	case plan.OpNotNull:
		return v != nil
	}
	if v == nil || arg == nil {
		return false
	}
	c, ok := compareValues(v, arg)
	if !ok {
		return false
	}
	switch op {
	case plan.OpEq:
		return c == 0
	case plan.OpNe:
		return c != 0
	case plan.OpLt:
		return c < 0
	case plan.OpLe:
		return c <= 0
	case plan.OpGt:
		return c > 0
	case plan.OpGe:
		return c >= 0
	}
	return false
}

// valueKey encodes a value for hashing. Kinds never collide.
func valueKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "n"
	case time.Time:
		return "t" + x.UTC().Format(time.RFC3339Nano)
	case string:
		return "s" + x
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

func rowKey(values []any) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(valueKey(v))
		b.WriteByte(0)
	}
	return b.String()
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// displayValue renders times the way the SQL backends' date transforms do.
func displayValue(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(plan.DateLayout)
	}
	return t.Format(plan.DateTimeLayout)
}
