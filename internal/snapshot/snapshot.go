// Package snapshot holds an immutable in-memory copy of the four dataset
// tables.
//
// A Snapshot is an owned value: callers load one, hand it to a backend and
// replace it wholesale to reload. Nothing in this package keeps global
// state.
package snapshot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tordrt/foodstats/internal/schema"
)

// Table is the rows of one dataset table. Each row holds one value per
// column of Def, in declaration order.
type Table struct {
	Def  *schema.Table
	Rows [][]any
}

// NewTable creates an empty table for a dataset table name.
func NewTable(name string) (*Table, error) {
	def, ok := schema.Dataset.Table(name)
	if !ok {
		return nil, fmt.Errorf("unknown table %s", name)
	}
	return &Table{Def: def}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Append normalizes values to the column kinds and adds a row.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.Def.Columns) {
		return fmt.Errorf("%s: got %d values for %d columns", t.Def.Name, len(values), len(t.Def.Columns))
	}
	row := make([]any, len(values))
	for i, v := range values {
		col := t.Def.Columns[i]
		nv, err := Normalize(col.Kind, v)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", t.Def.Name, col.Name, err)
		}
		if nv == nil && !col.Nullable {
			return fmt.Errorf("%s.%s: value is required", t.Def.Name, col.Name)
		}
		row[i] = nv
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Snapshot is a read-only copy of the dataset.
type Snapshot struct {
	Source   string
	LoadedAt time.Time
	tables   map[string]*Table
}

// New assembles a snapshot. Every dataset table must be present exactly
// once.
func New(source string, tables ...*Table) (*Snapshot, error) {
	s := &Snapshot{Source: source, LoadedAt: time.Now(), tables: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if _, dup := s.tables[t.Def.Name]; dup {
			return nil, fmt.Errorf("table %s given twice", t.Def.Name)
		}
		s.tables[t.Def.Name] = t
	}
	for _, name := range schema.Dataset.TableNames() {
		if _, ok := s.tables[name]; !ok {
			return nil, fmt.Errorf("table %s missing from snapshot", name)
		}
	}
	return s, nil
}

// Table returns a table by name.
func (s *Snapshot) Table(name string) (*Table, bool) {
	t, ok := s.tables[name]
	return t, ok
}

// Count returns the row count of a table, or 0 for unknown tables.
func (s *Snapshot) Count(name string) int {
	if t, ok := s.tables[name]; ok {
		return t.Len()
	}
	return 0
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

// ParseTime parses the date and datetime layouts found in dataset exports.
// Values without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseText converts exported text to a value of kind. Empty text is NULL.
func ParseText(kind schema.Kind, s string) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	switch kind {
	case schema.KindInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return int64(f), nil
	case schema.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", s)
		}
		return f, nil
	case schema.KindText:
		return s, nil
	case schema.KindDate:
		t, err := ParseTime(s)
		if err != nil {
			return nil, err
		}
		return truncateDay(t), nil
	case schema.KindDateTime:
		return ParseTime(s)
	}
	return nil, fmt.Errorf("unsupported kind %s", kind)
}

// Normalize converts a Go value to the canonical representation of kind.
func Normalize(kind schema.Kind, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseText(kind, x)
	case []byte:
		return ParseText(kind, string(x))
	case time.Time:
		switch kind {
		case schema.KindDate:
			return truncateDay(x.UTC()), nil
		case schema.KindDateTime:
			return x.UTC(), nil
		}
	case int:
		return normalizeNumber(kind, float64(x), int64(x))
	case int16:
		return normalizeNumber(kind, float64(x), int64(x))
	case int32:
		return normalizeNumber(kind, float64(x), int64(x))
	case int64:
		return normalizeNumber(kind, float64(x), x)
	case uint64:
		return normalizeNumber(kind, float64(x), int64(x))
	case float32:
		return normalizeNumber(kind, float64(x), int64(x))
	case float64:
		return normalizeNumber(kind, x, int64(x))
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, kind)
}

func normalizeNumber(kind schema.Kind, f float64, n int64) (any, error) {
	switch kind {
	case schema.KindInt:
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("invalid integer %v", f)
		}
		return n, nil
	case schema.KindFloat:
		return f, nil
	case schema.KindText:
		return strconv.FormatInt(n, 10), nil
	}
	return nil, fmt.Errorf("cannot use a number as %s", kind)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
