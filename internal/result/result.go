// Package result holds the tabular value every query returns.
package result

// Result is an ordered set of named columns and rows.
//
// Cell values are int64, float64, string or nil. Ad-hoc queries may also
// produce time.Time or bool when the driver returns them.
type Result struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Columns     []string `json:"columns"`
	Rows        [][]any  `json:"rows"`
}

// New creates an empty result with the given columns.
func New(columns ...string) *Result {
	return &Result{Columns: columns, Rows: [][]any{}}
}

// Append adds a row. The row must have one value per column.
func (r *Result) Append(row ...any) {
	r.Rows = append(r.Rows, row)
}

// Len returns the number of rows.
func (r *Result) Len() int {
	return len(r.Rows)
}

// ColumnIndex returns the position of a column or -1.
func (r *Result) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i in the named column, or nil if the
// column does not exist.
func (r *Result) Value(i int, column string) any {
	idx := r.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(r.Rows) {
		return nil
	}
	return r.Rows[i][idx]
}

// ColumnValues returns every value of the named column in row order.
func (r *Result) ColumnValues(column string) []any {
	idx := r.ColumnIndex(column)
	if idx < 0 {
		return nil
	}
	out := make([]any, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row[idx]
	}
	return out
}
