package schema

import "fmt"

// Kind is the logical type of a column value.
//
// Values travel through the query layer as:
//   - KindInt: int64
//   - KindFloat: float64
//   - KindText: string
//   - KindDate, KindDateTime: time.Time (UTC)
//
// NULL is always represented as nil.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindText
	KindDate
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Schema represents the complete dataset
type Schema struct {
	Tables []Table
}

// Table represents a dataset table
type Table struct {
	Name       string
	Alias      string // short alias used in compiled SQL
	Columns    []Column
	Relations  []Relation
	PrimaryKey string
}

// Column represents a table column
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
	Optional bool // may be absent from a CSV export
}

// Relation represents a foreign key relationship
type Relation struct {
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Cardinality  string // 1:1, 1:N, N:1
}

// Column looks up a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// TableNames returns the table names in declaration order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
