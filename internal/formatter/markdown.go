package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/foodstats/internal/result"
	"github.com/tordrt/foodstats/internal/schema"
)

// MarkdownFormatter formats results as markdown tables
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the result as a markdown section
func (f *MarkdownFormatter) Format(res *result.Result) error {
	if res.Title != "" {
		_, _ = fmt.Fprintf(f.writer, "## %s\n\n", res.Title)
	}
	if res.Description != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", res.Description)
	}

	if res.Len() == 0 {
		_, err := fmt.Fprintln(f.writer, "_No rows._")
		return err
	}

	header := make([]string, len(res.Columns))
	rule := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = escapeCell(c)
		rule[i] = "---"
	}
	_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(header, " | "))
	_, _ = fmt.Fprintf(f.writer, "| %s |\n", strings.Join(rule, " | "))

	cells := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i, v := range row {
			cells[i] = escapeCell(displayValue(v))
		}
		if _, err := fmt.Fprintf(f.writer, "| %s |\n", strings.Join(cells, " | ")); err != nil {
			return err
		}
	}
	return nil
}

// FormatTable writes the columns and references of a dataset table
func (f *MarkdownFormatter) FormatTable(table *schema.Table) {
	_, _ = fmt.Fprintf(f.writer, "### %s\n\n", table.Name)
	for _, col := range table.Columns {
		var constraints []string
		if col.Name == table.PrimaryKey {
			constraints = append(constraints, "PK")
		}
		if !col.Nullable {
			constraints = append(constraints, "NOT NULL")
		}
		if col.Optional {
			constraints = append(constraints, "optional")
		}
		if len(constraints) > 0 {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s, %s\n", col.Name, col.Kind, strings.Join(constraints, ", "))
		} else {
			_, _ = fmt.Fprintf(f.writer, "- **%s:** %s\n", col.Name, col.Kind)
		}
	}
	_, _ = fmt.Fprintln(f.writer)

	if len(table.Relations) > 0 {
		_, _ = fmt.Fprintln(f.writer, "References:")
		_, _ = fmt.Fprintln(f.writer)
		for _, rel := range table.Relations {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s (%s)\n",
				rel.SourceColumn,
				rel.TargetTable,
				rel.TargetColumn,
				FormatCardinality(rel.Cardinality, table.Name, rel.TargetTable))
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

// FormatCardinality describes a relation cardinality in words
func FormatCardinality(cardinality, source, target string) string {
	switch cardinality {
	case "N:1":
		return fmt.Sprintf("many %s to one %s", source, target)
	case "1:N":
		return fmt.Sprintf("one %s to many %s", source, target)
	case "1:1":
		return fmt.Sprintf("one %s to one %s", source, target)
	}
	return cardinality
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
