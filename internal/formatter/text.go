package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tordrt/foodstats/internal/result"
)

// TextFormatter formats results as aligned plain-text columns
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the result as a title line followed by aligned columns
func (f *TextFormatter) Format(res *result.Result) error {
	if res.Title != "" {
		_, _ = fmt.Fprintln(f.writer, strings.ToUpper(res.Title))
		if res.Description != "" {
			_, _ = fmt.Fprintln(f.writer, res.Description)
		}
		_, _ = fmt.Fprintln(f.writer)
	}

	tw := tabwriter.NewWriter(f.writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))

	cells := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i, v := range row {
			cells[i] = displayValue(v)
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(f.writer, "(%d %s)\n", res.Len(), plural(res.Len(), "row", "rows"))
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
