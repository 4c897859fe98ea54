// Package formatter writes query results for people and tools.
package formatter

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tordrt/foodstats/internal/result"
)

// Output formats accepted by New.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatXLSX     = "xlsx"
)

// Formats lists the output formats in help order.
var Formats = []string{FormatText, FormatMarkdown, FormatCSV, FormatJSON, FormatXLSX}

// Formatter writes one result.
type Formatter interface {
	Format(res *result.Result) error
}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer) (Formatter, error) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w), nil
	case FormatMarkdown, "md":
		return NewMarkdownFormatter(w), nil
	case FormatCSV:
		return NewCSVFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	case FormatXLSX:
		return NewXLSXFormatter(w), nil
	}
	return nil, fmt.Errorf("unsupported format: %s (must be one of text, markdown, csv, json, xlsx)", format)
}

// displayValue renders a cell for reading: NULL is spelled out and floats
// keep two decimals.
func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	}
	return rawValue(v)
}

// rawValue renders a cell without loss; NULL is empty.
func rawValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	}
	return fmt.Sprint(v)
}
