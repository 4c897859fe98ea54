package formatter

import (
	"encoding/json"
	"io"

	"github.com/tordrt/foodstats/internal/result"
)

// JSONFormatter writes results as indented JSON objects
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Format writes the result as {"title", "description", "columns", "rows"}
func (f *JSONFormatter) Format(res *result.Result) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
