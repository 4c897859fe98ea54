package formatter

import (
	"encoding/csv"
	"io"

	"github.com/tordrt/foodstats/internal/result"
)

// CSVFormatter writes results as CSV with a header row
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// Format writes the result; NULL becomes an empty cell
func (f *CSVFormatter) Format(res *result.Result) error {
	w := csv.NewWriter(f.writer)
	if err := w.Write(res.Columns); err != nil {
		return err
	}
	record := make([]string, len(res.Columns))
	for _, row := range res.Rows {
		for i, v := range row {
			record[i] = rawValue(v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
