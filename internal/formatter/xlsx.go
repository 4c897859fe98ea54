package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/tordrt/foodstats/internal/result"
)

// maxSheetName is the longest sheet name Excel accepts.
const maxSheetName = 31

// XLSXFormatter writes results as an Excel workbook
type XLSXFormatter struct {
	writer io.Writer
}

// NewXLSXFormatter creates a new XLSX formatter
func NewXLSXFormatter(w io.Writer) *XLSXFormatter {
	return &XLSXFormatter{writer: w}
}

// Format writes a workbook holding the result on one sheet
func (f *XLSXFormatter) Format(res *result.Result) error {
	return WriteWorkbook(f.writer, res)
}

// WriteWorkbook writes a workbook with one sheet per result, named after
// the result titles.
func WriteWorkbook(w io.Writer, results ...*result.Result) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	header, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	used := make(map[string]bool)
	for i, res := range results {
		name := sheetName(res.Title, i+1, used)
		if i == 0 {
			if err := book.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := book.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if err := writeSheet(book, name, res, header); err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", name, err)
		}
	}

	return book.Write(w)
}

func writeSheet(book *excelize.File, sheet string, res *result.Result, headerStyle int) error {
	columns := make([]any, len(res.Columns))
	for i, c := range res.Columns {
		columns[i] = c
	}
	if err := book.SetSheetRow(sheet, "A1", &columns); err != nil {
		return err
	}
	if len(columns) > 0 {
		if err := book.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range res.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for i, v := range row {
			if v == nil {
				continue
			}
			switch v.(type) {
			case int64, float64, string:
				values[i] = v
			default:
				values[i] = rawValue(v)
			}
		}
		if err := book.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

// sheetName derives a unique, valid sheet name from a title.
func sheetName(title string, n int, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return ' '
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = fmt.Sprintf("Result %d", n)
	}
	if len([]rune(name)) > maxSheetName {
		name = strings.TrimSpace(string([]rune(name)[:maxSheetName]))
	}
	for base, i := name, 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		runes := []rune(base)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}
