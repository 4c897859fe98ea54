package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tordrt/foodstats/internal/schema"
)

// csvNames are the file names tried for each table, in order.
var csvNames = map[string][]string{
	schema.Providers:    {"providers.csv", "providers_final.csv"},
	schema.Receivers:    {"receivers.csv", "receivers_final.csv"},
	schema.FoodListings: {"food_listings.csv", "food_listings_final.csv"},
	schema.Claims:       {"claims.csv", "claims_final.csv"},
}

// LoadCSVDir loads the four dataset tables from CSV exports in dir.
func LoadCSVDir(dir string) (*Snapshot, error) {
	tables := make([]*Table, 0, len(schema.Dataset.Tables))
	for _, name := range schema.Dataset.TableNames() {
		path, err := findCSV(dir, name)
		if err != nil {
			return nil, err
		}
		t, err := readCSVFile(name, path)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return New("csv://"+dir, tables...)
}

func findCSV(dir, table string) (string, error) {
	for _, name := range csvNames[table] {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no CSV file for table %s in %s (tried %s)", table, dir, strings.Join(csvNames[table], ", "))
}

func readCSVFile(table, path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	t, err := ReadCSV(table, file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses one table from CSV with a header row. Columns are matched
// by name; unknown columns are ignored and optional columns may be absent.
func ReadCSV(table string, r io.Reader) (*Table, error) {
	t, err := NewTable(table)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		positions[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	// column index in the table -> field index in the file, -1 if absent
	mapping := make([]int, len(t.Def.Columns))
	for i, col := range t.Def.Columns {
		pos, ok := positions[col.Name]
		if !ok {
			if !col.Optional {
				return nil, fmt.Errorf("missing column %s", col.Name)
			}
			pos = -1
		}
		mapping[i] = pos
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]any, len(t.Def.Columns))
		for i, col := range t.Def.Columns {
			pos := mapping[i]
			if pos < 0 || pos >= len(record) {
				continue
			}
			v, err := ParseText(col.Kind, record[pos])
			if err != nil {
				return nil, fmt.Errorf("line %d, column %s: %w", line, col.Name, err)
			}
			row[i] = v
		}
		if err := t.Append(row...); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	return t, nil
}

// WriteCSVDir writes each table of s to dir as <table>.csv, creating dir
// if needed. The files read back with LoadCSVDir.
func WriteCSVDir(s *Snapshot, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	for _, name := range schema.Dataset.TableNames() {
		t, ok := s.Table(name)
		if !ok {
			return fmt.Errorf("snapshot has no table %s", name)
		}
		path := filepath.Join(dir, csvNames[name][0])
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := WriteCSV(file, t); err != nil {
			_ = file.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", path, err)
		}
	}
	return nil
}

// WriteCSV writes t with a header row. NULL is written as an empty cell.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Def.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(t.Def.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = FormatText(t.Def.Columns[i].Kind, v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatText renders a normalized value the way ParseText reads it back.
func FormatText(kind schema.Kind, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if kind == schema.KindDate {
			return x.Format(dateLayouts[0])
		}
		return x.Format(dateLayouts[1])
	case string:
		return x
	}
	return fmt.Sprint(v)
}
