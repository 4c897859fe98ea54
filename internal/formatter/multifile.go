package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tordrt/foodstats/internal/result"
	"github.com/tordrt/foodstats/internal/schema"
)

// Report is a set of results written together
type Report struct {
	Title    string
	Source   string
	Schema   *schema.Schema
	KPIs     *result.Result
	Sections []Section
}

// Section is one report result, written to its own file
type Section struct {
	Name   string // file name without extension
	Result *result.Result
}

// MultiFileFormatter writes a report to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes _overview plus one file per section
func (f *MultiFileFormatter) Format(r *Report) error {
	if f.OutputFormat != FormatMarkdown && f.OutputFormat != FormatText {
		return fmt.Errorf("unsupported report format: %s (must be text or markdown)", f.OutputFormat)
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(w io.Writer) error { return f.writeOverview(w, r) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, section := range r.Sections {
		err := f.writeFile(section.Name, func(w io.Writer) error {
			formatter, err := New(f.OutputFormat, w)
			if err != nil {
				return err
			}
			return formatter.Format(section.Result)
		})
		if err != nil {
			return fmt.Errorf("failed to write section %s: %w", section.Name, err)
		}
	}

	return nil
}

func (f *MultiFileFormatter) writeFile(name string, write func(w io.Writer) error) error {
	filename := filepath.Join(f.OutputDir, name+f.getFileExtension())

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, r *Report) error {
	if f.OutputFormat == FormatMarkdown {
		return f.writeMarkdownOverview(w, r)
	}
	return f.writeTextOverview(w, r)
}

func (f *MultiFileFormatter) writeMarkdownOverview(w io.Writer, r *Report) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", r.Title)
	if r.Source != "" {
		_, _ = fmt.Fprintf(w, "Source: `%s`\n\n", r.Source)
	}

	if r.KPIs != nil {
		kpis := *r.KPIs
		kpis.Title = "Key metrics"
		if err := NewMarkdownFormatter(w).Format(&kpis); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
	}

	if r.Schema != nil {
		_, _ = fmt.Fprintf(w, "## Data model\n\n")
		md := NewMarkdownFormatter(w)
		for i := range r.Schema.Tables {
			table := &r.Schema.Tables[i]
			md.FormatTable(table)
			if incoming := findIncomingRelations(table.Name, r.Schema); len(incoming) > 0 {
				_, _ = fmt.Fprintf(w, "Referenced by:\n\n")
				for _, rel := range incoming {
					_, _ = fmt.Fprintf(w, "- %s.%s → %s (%s)\n",
						rel.SourceTable, rel.SourceColumn,
						rel.TargetColumn,
						FormatCardinality(rel.Cardinality, rel.SourceTable, rel.TargetTable))
				}
				_, _ = fmt.Fprintln(w)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "## Sections\n\n")
	_, _ = fmt.Fprintf(w, "Each section has a corresponding file: `<name>%s`\n\n", f.getFileExtension())
	for _, s := range r.Sections {
		_, _ = fmt.Fprintf(w, "- **%s**: %s\n", s.Name, s.Result.Title)
	}
	return nil
}

func (f *MultiFileFormatter) writeTextOverview(w io.Writer, r *Report) error {
	_, _ = fmt.Fprintf(w, "%s\n", strings.ToUpper(r.Title))
	if r.Source != "" {
		_, _ = fmt.Fprintf(w, "Source: %s\n", r.Source)
	}
	_, _ = fmt.Fprintln(w)

	if r.KPIs != nil {
		kpis := *r.KPIs
		kpis.Title = "Key metrics"
		if err := NewTextFormatter(w).Format(&kpis); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w)
	}

	if r.Schema != nil {
		// Sort tables alphabetically
		tables := make([]schema.Table, len(r.Schema.Tables))
		copy(tables, r.Schema.Tables)
		sort.Slice(tables, func(i, j int) bool {
			return tables[i].Name < tables[j].Name
		})

		_, _ = fmt.Fprintln(w, "TABLES")
		for _, table := range tables {
			_, _ = fmt.Fprintf(w, "%s (PK: %s)", table.Name, table.PrimaryKey)
			if len(table.Relations) > 0 {
				targets := []string{}
				for _, rel := range table.Relations {
					targets = append(targets, rel.TargetTable)
				}
				_, _ = fmt.Fprintf(w, " (references: %s)", strings.Join(targets, ","))
			}
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintf(w, "SECTIONS\nEach section has a file: <name>%s\n", f.getFileExtension())
	for _, s := range r.Sections {
		_, _ = fmt.Fprintf(w, "%s: %s\n", s.Name, s.Result.Title)
	}
	return nil
}

// IncomingRelation represents a relationship pointing to a table
type IncomingRelation struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Cardinality  string
}

// findIncomingRelations finds all relations pointing to this table
func findIncomingRelations(tableName string, s *schema.Schema) []IncomingRelation {
	var incoming []IncomingRelation

	for _, table := range s.Tables {
		for _, rel := range table.Relations {
			if rel.TargetTable == tableName {
				incoming = append(incoming, IncomingRelation{
					SourceTable:  table.Name,
					SourceColumn: rel.SourceColumn,
					TargetTable:  rel.TargetTable,
					TargetColumn: rel.TargetColumn,
					Cardinality:  rel.Cardinality,
				})
			}
		}
	}

	return incoming
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatMarkdown {
		return ".md"
	}
	return ".txt"
}
