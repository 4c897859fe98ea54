package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/foodstats"
	"github.com/tordrt/foodstats/internal/config"
	"github.com/tordrt/foodstats/internal/formatter"
	"github.com/tordrt/foodstats/internal/logging"
	"github.com/tordrt/foodstats/internal/result"
	"github.com/tordrt/foodstats/internal/schema"
	"github.com/tordrt/foodstats/internal/server"
)

// app holds the flag values and the state built from them before a
// subcommand runs.
type app struct {
	configPath string
	source     string
	memory     bool
	today      string
	logLevel   string
	logFormat  string
	format     string
	output     string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "foodstats",
		Short: "Answer analytical questions about a food donation dataset",
		Long: `foodstats answers a fixed catalog of questions about food providers,
receivers, listings and claims. It reads PostgreSQL, MySQL or SQLite stores
directly, or CSV exports in memory, and prints results as text, markdown,
CSV, JSON or Excel workbooks.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath, "Config file")
	pf.StringVarP(&a.source, "database", "d", "", "Source URL: postgres://, mysql://, sqlite:// or csv://")
	pf.BoolVar(&a.memory, "memory", false, "Load a SQL source into memory and query it there")
	pf.StringVar(&a.today, "today", "", "Processing date YYYY-MM-DD (default: current date)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: console or json")
	pf.StringVarP(&a.format, "format", "f", formatter.FormatText, "Output format: "+strings.Join(formatter.Formats, ", "))
	pf.StringVarP(&a.output, "output", "o", "", "Output file (default: stdout)")

	root.AddCommand(
		a.questionsCmd(),
		a.queryCmd(),
		a.viewsCmd(),
		a.viewCmd(),
		a.kpisCmd(),
		a.previewCmd(),
		a.adhocCmd(),
		a.reportCmd(),
		a.serveCmd(),
		a.seedCmd(),
		a.exportCmd(),
	)
	return root
}

// setup resolves configuration (flag > env > file > default) and builds
// the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFile(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("database") {
		cfg.Source = a.source
	}
	if flags.Changed("memory") {
		cfg.Memory = a.memory
	}
	if flags.Changed("today") {
		cfg.Today = a.today
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) openSession(ctx context.Context) (*foodstats.Session, error) {
	today, err := a.cfg.TodayDate()
	if err != nil {
		return nil, err
	}
	return foodstats.Open(ctx, a.cfg.Source, &foodstats.Options{
		Memory: a.cfg.Memory,
		Today:  today,
		Logger: a.logger,
	})
}

// withSession opens the configured source, runs fn under the query
// timeout and closes the session.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *foodstats.Session) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.GetQueryTimeout())
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			a.logger.Warn("Failed to close session", zap.Error(err))
		}
	}()
	return fn(ctx, s)
}

// writeResults formats results to --output or stdout. Only xlsx puts
// several results in one output.
func (a *app) writeResults(cmd *cobra.Command, results ...*result.Result) error {
	var w io.Writer = cmd.OutOrStdout()
	if a.output != "" {
		f, err := os.Create(a.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				a.logger.Warn("Failed to close output file", zap.Error(err))
			}
		}()
		w = f
	}

	if a.format == formatter.FormatXLSX {
		return formatter.WriteWorkbook(w, results...)
	}
	f, err := formatter.New(a.format, w)
	if err != nil {
		return err
	}
	for i, res := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		if err := f.Format(res); err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
	}
	return nil
}

func (a *app) questionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List the question catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.writeResults(cmd, questionsResult())
		},
	}
}

func questionsResult() *result.Result {
	res := result.New("ID", "Title")
	res.Title = "Questions"
	for _, q := range foodstats.Questions() {
		res.Append(int64(q.ID), q.Title)
	}
	return res
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <id>",
		Short: "Answer a question from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQuestionID(args[0])
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *foodstats.Session) error {
				res, err := s.RunQuery(ctx, id)
				if err != nil {
					return err
				}
				return a.writeResults(cmd, res)
			})
		},
	}
}

func parseQuestionID(arg string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(arg), "q"))
	if err != nil {
		return 0, fmt.Errorf("invalid question id: %s", arg)
	}
	return id, nil
}

func (a *app) viewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List the chart views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := result.New("Name", "Title", "Chart")
			res.Title = "Views"
			for _, v := range foodstats.Views() {
				res.Append(v.Name, v.Title, string(v.Chart.Kind))
			}
			return a.writeResults(cmd, res)
		},
	}
}

func (a *app) viewCmd() *cobra.Command {
	var opts foodstats.ViewOptions
	cmd := &cobra.Command{
		Use:   "view <name>",
		Short: "Show the data behind a chart view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *foodstats.Session) error {
				v, err := s.RunView(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return a.writeResults(cmd, v.Result)
			})
		},
	}
	cmd.Flags().IntVar(&opts.Top, "top", 0, "Keep the first N rows (views that rank)")
	cmd.Flags().StringVar(&opts.FoodType, "food-type", "", "Restrict listings to one food type")
	return cmd
}

func (a *app) kpisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Show row counts of the four tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *foodstats.Session) error {
				res, err := s.KPIs(ctx)
				if err != nil {
					return err
				}
				return a.writeResults(cmd, res)
			})
		},
	}
}

func (a *app) previewCmd() *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "preview <table>",
		Short: "Show the first rows of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *foodstats.Session) error {
				res, err := s.Preview(ctx, args[0], rows)
				if err != nil {
					return err
				}
				return a.writeResults(cmd, res)
			})
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 0, "Number of rows (default 20)")
	return cmd
}

func (a *app) adhocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adhoc <query>",
		Short: "Run a read-only SELECT (SQL sources) or pipeline expression (memory)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *foodstats.Session) error {
				res, err := s.Adhoc(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return a.writeResults(cmd, res)
			})
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write KPIs, every question and every view",
		Long: `Writes the full report. With --format xlsx the report is one workbook
with a sheet per result; with text or markdown it is a directory holding an
overview file plus one file per question and view (requires --output-dir).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.format != formatter.FormatXLSX && outputDir == "" {
				return fmt.Errorf("--output-dir is required for %s reports", a.format)
			}
			return a.withSession(cmd, func(ctx context.Context, s *foodstats.Session) error {
				report, err := buildReport(ctx, s)
				if err != nil {
					return err
				}
				if a.format == formatter.FormatXLSX {
					results := []*result.Result{report.KPIs}
					for _, section := range report.Sections {
						results = append(results, section.Result)
					}
					return a.writeResults(cmd, results...)
				}
				if err := formatter.NewMultiFileFormatter(outputDir, a.format).Format(report); err != nil {
					return fmt.Errorf("failed to format output: %w", err)
				}
				a.logger.Info("Report written", zap.String("dir", outputDir), zap.Int("sections", len(report.Sections)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Output directory for text and markdown reports")
	return cmd
}

func buildReport(ctx context.Context, s *foodstats.Session) (*formatter.Report, error) {
	kpis, err := s.KPIs(ctx)
	if err != nil {
		return nil, err
	}
	report := &formatter.Report{
		Title:  "Food donation report",
		Source: s.Source(),
		Schema: schema.Dataset,
		KPIs:   kpis,
	}
	for _, q := range foodstats.Questions() {
		res, err := s.RunQuery(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		report.Sections = append(report.Sections, formatter.Section{
			Name:   fmt.Sprintf("q%02d_%s", q.ID, slug(q.Title)),
			Result: res,
		})
	}
	for _, v := range foodstats.Views() {
		vr, err := s.RunView(ctx, v.Name, foodstats.ViewOptions{})
		if err != nil {
			return nil, err
		}
		report.Sections = append(report.Sections, formatter.Section{
			Name:   "view_" + v.Name,
			Result: vr.Result,
		})
	}
	return report, nil
}

// slug turns a title into a lower-case file name fragment.
func slug(title string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			srv := server.New(s, server.Options{Timeout: a.cfg.GetQueryTimeout(), Logger: a.logger})
			return srv.ListenAndServe(ctx, a.cfg.HTTP.Addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <csv-dir>",
		Short: "Load CSV exports into the SQL store given by --database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if err := foodstats.Seed(cmd.Context(), a.cfg.Source, args[0], a.logger); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Seeded from %s in %s\n", args[0], time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <csv-dir>",
		Short: "Write the four tables of the source as CSV files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := foodstats.Export(cmd.Context(), a.cfg.Source, args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", args[0])
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
