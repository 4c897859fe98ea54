// Package db answers dataset queries from a SQL store.
//
// Plans are compiled to one SELECT per call in the store's dialect. Ad-hoc
// SQL is checked by CheckAdhoc and then run in a read-only scope.
package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/result"
	"github.com/tordrt/foodstats/internal/snapshot"
)

// Backend executes plans on a SQL store.
type Backend struct {
	client  Client
	missing map[plan.Column]bool
	logger  *zap.Logger
}

// NewBackend inspects the store and returns a backend over it. The backend
// takes ownership of client. A nil logger disables logging.
func NewBackend(ctx context.Context, client Client, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named(client.Dialect().Name())

	missing, err := Inspect(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", plan.ErrDataAccess, err)
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for col := range missing {
			names = append(names, col.String())
		}
		sort.Strings(names)
		logger.Info("Optional columns missing from store", zap.Strings("columns", names))
	}
	return &Backend{client: client, missing: missing, logger: logger}, nil
}

// Name identifies the backend in logs and metrics.
func (b *Backend) Name() string {
	return b.client.Dialect().Name()
}

// Execute compiles p and runs it.
func (b *Backend) Execute(ctx context.Context, p *plan.Plan, env plan.Env) (*result.Result, error) {
	start := time.Now()
	c := &compiler{dialect: b.client.Dialect(), missing: b.missing}
	query, args, err := c.compile(p, env)
	if err != nil {
		return nil, err
	}

	res, err := b.run(ctx, b.client, query, args, func(rows Rows) (*result.Result, error) {
		return scanPlan(rows, p)
	})
	if err != nil {
		err = fmt.Errorf("%w: %w", plan.ErrDataAccess, err)
	}
	b.log("Plan executed", start, query, res, err)
	return res, err
}

// Adhoc runs a checked SELECT in a read-only scope. Errors the store
// reports about the statement itself surface as syntax errors.
func (b *Backend) Adhoc(ctx context.Context, query string, _ plan.Env) (*result.Result, error) {
	start := time.Now()
	if err := CheckAdhoc(query); err != nil {
		b.log("Ad-hoc query rejected", start, query, nil, err)
		return nil, err
	}

	var res *result.Result
	err := b.client.ReadOnly(ctx, func(q Querier) error {
		var err error
		res, err = b.run(ctx, q, query, nil, scanAny)
		return err
	})
	switch {
	case err == nil:
	case isStatementError(err):
		err = plan.Syntaxf(-1, "%v", err)
	default:
		err = fmt.Errorf("%w: %w", plan.ErrDataAccess, err)
	}
	b.log("Ad-hoc query executed", start, query, res, err)
	return res, err
}

// Close closes the client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) run(ctx context.Context, q Querier, query string, args []any, scan func(Rows) (*result.Result, error)) (*result.Result, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scan(rows)
}

func (b *Backend) log(msg string, start time.Time, query string, res *result.Result, err error) {
	fields := []zap.Field{
		zap.String("call_id", uuid.NewString()),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("query", query),
	}
	if err != nil {
		b.logger.Warn(msg, append(fields, zap.Error(err))...)
		return
	}
	b.logger.Debug(msg, append(fields, zap.Int("rows", res.Len()))...)
}

// scanPlan reads the rows of a compiled plan, normalizing each value to
// its field's kind and dropping hidden fields.
func scanPlan(rows Rows, p *plan.Plan) (*result.Result, error) {
	res := result.New(p.OutputColumns()...)
	values := make([]any, len(p.Fields))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]any, 0, len(res.Columns))
		for i, f := range p.Fields {
			if f.Hidden {
				continue
			}
			v, err := snapshot.Normalize(f.Kind(), unwrapNumeric(values[i]))
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", f.Name, err)
			}
			row = append(row, v)
		}
		res.Append(row...)
	}
	return res, rows.Err()
}

// scanAny reads rows of unknown shape.
func scanAny(rows Rows) (*result.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := result.New(cols...)
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = adhocValue(v)
		}
		res.Append(values...)
	}
	return res, rows.Err()
}

// adhocValue maps driver values onto int64, float64, string, bool or nil.
func adhocValue(v any) any {
	switch x := v.(type) {
	case nil, int64, float64, string, bool:
		return x
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return timeText(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		return unwrapNumeric(x)
	}
	return fmt.Sprint(v)
}

// unwrapNumeric turns a PostgreSQL numeric (SUM over integers) into a
// float64; other values pass through.
func unwrapNumeric(v any) any {
	n, ok := v.(pgtype.Numeric)
	if !ok {
		return v
	}
	f, err := n.Float64Value()
	if err != nil || !f.Valid {
		return nil
	}
	return f.Float64
}

// isStatementError reports whether the store rejected the statement itself
// (bad syntax, unknown names, writes in a read-only scope) rather than
// failing to serve it.
func isStatementError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 {
		switch pgErr.Code[:2] {
		case "42", "22", "25", "0A":
			return true
		}
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrError || liteErr.Code == sqlite3.ErrReadonly
	}
	return false
}
