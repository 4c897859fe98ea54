// Package memory answers dataset queries from an in-memory snapshot.
//
// Plans are interpreted directly over the snapshot tables; ad-hoc queries
// use a small pipeline language that can only read those tables.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tordrt/foodstats/internal/plan"
	"github.com/tordrt/foodstats/internal/result"
	"github.com/tordrt/foodstats/internal/snapshot"
)

// Backend executes plans against the snapshot it owns. Replace swaps the
// snapshot; a running query keeps the one it started with.
type Backend struct {
	mu     sync.RWMutex
	snap   *snapshot.Snapshot
	logger *zap.Logger
}

// NewBackend creates a backend over snap. A nil logger disables logging.
func NewBackend(snap *snapshot.Snapshot, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{snap: snap, logger: logger.Named("memory")}
}

// Name identifies the backend in logs and metrics.
func (b *Backend) Name() string {
	return "memory"
}

// Snapshot returns the current snapshot.
func (b *Backend) Snapshot() *snapshot.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap
}

// Replace swaps in a new snapshot.
func (b *Backend) Replace(snap *snapshot.Snapshot) {
	b.mu.Lock()
	b.snap = snap
	b.mu.Unlock()
	b.logger.Info("Snapshot replaced", zap.String("source", snap.Source))
}

// Execute interprets p over the current snapshot.
func (b *Backend) Execute(ctx context.Context, p *plan.Plan, env plan.Env) (*result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := execute(b.Snapshot(), p, env)
	b.log("Plan executed", start, res, err)
	return res, err
}

// Adhoc parses and runs a pipeline expression such as
//
//	food_listings | where Expiry_Date < today | group Location agg count() as n | sort n desc | limit 5
//
// Malformed expressions fail with a *plan.SyntaxError.
func (b *Backend) Adhoc(ctx context.Context, text string, env plan.Env) (*result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	pl, err := parsePipeline(text)
	if err != nil {
		b.log("Ad-hoc query rejected", start, nil, err)
		return nil, err
	}
	res, err := pl.run(b.Snapshot(), env)
	b.log("Ad-hoc query executed", start, res, err)
	return res, err
}

// Close releases nothing; the snapshot is owned by the caller.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) log(msg string, start time.Time, res *result.Result, err error) {
	fields := []zap.Field{
		zap.String("call_id", uuid.NewString()),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		b.logger.Warn(msg, append(fields, zap.Error(err))...)
		return
	}
	b.logger.Debug(msg, append(fields, zap.Int("rows", res.Len()))...)
}
