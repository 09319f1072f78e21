// Package loader materializes the rows of a view in chunks and applies the
// view's filters and sorts to them.
package loader

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/scheduler"
)

// DefaultChunkSize is the number of rows materialized per chunk.
const DefaultChunkSize = 10

// FetchFunc materializes one row.
type FetchFunc func(ctx context.Context, id model.RowID) (*model.Row, error)

// View is the view editor the loaded rows are cached into.
type View interface {
	ID() string
	CacheRows(rows []*model.Row)
	HasFilters() bool
	HasSorts() bool
	FilterRows(rows []*model.Row) []*model.Row
	SortRows(rows []*model.Row) []*model.Row
	FilterRowsAndNotify(rows *[]*model.Row)
	SortRowsAndNotify(rows *[]*model.Row)
	Regroup()
	RefreshCalculations() ([]model.Calculation, error)
}

// Options tunes the loader.
type Options struct {
	// ChunkSize is the number of rows per chunk; 0 means DefaultChunkSize.
	ChunkSize int
	// Concurrency bounds the rows fetched at once within a chunk; 0 means
	// the chunk size.
	Concurrency int
	// RowsPerSecond paces fetches; 0 disables pacing.
	RowsPerSecond float64
}

// Request is one load of a view.
type Request struct {
	View   View
	Orders []model.RowOrder
	// Blocking applies filters and sorts as pure transforms before
	// delivering the rows. Otherwise they are applied in place and the
	// changes announced to the view's observers.
	Blocking bool
}

// Result is delivered once per load.
type Result struct {
	Rows []*model.Row
	Err  error
}

// Loader runs row loads.
type Loader struct {
	fetch   FetchFunc
	sched   *scheduler.Scheduler
	chunk   int
	workers int
	limiter *rate.Limiter
}

// New returns a loader fetching rows with fetch. sched runs the
// calculation refresh after each load; it may be nil.
func New(fetch FetchFunc, sched *scheduler.Scheduler, opts Options) *Loader {
	l := &Loader{fetch: fetch, sched: sched, chunk: opts.ChunkSize, workers: opts.Concurrency}
	if l.chunk <= 0 {
		l.chunk = DefaultChunkSize
	}
	if l.workers <= 0 {
		l.workers = l.chunk
	}
	if opts.RowsPerSecond > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(opts.RowsPerSecond), l.chunk)
	}
	return l
}

// Start runs the load in the background. The returned channel receives
// exactly one Result.
func (l *Loader) Start(ctx context.Context, req Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		rows, err := l.Load(ctx, req)
		ch <- Result{Rows: rows, Err: err}
	}()
	return ch
}

// Load materializes the rows of req. Rows that fail to load are logged and
// left out. Cancellation of ctx discards everything loaded so far.
func (l *Loader) Load(ctx context.Context, req Request) ([]*model.Row, error) {
	start := time.Now()
	ids := model.RowOrderIDs(req.Orders)
	rows := make([]*model.Row, 0, len(ids))
	for i := 0; i < len(ids); i += l.chunk {
		chunk := ids[i:min(i+l.chunk, len(ids))]
		if l.limiter != nil {
			if err := l.limiter.WaitN(ctx, len(chunk)); err != nil {
				return nil, errors.Cancelled("load rows").Wrap(err)
			}
		}
		rows = append(rows, l.loadChunk(ctx, chunk)...)
		if err := ctx.Err(); err != nil {
			slog.DebugContext(ctx, "Cancelled row load", "view_id", req.View.ID(), "loaded", len(rows))
			return nil, errors.Cancelled("load rows").Wrap(err)
		}
		runtime.Gosched()
	}

	v := req.View
	v.CacheRows(rows)
	if req.Blocking {
		if v.HasFilters() {
			rows = v.FilterRows(rows)
		}
		if v.HasSorts() {
			rows = v.SortRows(rows)
		}
	} else {
		if v.HasFilters() {
			v.FilterRowsAndNotify(&rows)
		}
		if v.HasSorts() {
			v.SortRowsAndNotify(&rows)
		}
	}
	v.Regroup()
	if l.sched != nil {
		l.sched.Submit("refresh calculations "+v.ID(), func(ctx context.Context) {
			if _, err := v.RefreshCalculations(); err != nil {
				slog.WarnContext(ctx, "Failed to refresh calculations", "view_id", v.ID(), "err", err)
			}
		})
	}
	slog.DebugContext(ctx, "Loaded rows", "view_id", v.ID(), "rows", len(rows), "of", len(ids), "blocking", req.Blocking, "dur", time.Since(start).Round(time.Millisecond))
	return rows, nil
}

// loadChunk fetches the rows of one chunk concurrently and returns the
// ones that loaded, in chunk order.
func (l *Loader) loadChunk(ctx context.Context, ids []model.RowID) []*model.Row {
	got := make([]*model.Row, len(ids))
	var g errgroup.Group
	g.SetLimit(l.workers)
	for i, id := range ids {
		g.Go(func() error {
			r, err := l.fetch(ctx, id)
			if err != nil {
				slog.WarnContext(ctx, "Failed to load row", "row_id", id, "err", err)
				return nil
			}
			got[i] = r
			return nil
		})
	}
	_ = g.Wait()
	out := got[:0]
	for _, r := range got {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
