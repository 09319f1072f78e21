// Package editor implements the database editor: the entry point that opens
// views, finalizes rows and routes every mutation of a database through its
// shared document.
package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/loader"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
	"github.com/maruel/viewdb/internal/rowcache"
	"github.com/maruel/viewdb/internal/scheduler"
	"github.com/maruel/viewdb/internal/view"
)

// Options tunes an Editor. Zero values select the defaults.
type Options struct {
	// BlockingThreshold is the row count under which OpenView filters and
	// sorts before returning.
	BlockingThreshold int
	// OpenTimeout bounds how long OpenView waits for the load.
	OpenTimeout time.Duration
	// FinalizeWait bounds how long InitDatabaseRow waits for a view load.
	FinalizeWait time.Duration
	// CloseGrace is the delay between CloseDatabase and the release of the
	// finalized rows.
	CloseGrace time.Duration
	// CacheCapacity is the number of rows kept finalized.
	CacheCapacity int
	// Debounce is the coalescing window of calculation and row meta
	// notifications.
	Debounce time.Duration

	Loader loader.Options
	// Finalizer attaches cloud sync; defaults to an in-process CloudSync.
	Finalizer document.Finalizer
	// Sink receives notifications; defaults to notify.Discard.
	Sink notify.Sink
}

// Defaults.
const (
	DefaultBlockingThreshold = 50
	DefaultOpenTimeout       = 60 * time.Second
	DefaultFinalizeWait      = 10 * time.Second
	DefaultCloseGrace        = 30 * time.Second
)

func (o *Options) setDefaults() {
	if o.BlockingThreshold <= 0 {
		o.BlockingThreshold = DefaultBlockingThreshold
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = DefaultOpenTimeout
	}
	if o.FinalizeWait <= 0 {
		o.FinalizeWait = DefaultFinalizeWait
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = DefaultCloseGrace
	}
	if o.CacheCapacity <= 0 {
		o.CacheCapacity = rowcache.DefaultCapacity
	}
	if o.Finalizer == nil {
		o.Finalizer = document.NewCloudSync()
	}
	if o.Sink == nil {
		o.Sink = notify.Discard
	}
}

// Editor is the database editor. It is safe for concurrent use.
type Editor struct {
	doc       *document.Document
	opts      Options
	debouncer *notify.Debouncer
	sink      notify.Sink
	views     *view.Registry
	cache     *rowcache.Cache
	loader    *loader.Loader
	sched     *scheduler.Scheduler

	opens      singleflight.Group
	finalizing singleflight.Group
	gate       loadGate

	mu         sync.Mutex
	cancelLoad context.CancelFunc
	closeTimer *time.Timer
}

// New returns the editor of doc.
func New(doc *document.Document, opts Options) *Editor {
	opts.setDefaults()
	e := &Editor{doc: doc, opts: opts, sched: scheduler.New()}
	e.debouncer = notify.NewDebouncer(opts.Sink, opts.Debounce, notify.DidUpdateCalculation, notify.DidUpdateRowMeta)
	e.sink = e.debouncer
	e.views = view.NewRegistry(doc, e.sink)
	e.cache = rowcache.New(opts.CacheCapacity, func(id model.RowID) (rowcache.Handle, bool) {
		h, ok := doc.LiveRow(id)
		if !ok {
			return nil, false
		}
		return h, true
	})
	e.loader = loader.New(e.fetchRow, e.sched, opts.Loader)
	return e
}

// Document returns the shared document.
func (e *Editor) Document() *document.Document {
	return e.doc
}

// Close stops background work and releases every finalized row.
func (e *Editor) Close() error {
	e.mu.Lock()
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}
	e.mu.Unlock()
	e.CloseAllViews()
	e.sched.Close()
	e.debouncer.Close()
	e.cache.InvalidateAll()
	return nil
}

func (e *Editor) fetchRow(ctx context.Context, id model.RowID) (*model.Row, error) {
	h, err := e.doc.InitRow(ctx, id)
	if err != nil {
		return nil, err
	}
	r, ok := h.Row()
	if !ok {
		return nil, errors.RecordNotFound("row", string(id))
	}
	return r, nil
}

// InitDatabaseRow materializes a row and attaches cloud sync to it. It
// first waits, up to FinalizeWait, for any view load in progress. Concurrent
// calls for the same row share one finalization.
func (e *Editor) InitDatabaseRow(ctx context.Context, id model.RowID) (*document.DatabaseRow, error) {
	if !e.gate.wait(ctx, e.opts.FinalizeWait) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Cancelled("init row").Wrap(err)
		}
		slog.WarnContext(ctx, "Finalizing row while a view is still loading", "row_id", id)
	}
	v, err, _ := e.finalizing.Do(string(id), func() (any, error) {
		h, err := e.doc.InitRow(ctx, id)
		if err != nil {
			return nil, err
		}
		if e.cache.Contains(id) && h.HasCloudSync() {
			return h, nil
		}
		if err := e.opts.Finalizer.Finalize(ctx, h); err != nil {
			return nil, err
		}
		e.cache.Insert(id)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*document.DatabaseRow), nil
}

// FinalizedRows returns the IDs of the finalized rows, most recently used
// first.
func (e *Editor) FinalizedRows() []model.RowID {
	return e.cache.Keys()
}

// loadGate tracks view loads in progress.
type loadGate struct {
	mu     sync.Mutex
	active int
	idle   chan struct{}
}

func (g *loadGate) begin() {
	g.mu.Lock()
	if g.active == 0 {
		g.idle = make(chan struct{})
	}
	g.active++
	g.mu.Unlock()
}

func (g *loadGate) end() {
	g.mu.Lock()
	if g.active--; g.active == 0 {
		close(g.idle)
	}
	g.mu.Unlock()
}

// wait blocks until no load is in progress. Returns false on timeout or
// cancellation.
func (g *loadGate) wait(ctx context.Context, d time.Duration) bool {
	g.mu.Lock()
	if g.active == 0 {
		g.mu.Unlock()
		return true
	}
	idle := g.idle
	g.mu.Unlock()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-idle:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// send publishes an editor level notification.
func (e *Editor) send(objectID string, kind notify.Kind, payload any) {
	e.sink.Send(notify.New(objectID, kind, payload))
}

// refreshCalculations recomputes, in the background, the aggregates of the
// open views.
func (e *Editor) refreshCalculations(fieldID string) {
	for _, v := range e.views.All() {
		if fieldID != "" && !hasCalculation(v, fieldID) {
			continue
		}
		e.sched.Submit("refresh calculations "+v.ID(), func(ctx context.Context) {
			if _, err := v.RefreshCalculations(); err != nil {
				slog.WarnContext(ctx, "Failed to refresh calculations", "view_id", v.ID(), "err", err)
			}
		})
	}
}

func hasCalculation(v *view.Editor, fieldID string) bool {
	for _, c := range v.Calculations() {
		if c.FieldID == fieldID {
			return true
		}
	}
	return false
}

// viewEditor returns the editor of a view. A view never opened gets its
// row cache filled from the document.
func (e *Editor) viewEditor(ctx context.Context, viewID string) (*view.Editor, error) {
	v, err := e.views.GetOrInit(ctx, viewID)
	if err != nil {
		return nil, err
	}
	if v.LoadState() == view.LoadIdle && len(v.RowOrders()) == 0 {
		e.fillCache(v)
	}
	return v, nil
}

func (e *Editor) fillCache(v *view.Editor) {
	var orders []model.RowOrder
	var rows []*model.Row
	e.doc.Read(func(s *document.State) {
		orders, _ = s.RowOrders(v.ID())
		for _, o := range orders {
			if r, ok := s.Row(o.ID); ok {
				rows = append(rows, r)
			}
		}
	})
	v.SetRowOrders(orders)
	v.CacheRows(rows)
}
