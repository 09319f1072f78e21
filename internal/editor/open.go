// View lifecycle: open, close and the delayed release of finalized rows.

package editor

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/loader"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
	"github.com/maruel/viewdb/internal/view"
)

// ViewSnapshot is the content of an opened view.
type ViewSnapshot struct {
	ViewID string         `json:"view_id"`
	Fields []*model.Field `json:"fields"`
	Rows   []*model.Row   `json:"rows"`
	// Complete is true when the rows are already filtered and sorted.
	// Otherwise they are in storage order and the view's observers are
	// notified once filtering and sorting are applied.
	Complete bool `json:"complete"`
}

// OpenView opens a view and returns its rows. Concurrent opens of the same
// view share one load and observe the same result.
//
// Views with fewer rows than BlockingThreshold, or opened with a non-nil
// finish channel, are loaded completely before returning. Larger views
// return their rows in storage order right away and converge through
// notifications. finish is closed once this caller's result is available.
func (e *Editor) OpenView(ctx context.Context, viewID string, finish chan<- struct{}) (*ViewSnapshot, error) {
	if finish != nil {
		defer close(finish)
	}
	e.stopCloseTimer()
	v, err := e.views.GetOrInit(ctx, viewID)
	if err != nil {
		return nil, err
	}
	ch := e.opens.DoChan(viewID, func() (any, error) {
		return e.open(v, finish != nil)
	})
	t := time.NewTimer(e.opts.OpenTimeout)
	defer t.Stop()
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap := *res.Val.(*ViewSnapshot)
		snap.Rows = slices.Clone(snap.Rows)
		snap.Fields = slices.Clone(snap.Fields)
		return &snap, nil
	case <-t.C:
		slog.WarnContext(ctx, "Timed out opening view", "view_id", viewID, "timeout", e.opts.OpenTimeout)
		v.SetLoadState(view.LoadTimedOut)
		return nil, errors.Timeout("open view " + viewID)
	case <-ctx.Done():
		return nil, errors.Cancelled("open view").Wrap(ctx.Err())
	}
}

// open runs one load of a view; it is the body of the single flight.
func (e *Editor) open(v *view.Editor, wantFinish bool) (*ViewSnapshot, error) {
	ctx := e.newLoadContext()
	v.SetLoadState(view.LoadLoading)
	var orders []model.RowOrder
	var fields []*model.Field
	var storage []*model.Row
	e.doc.Read(func(s *document.State) {
		orders, _ = s.RowOrders(v.ID())
		fields = s.FieldsInView(v.ID(), nil)
		for _, o := range orders {
			if r, ok := s.Row(o.ID); ok {
				storage = append(storage, r)
			}
		}
	})
	v.SetRowOrders(orders)
	snap := &ViewSnapshot{ViewID: v.ID(), Fields: fields}
	blocking := len(orders) < e.opts.BlockingThreshold || wantFinish
	req := loader.Request{View: v, Orders: orders, Blocking: blocking}

	e.gate.begin()
	if blocking {
		defer e.gate.end()
		rows, err := e.loader.Load(ctx, req)
		if err != nil {
			v.SetLoadState(view.LoadCancelled)
			return nil, err
		}
		v.SetLoadState(view.LoadReady)
		snap.Rows = rows
		snap.Complete = true
		return snap, nil
	}
	done := e.loader.Start(ctx, req)
	go func() {
		defer e.gate.end()
		if res := <-done; res.Err != nil {
			v.SetLoadState(view.LoadCancelled)
			return
		}
		v.SetLoadState(view.LoadReady)
	}()
	snap.Rows = storage
	return snap, nil
}

// newLoadContext cancels the load in progress, if any, and returns the
// context of the next one.
func (e *Editor) newLoadContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	e.cancelLoad = cancel
	e.mu.Unlock()
	return ctx
}

func (e *Editor) stopCloseTimer() {
	e.mu.Lock()
	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}
	e.mu.Unlock()
}

// CloseView closes one view. Its settings stay persisted.
func (e *Editor) CloseView(viewID string) {
	e.views.Remove(viewID)
}

// CloseAllViews closes every open view.
func (e *Editor) CloseAllViews() {
	for _, v := range e.views.All() {
		e.views.Remove(v.ID())
	}
}

// NumOfOpeningViews returns the number of open views.
func (e *Editor) NumOfOpeningViews() int {
	return e.views.Len()
}

// LoadState returns the progress of the latest open of a view.
func (e *Editor) LoadState(viewID string) view.LoadState {
	if v, ok := e.views.Get(viewID); ok {
		return v.LoadState()
	}
	return view.LoadIdle
}

// DeleteDatabaseView deletes a view.
func (e *Editor) DeleteDatabaseView(ctx context.Context, viewID string) error {
	if err := e.doc.Write(func(s *document.State) error { return s.DeleteView(viewID) }); err != nil {
		return err
	}
	e.views.Remove(viewID)
	e.send(viewID, notify.DidDeleteView, viewID)
	slog.InfoContext(ctx, "Deleted view", "view_id", viewID)
	return nil
}

// CloseDatabase cancels the load in progress and closes every view. The
// finalized rows are released after CloseGrace unless a view is opened
// before.
func (e *Editor) CloseDatabase(ctx context.Context) {
	e.CloseAllViews()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	if e.closeTimer != nil {
		e.closeTimer.Stop()
	}
	grace := e.opts.CloseGrace
	var t *time.Timer
	t = time.AfterFunc(grace, func() {
		e.mu.Lock()
		current := e.closeTimer == t
		if current {
			e.closeTimer = nil
		}
		e.mu.Unlock()
		if !current {
			return
		}
		n := e.cache.Len()
		e.cache.InvalidateAll()
		slog.Info("Released finalized rows", "database_id", e.doc.ID(), "rows", n)
	})
	e.closeTimer = t
	slog.DebugContext(ctx, "Closed database", "database_id", e.doc.ID(), "grace", grace)
}
