// Package view implements the per-view editor: the row cache of an open
// view and the filters, sorts, groups, calculations and layout settings
// applied to it.
package view

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
)

// LoadState is the progress of the latest open of a view.
type LoadState string

const (
	LoadIdle      LoadState = "idle"
	LoadLoading   LoadState = "loading"
	LoadReady     LoadState = "ready"
	LoadTimedOut  LoadState = "timed_out"
	LoadCancelled LoadState = "cancelled"
)

// Editor holds the state of one open view.
type Editor struct {
	id   string
	doc  *document.Document
	sink notify.Sink

	mu        sync.RWMutex
	rowOrders []model.RowOrder
	rows      map[model.RowID]*model.Row
	visible   map[model.RowID]bool
	groups    []*model.Group
	state     LoadState
}

// New returns the editor of an existing view.
func New(id string, doc *document.Document, sink notify.Sink) (*Editor, error) {
	var ok bool
	doc.Read(func(s *document.State) { _, ok = s.View(id) })
	if !ok {
		return nil, errors.RecordNotFound("view", id)
	}
	if sink == nil {
		sink = notify.Discard
	}
	e := &Editor{id: id, doc: doc, sink: sink, rows: map[model.RowID]*model.Row{}, visible: map[model.RowID]bool{}, state: LoadIdle}
	return e, nil
}

// ID returns the view identifier.
func (e *Editor) ID() string {
	return e.id
}

// View returns a snapshot of the persisted view.
func (e *Editor) View() (*model.View, error) {
	var v *model.View
	var ok bool
	e.doc.Read(func(s *document.State) { v, ok = s.View(e.id) })
	if !ok {
		return nil, errors.RecordNotFound("view", e.id)
	}
	return v, nil
}

// fields returns every field keyed by ID.
func (e *Editor) fields() map[string]*model.Field {
	out := map[string]*model.Field{}
	e.doc.Read(func(s *document.State) {
		for _, f := range s.Fields() {
			out[f.ID] = f
		}
	})
	return out
}

func (e *Editor) field(id string) (*model.Field, bool) {
	var f *model.Field
	var ok bool
	e.doc.Read(func(s *document.State) { f, ok = s.Field(id) })
	return f, ok
}

func (e *Editor) updateView(fn func(v *model.View) error) error {
	return e.doc.Write(func(s *document.State) error { return s.UpdateView(e.id, fn) })
}

func (e *Editor) send(kind notify.Kind, payload any) {
	e.sink.Send(notify.New(e.id, kind, payload))
}

// SetLoadState records the progress of the current open.
func (e *Editor) SetLoadState(s LoadState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// LoadState returns the progress of the latest open.
func (e *Editor) LoadState() LoadState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// SetRowOrders replaces the row order of the open view.
func (e *Editor) SetRowOrders(orders []model.RowOrder) {
	e.mu.Lock()
	e.rowOrders = slices.Clone(orders)
	e.mu.Unlock()
}

// RowOrders returns the row order of the open view.
func (e *Editor) RowOrders() []model.RowOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.rowOrders)
}

// CacheRows stores loaded rows in the view's row cache.
func (e *Editor) CacheRows(rows []*model.Row) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rows {
		e.rows[r.ID] = r
		if _, ok := e.visible[r.ID]; !ok {
			e.visible[r.ID] = true
		}
	}
}

// CachedRow returns a cached row.
func (e *Editor) CachedRow(id model.RowID) (*model.Row, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rows[id]
	return r, ok
}

// CachedRows returns the cached rows in view order.
func (e *Editor) CachedRows() []*model.Row {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*model.Row, 0, len(e.rows))
	for _, o := range e.rowOrders {
		if r, ok := e.rows[o.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}

// VisibleRows returns the cached rows passing the filters, in view order.
func (e *Editor) VisibleRows() []*model.Row {
	return e.FilterRows(e.CachedRows())
}

// DidCreateRow registers a row created at index.
func (e *Editor) DidCreateRow(row *model.Row, order model.RowOrder, index int) {
	e.mu.Lock()
	if index < 0 || index > len(e.rowOrders) {
		index = len(e.rowOrders)
	}
	e.rowOrders = slices.Insert(e.rowOrders, index, order)
	e.rows[row.ID] = row
	e.visible[row.ID] = true
	e.mu.Unlock()
	e.send(notify.DidUpdateRow, RowsChanged{Inserted: []InsertedRow{{RowID: row.ID, Index: index}}})
	if gs, field := e.groupSetting(); gs != nil {
		var changes []model.GroupRowsChange
		for _, gid := range groupIDsForRow(field, row) {
			changes = append(changes, model.GroupRowsChange{GroupID: gid, InsertedRows: []model.RowID{row.ID}})
		}
		e.Regroup()
		e.send(notify.DidUpdateGroupRow, changes)
	}
}

// DidDeleteRows drops deleted rows.
func (e *Editor) DidDeleteRows(ids []model.RowID) {
	e.mu.Lock()
	e.rowOrders = slices.DeleteFunc(e.rowOrders, func(o model.RowOrder) bool { return slices.Contains(ids, o.ID) })
	for _, id := range ids {
		delete(e.rows, id)
		delete(e.visible, id)
	}
	e.mu.Unlock()
	e.send(notify.DidUpdateRow, RowsChanged{Deleted: ids})
	if gs, _ := e.groupSetting(); gs != nil {
		e.Regroup()
		e.send(notify.DidUpdateGroups, e.Groups())
	}
}

// DidMoveRow records a row order change made in the document.
func (e *Editor) DidMoveRow(rowID model.RowID, orders []model.RowOrder) {
	e.SetRowOrders(orders)
	e.send(notify.DidReorderSingleRow, ReorderSingleRow{RowID: rowID, NewIndex: slices.IndexFunc(orders, func(o model.RowOrder) bool { return o.ID == rowID })})
}

// DidUpdateRow refreshes the cache and reports visibility, group and order
// changes caused by an update of fieldID.
func (e *Editor) DidUpdateRow(old, updated *model.Row, fieldID string) {
	e.mu.Lock()
	_, known := e.rows[updated.ID]
	if !known && !slices.ContainsFunc(e.rowOrders, func(o model.RowOrder) bool { return o.ID == updated.ID }) {
		// Not part of this view.
		e.mu.Unlock()
		return
	}
	e.rows[updated.ID] = updated
	wasVisible, seen := e.visible[updated.ID]
	if !seen {
		wasVisible = true
	}
	e.mu.Unlock()
	change := UpdatedRow{RowID: updated.ID}
	if fieldID != "" {
		change.FieldIDs = []string{fieldID}
	}
	e.send(notify.DidUpdateRow, RowsChanged{Updated: []UpdatedRow{change}})

	if e.HasFilters() {
		nowVisible := len(e.FilterRows([]*model.Row{updated})) == 1
		e.mu.Lock()
		e.visible[updated.ID] = nowVisible
		e.mu.Unlock()
		if nowVisible != wasVisible {
			change := RowsVisibility{}
			if nowVisible {
				change.Visible = []InsertedRow{{RowID: updated.ID, Index: e.indexOf(updated.ID)}}
			} else {
				change.Invisible = []model.RowID{updated.ID}
			}
			e.send(notify.DidUpdateViewRowsVisibility, change)
		}
	}

	if gs, field := e.groupSetting(); gs != nil && gs.FieldID == fieldID {
		var before []string
		if old != nil {
			before = groupIDsForRow(field, old)
		}
		after := groupIDsForRow(field, updated)
		var changes []model.GroupRowsChange
		for _, g := range before {
			if !slices.Contains(after, g) {
				changes = append(changes, model.GroupRowsChange{GroupID: g, DeletedRows: []model.RowID{updated.ID}})
			}
		}
		for _, g := range after {
			if !slices.Contains(before, g) {
				changes = append(changes, model.GroupRowsChange{GroupID: g, InsertedRows: []model.RowID{updated.ID}})
			}
		}
		e.Regroup()
		if len(changes) != 0 {
			e.send(notify.DidUpdateGroupRow, changes)
		}
	}

	if e.sortsReference(fieldID) {
		rows := e.SortRows(e.VisibleRows())
		newIndex := slices.IndexFunc(rows, func(r *model.Row) bool { return r.ID == updated.ID })
		e.send(notify.DidReorderSingleRow, ReorderSingleRow{RowID: updated.ID, OldIndex: e.indexOf(updated.ID), NewIndex: newIndex})
	}
}

// DidUpdateRowMeta forwards a row metadata change.
func (e *Editor) DidUpdateRowMeta(meta *model.RowMeta) {
	if e.indexOf(meta.ID) < 0 {
		return
	}
	e.send(notify.DidUpdateRowMeta, meta)
}

// DidUpdateField reacts to a field's type or type option change.
func (e *Editor) DidUpdateField(f *model.Field) {
	e.send(notify.DidUpdateField, f)
	if gs, _ := e.groupSetting(); gs != nil && gs.FieldID == f.ID {
		if !groupable(f.Type) {
			_ = e.updateView(func(v *model.View) error {
				v.Groups = nil
				return nil
			})
			e.mu.Lock()
			e.groups = nil
			e.mu.Unlock()
		} else {
			e.Regroup()
		}
		e.send(notify.DidUpdateGroups, e.Groups())
	}
}

// DidDeleteField reacts to a field deletion; the document already dropped
// the settings that referenced it.
func (e *Editor) DidDeleteField(fieldID string) {
	e.mu.Lock()
	for id, r := range e.rows {
		if _, ok := r.Cells[fieldID]; ok {
			c := r.Clone()
			delete(c.Cells, fieldID)
			e.rows[id] = c
		}
	}
	e.mu.Unlock()
	e.Regroup()
	e.send(notify.DidUpdateFields, FieldsChanged{Deleted: []string{fieldID}})
}

// DidCreateField announces a new field.
func (e *Editor) DidCreateField(f *model.Field, index int) {
	e.send(notify.DidUpdateFields, FieldsChanged{Inserted: []InsertedField{{Field: f, Index: index}}})
}

func (e *Editor) indexOf(id model.RowID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.IndexFunc(e.rowOrders, func(o model.RowOrder) bool { return o.ID == id })
}

// Close drops the cached state.
func (e *Editor) Close() {
	e.mu.Lock()
	e.rows = map[model.RowID]*model.Row{}
	e.visible = map[model.RowID]bool{}
	e.groups = nil
	e.rowOrders = nil
	e.state = LoadIdle
	e.mu.Unlock()
	slog.Debug("Closed view", "view_id", e.id)
}

// Registry holds the editors of the open views of a database.
type Registry struct {
	doc  *document.Document
	sink notify.Sink

	mu      sync.Mutex
	editors map[string]*Editor
}

// NewRegistry returns an empty registry.
func NewRegistry(doc *document.Document, sink notify.Sink) *Registry {
	return &Registry{doc: doc, sink: sink, editors: map[string]*Editor{}}
}

// GetOrInit returns the editor of a view, creating it on first use.
func (r *Registry) GetOrInit(ctx context.Context, viewID string) (*Editor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.editors[viewID]; ok {
		return e, nil
	}
	e, err := New(viewID, r.doc, r.sink)
	if err != nil {
		return nil, err
	}
	r.editors[viewID] = e
	slog.DebugContext(ctx, "Opened view editor", "view_id", viewID)
	return e, nil
}

// Get returns the editor of an open view.
func (r *Registry) Get(viewID string) (*Editor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.editors[viewID]
	return e, ok
}

// Remove closes and forgets a view editor.
func (r *Registry) Remove(viewID string) bool {
	r.mu.Lock()
	e, ok := r.editors[viewID]
	delete(r.editors, viewID)
	r.mu.Unlock()
	if ok {
		e.Close()
	}
	return ok
}

// All returns every open editor.
func (r *Registry) All() []*Editor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Editor, 0, len(r.editors))
	for _, e := range r.editors {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Editor) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Len returns the number of open views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.editors)
}
