// Provides filtering of view rows.

package view

import (
	"slices"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
)

// FilterChangeset is one edit of a view's filter tree. Exactly one member
// is set.
type FilterChangeset struct {
	Insert *InsertFilter `json:"insert,omitempty"`
	Update *model.Filter `json:"update,omitempty"`
	Delete string        `json:"delete,omitempty"`
}

// InsertFilter adds a filter at the top level or under an and/or node.
type InsertFilter struct {
	ParentID string       `json:"parent_id,omitempty"`
	Filter   model.Filter `json:"filter"`
}

// Filters returns the view's filter tree.
func (e *Editor) Filters() []model.Filter {
	v, err := e.View()
	if err != nil {
		return nil
	}
	return v.Filters
}

// Filter returns one filter of the tree.
func (e *Editor) Filter(id string) (*model.Filter, error) {
	filters := e.Filters()
	for i := range filters {
		if f := filters[i].Find(id); f != nil {
			return f, nil
		}
	}
	return nil, errors.RecordNotFound("filter", id)
}

// HasFilters reports whether any filter is configured.
func (e *Editor) HasFilters() bool {
	return len(e.Filters()) != 0
}

// ModifyFilters applies a changeset. Changes leaving the tree identical are
// no-ops and send nothing. Returns whether the tree changed.
func (e *Editor) ModifyFilters(cs FilterChangeset) (bool, error) {
	changed := false
	var after []model.Filter
	err := e.updateView(func(v *model.View) error {
		before := model.ContentHash(v.Filters)
		filters, err := applyFilterChangeset(v.Filters, cs)
		if err != nil {
			return err
		}
		if model.ContentHash(filters) == before {
			return errors.Unchanged
		}
		v.Filters = filters
		after = filters
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}
	e.refreshVisibility()
	e.send(notify.DidUpdateFilter, after)
	return true, nil
}

func applyFilterChangeset(filters []model.Filter, cs FilterChangeset) ([]model.Filter, error) {
	filters = cloneFilters(filters)
	switch {
	case cs.Insert != nil:
		f := cs.Insert.Filter
		if f.ID == "" {
			f.ID = model.NewID()
		}
		if f.Type == "" {
			f.Type = model.FilterData
		}
		if cs.Insert.ParentID == "" {
			return append(filters, f), nil
		}
		for i := range filters {
			if p := filters[i].Find(cs.Insert.ParentID); p != nil {
				if p.Type == model.FilterData {
					return nil, errors.InvalidData("filter " + p.ID + " cannot have children")
				}
				p.Children = append(p.Children, f)
				return filters, nil
			}
		}
		return nil, errors.RecordNotFound("filter", cs.Insert.ParentID)
	case cs.Update != nil:
		for i := range filters {
			if f := filters[i].Find(cs.Update.ID); f != nil {
				f.FieldID = cs.Update.FieldID
				f.Condition = cs.Update.Condition
				f.Content = cs.Update.Content
				if cs.Update.Type != "" {
					f.Type = cs.Update.Type
				}
				return filters, nil
			}
		}
		return nil, errors.RecordNotFound("filter", cs.Update.ID)
	case cs.Delete != "":
		out, ok := deleteFilter(filters, cs.Delete)
		if !ok {
			return nil, errors.RecordNotFound("filter", cs.Delete)
		}
		return out, nil
	}
	return filters, nil
}

func deleteFilter(filters []model.Filter, id string) ([]model.Filter, bool) {
	for i := range filters {
		if filters[i].ID == id {
			return slices.Delete(filters, i, i+1), true
		}
		if children, ok := deleteFilter(filters[i].Children, id); ok {
			filters[i].Children = children
			return filters, true
		}
	}
	return filters, false
}

func cloneFilters(in []model.Filter) []model.Filter {
	v := model.View{Filters: in}
	return v.Clone().Filters
}

// FilterRows returns the rows passing the filters, in the same order.
func (e *Editor) FilterRows(rows []*model.Row) []*model.Row {
	filters := e.Filters()
	if len(filters) == 0 {
		return rows
	}
	fields := e.fields()
	out := make([]*model.Row, 0, len(rows))
	for _, r := range rows {
		if matchesFilters(r, filters, fields) {
			out = append(out, r)
		}
	}
	return out
}

// FilterRowsAndNotify filters rows in place and announces the rows that
// became invisible.
func (e *Editor) FilterRowsAndNotify(rows *[]*model.Row) {
	filters := e.Filters()
	if len(filters) == 0 {
		return
	}
	fields := e.fields()
	var change RowsVisibility
	kept := (*rows)[:0]
	e.mu.Lock()
	for _, r := range *rows {
		ok := matchesFilters(r, filters, fields)
		if !ok {
			change.Invisible = append(change.Invisible, r.ID)
		}
		e.visible[r.ID] = ok
		if ok {
			kept = append(kept, r)
		}
	}
	e.mu.Unlock()
	clear((*rows)[len(kept):])
	*rows = kept
	if len(change.Invisible) != 0 {
		e.send(notify.DidUpdateViewRowsVisibility, change)
	}
}

// refreshVisibility recomputes visibility of cached rows after a filter
// change and announces the differences.
func (e *Editor) refreshVisibility() {
	rows := e.CachedRows()
	filters := e.Filters()
	fields := e.fields()
	var change RowsVisibility
	e.mu.Lock()
	for i, r := range rows {
		now := len(filters) == 0 || matchesFilters(r, filters, fields)
		was, seen := e.visible[r.ID]
		if !seen {
			was = true
		}
		e.visible[r.ID] = now
		switch {
		case now && !was:
			change.Visible = append(change.Visible, InsertedRow{RowID: r.ID, Index: i})
		case !now && was:
			change.Invisible = append(change.Invisible, r.ID)
		}
	}
	e.mu.Unlock()
	if len(change.Visible) != 0 || len(change.Invisible) != 0 {
		e.send(notify.DidUpdateViewRowsVisibility, change)
	}
}

// matchesFilters checks if a row matches all top level filters.
func matchesFilters(r *model.Row, filters []model.Filter, fields map[string]*model.Field) bool {
	for i := range filters {
		if !matchesFilter(r, &filters[i], fields) {
			return false
		}
	}
	return true
}

// matchesFilter checks if a row matches a single filter node.
func matchesFilter(r *model.Row, f *model.Filter, fields map[string]*model.Field) bool {
	switch f.Type {
	case model.FilterAnd:
		for i := range f.Children {
			if !matchesFilter(r, &f.Children[i], fields) {
				return false
			}
		}
		return true
	case model.FilterOr:
		if len(f.Children) == 0 {
			return true
		}
		for i := range f.Children {
			if matchesFilter(r, &f.Children[i], fields) {
				return true
			}
		}
		return false
	}
	field, ok := fields[f.FieldID]
	if !ok {
		// Filters on unknown fields do not hide anything.
		return true
	}
	h, err := fieldtype.For(field.Type)
	if err != nil {
		return true
	}
	opt := field.TypeOption()
	if opt == nil {
		opt = fieldtype.DefaultTypeOption(field.Type)
	}
	return h.Match(f, fieldtype.ReadCell(r, field), opt)
}
