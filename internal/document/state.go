// Accessors used inside Read and Write.

package document

import (
	"slices"
	"time"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// State exposes the document content during Read or Write. Getters return
// copies; mutators panic when called from Read.
type State struct {
	d        *Document
	writable bool
}

func (s *State) mustWrite() {
	if !s.writable {
		panic("document: mutation inside Read")
	}
}

// Now returns the document clock.
func (s *State) Now() time.Time {
	return s.d.now()
}

// Fields returns every field in creation order.
func (s *State) Fields() []*model.Field {
	out := make([]*model.Field, len(s.d.fields))
	for i, f := range s.d.fields {
		out[i] = f.Clone()
	}
	return out
}

// FieldsInView returns the fields in the view's order. Unknown IDs are skipped.
func (s *State) FieldsInView(viewID string, ids []string) []*model.Field {
	v := s.view(viewID)
	var out []*model.Field
	if v == nil {
		return out
	}
	for _, id := range v.FieldOrders {
		if len(ids) != 0 && !slices.Contains(ids, id) {
			continue
		}
		if f := s.field(id); f != nil {
			out = append(out, f.Clone())
		}
	}
	return out
}

// Field returns the field with the given ID.
func (s *State) Field(id string) (*model.Field, bool) {
	f := s.field(id)
	if f == nil {
		return nil, false
	}
	return f.Clone(), true
}

func (s *State) field(id string) *model.Field {
	for _, f := range s.d.fields {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// PrimaryField returns the primary field.
func (s *State) PrimaryField() (*model.Field, bool) {
	for _, f := range s.d.fields {
		if f.IsPrimary {
			return f.Clone(), true
		}
	}
	return nil, false
}

// InsertField adds a field. It is placed according to pos in viewID and
// appended in every other view.
func (s *State) InsertField(f *model.Field, viewID string, pos model.OrderPosition) {
	s.mustWrite()
	s.d.fields = append(s.d.fields, f.Clone())
	for _, v := range s.d.views {
		if v.ID == viewID {
			v.FieldOrders = insertAt(v.FieldOrders, f.ID, pos, func(id string) string { return id })
		} else {
			v.FieldOrders = append(v.FieldOrders, f.ID)
		}
	}
}

// UpdateField mutates a field in place.
func (s *State) UpdateField(id string, fn func(f *model.Field) error) error {
	s.mustWrite()
	f := s.field(id)
	if f == nil {
		return errors.RecordNotFound("field", id)
	}
	c := f.Clone()
	if err := fn(c); err != nil {
		return err
	}
	*f = *c
	return nil
}

// DeleteField removes a field, its cells and every view setting using it.
func (s *State) DeleteField(id string) {
	s.mustWrite()
	s.d.fields = slices.DeleteFunc(s.d.fields, func(f *model.Field) bool { return f.ID == id })
	for _, v := range s.d.views {
		v.FieldOrders = slices.DeleteFunc(v.FieldOrders, func(x string) bool { return x == id })
		v.Filters = slices.DeleteFunc(v.Filters, func(f model.Filter) bool { return f.References(id) })
		v.Sorts = slices.DeleteFunc(v.Sorts, func(x model.Sort) bool { return x.FieldID == id })
		v.Groups = slices.DeleteFunc(v.Groups, func(x model.GroupSetting) bool { return x.FieldID == id })
		v.Calculations = slices.DeleteFunc(v.Calculations, func(x model.Calculation) bool { return x.FieldID == id })
		delete(v.FieldSettings, id)
	}
	for _, r := range s.d.rows {
		delete(r.Cells, id)
	}
}

// MoveField moves a field before or after another one in a view's order.
func (s *State) MoveField(viewID, fromID, toID string) error {
	s.mustWrite()
	v := s.view(viewID)
	if v == nil {
		return errors.RecordNotFound("view", viewID)
	}
	v.FieldOrders = moveItem(v.FieldOrders, fromID, toID, func(x string) string { return x })
	return nil
}

// Views returns every view.
func (s *State) Views() []*model.View {
	out := make([]*model.View, len(s.d.views))
	for i, v := range s.d.views {
		out[i] = v.Clone()
	}
	return out
}

// View returns the view with the given ID.
func (s *State) View(id string) (*model.View, bool) {
	v := s.view(id)
	if v == nil {
		return nil, false
	}
	return v.Clone(), true
}

func (s *State) view(id string) *model.View {
	for _, v := range s.d.views {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// InsertView adds a view. Missing row and field orders are filled from the
// document.
func (s *State) InsertView(v *model.View) {
	s.mustWrite()
	c := v.Clone()
	if c.FieldOrders == nil {
		for _, f := range s.d.fields {
			c.FieldOrders = append(c.FieldOrders, f.ID)
		}
	}
	if c.RowOrders == nil && len(s.d.views) != 0 {
		c.RowOrders = slices.Clone(s.d.views[0].RowOrders)
	}
	s.d.views = append(s.d.views, c)
}

// UpdateView mutates a view in place.
func (s *State) UpdateView(id string, fn func(v *model.View) error) error {
	s.mustWrite()
	v := s.view(id)
	if v == nil {
		return errors.RecordNotFound("view", id)
	}
	c := v.Clone()
	if err := fn(c); err != nil {
		return err
	}
	*v = *c
	return nil
}

// DeleteView removes a view.
func (s *State) DeleteView(id string) error {
	s.mustWrite()
	n := len(s.d.views)
	s.d.views = slices.DeleteFunc(s.d.views, func(v *model.View) bool { return v.ID == id })
	if len(s.d.views) == n {
		return errors.RecordNotFound("view", id)
	}
	return nil
}

// RowOrders returns the row order of a view.
func (s *State) RowOrders(viewID string) ([]model.RowOrder, bool) {
	v := s.view(viewID)
	if v == nil {
		return nil, false
	}
	return slices.Clone(v.RowOrders), true
}

// Row returns a copy of a row body.
func (s *State) Row(id model.RowID) (*model.Row, bool) {
	r, ok := s.d.rows[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// RowCount returns the number of rows in the document.
func (s *State) RowCount() int {
	return len(s.d.rows)
}

// RowMeta returns the metadata of a row, with defaults when none was stored.
func (s *State) RowMeta(id model.RowID) (*model.RowMeta, bool) {
	if _, ok := s.d.rows[id]; !ok {
		return nil, false
	}
	if m, ok := s.d.metas[id]; ok {
		c := *m
		return &c, true
	}
	return &model.RowMeta{ID: id, DocumentID: model.RowDocumentID(id), IsDocumentEmpty: true}, true
}

// UpdateRowMeta mutates the metadata of a row.
func (s *State) UpdateRowMeta(id model.RowID, fn func(m *model.RowMeta)) error {
	s.mustWrite()
	m, ok := s.RowMeta(id)
	if !ok {
		return errors.RecordNotFound("row", string(id))
	}
	fn(m)
	s.d.metas[id] = m
	return nil
}

// CreateRow adds a row to the document. It is placed according to
// params.Position in viewID and appended in every other view. Returns the
// index in viewID.
func (s *State) CreateRow(viewID string, params *model.CreateRowParams) (model.RowOrder, int, error) {
	s.mustWrite()
	v := s.view(viewID)
	if v == nil {
		return model.RowOrder{}, 0, errors.RecordNotFound("view", viewID)
	}
	id := params.ID
	if id == "" {
		id = model.NewRowID()
	}
	if _, ok := s.d.rows[id]; ok {
		return model.RowOrder{}, 0, errors.Internal("row " + string(id) + " already exists")
	}
	now := s.d.now()
	r := &model.Row{ID: id, Cells: map[string]model.Cell{}, Height: params.Height, Visibility: true, Created: now, Modified: now}
	for k, c := range params.Cells {
		r.Cells[k] = c.Clone()
	}
	if r.Height == 0 {
		r.Height = 60
	}
	s.d.rows[id] = r
	meta := &model.RowMeta{ID: id, DocumentID: model.RowDocumentID(id), IsDocumentEmpty: true}
	if params.Meta != nil {
		meta.Icon = params.Meta.Icon
		meta.Cover = params.Meta.Cover
		meta.IsDocumentEmpty = params.Meta.IsDocumentEmpty
		meta.AttachmentCount = params.Meta.AttachmentCount
	}
	s.d.metas[id] = meta
	order := model.RowOrder{ID: id, Height: r.Height}
	for _, other := range s.d.views {
		if other.ID == viewID {
			continue
		}
		other.RowOrders = append(other.RowOrders, order)
	}
	v.RowOrders = insertAt(v.RowOrders, order, params.Position, func(o model.RowOrder) string { return string(o.ID) })
	return order, v.RowIndex(id), nil
}

// UpdateRow mutates a row body and bumps its modification time.
func (s *State) UpdateRow(id model.RowID, fn func(r *model.Row)) error {
	s.mustWrite()
	r, ok := s.d.rows[id]
	if !ok {
		return errors.RecordNotFound("row", string(id))
	}
	if r.Cells == nil {
		r.Cells = map[string]model.Cell{}
	}
	fn(r)
	r.Modified = s.d.now()
	return nil
}

// RemoveRows deletes rows from the document and every view, dropping their
// live handles. Returns the removed bodies.
func (s *State) RemoveRows(ids []model.RowID) []*model.Row {
	s.mustWrite()
	var removed []*model.Row
	for _, id := range ids {
		r, ok := s.d.rows[id]
		if !ok {
			continue
		}
		removed = append(removed, r)
		delete(s.d.rows, id)
		delete(s.d.metas, id)
	}
	for _, v := range s.d.views {
		v.RowOrders = slices.DeleteFunc(v.RowOrders, func(o model.RowOrder) bool { return slices.Contains(ids, o.ID) })
	}
	s.d.dropHandles(ids)
	return removed
}

// MoveRow moves a row before or after another one in a view's order.
func (s *State) MoveRow(viewID string, fromID, toID model.RowID) error {
	s.mustWrite()
	v := s.view(viewID)
	if v == nil {
		return errors.RecordNotFound("view", viewID)
	}
	if v.RowIndex(fromID) < 0 {
		return errors.RecordNotFound("row", string(fromID))
	}
	if v.RowIndex(toID) < 0 {
		return errors.RecordNotFound("row", string(toID))
	}
	v.RowOrders = moveItem(v.RowOrders, string(fromID), string(toID), func(o model.RowOrder) string { return string(o.ID) })
	return nil
}

// insertAt places item in list according to pos.
func insertAt[T any](list []T, item T, pos model.OrderPosition, key func(T) string) []T {
	switch {
	case pos.Start:
		return slices.Insert(list, 0, item)
	case pos.After != "":
		if i := slices.IndexFunc(list, func(x T) bool { return key(x) == pos.After }); i >= 0 {
			return slices.Insert(list, i+1, item)
		}
	case pos.Before != "":
		if i := slices.IndexFunc(list, func(x T) bool { return key(x) == pos.Before }); i >= 0 {
			return slices.Insert(list, i, item)
		}
	}
	return append(list, item)
}

// moveItem moves the item keyed from to the index of the item keyed to.
func moveItem[T any](list []T, from, to string, key func(T) string) []T {
	fi := slices.IndexFunc(list, func(x T) bool { return key(x) == from })
	ti := slices.IndexFunc(list, func(x T) bool { return key(x) == to })
	if fi < 0 || ti < 0 || fi == ti {
		return list
	}
	item := list[fi]
	list = slices.Delete(list, fi, fi+1)
	return slices.Insert(list, ti, item)
}
