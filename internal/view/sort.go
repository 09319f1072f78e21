// Provides sorting of view rows.

package view

import (
	"slices"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
)

// UpdateSortParams creates or updates a sort. An empty ID creates one,
// unless a sort on the same field exists.
type UpdateSortParams struct {
	ID        string              `json:"id,omitempty"`
	FieldID   string              `json:"field_id"`
	Condition model.SortCondition `json:"condition"`
}

// Sorts returns the view's sorts in priority order.
func (e *Editor) Sorts() []model.Sort {
	v, err := e.View()
	if err != nil {
		return nil
	}
	return v.Sorts
}

// HasSorts reports whether any sort is configured.
func (e *Editor) HasSorts() bool {
	return len(e.Sorts()) != 0
}

func (e *Editor) sortsReference(fieldID string) bool {
	return slices.ContainsFunc(e.Sorts(), func(s model.Sort) bool { return s.FieldID == fieldID })
}

// CreateOrUpdateSort adds or changes a sort.
func (e *Editor) CreateOrUpdateSort(p UpdateSortParams) (model.Sort, error) {
	if _, ok := e.field(p.FieldID); !ok {
		return model.Sort{}, errors.RecordNotFound("field", p.FieldID)
	}
	if p.Condition == "" {
		p.Condition = model.SortAscending
	}
	var out model.Sort
	changed := false
	err := e.updateView(func(v *model.View) error {
		i := slices.IndexFunc(v.Sorts, func(s model.Sort) bool {
			return (p.ID != "" && s.ID == p.ID) || (p.ID == "" && s.FieldID == p.FieldID)
		})
		if i < 0 {
			if p.ID != "" {
				return errors.RecordNotFound("sort", p.ID)
			}
			out = model.Sort{ID: model.NewID(), FieldID: p.FieldID, Condition: p.Condition}
			v.Sorts = append(v.Sorts, out)
			changed = true
			return nil
		}
		out = model.Sort{ID: v.Sorts[i].ID, FieldID: p.FieldID, Condition: p.Condition}
		if v.Sorts[i] == out {
			return errors.Unchanged
		}
		v.Sorts[i] = out
		changed = true
		return nil
	})
	if err != nil {
		return model.Sort{}, err
	}
	if changed {
		e.didUpdateSorts()
	}
	return out, nil
}

// ReorderSort moves a sort to the position of another.
func (e *Editor) ReorderSort(fromID, toID string) error {
	changed := false
	err := e.updateView(func(v *model.View) error {
		fi := slices.IndexFunc(v.Sorts, func(s model.Sort) bool { return s.ID == fromID })
		ti := slices.IndexFunc(v.Sorts, func(s model.Sort) bool { return s.ID == toID })
		if fi < 0 {
			return errors.RecordNotFound("sort", fromID)
		}
		if ti < 0 {
			return errors.RecordNotFound("sort", toID)
		}
		if fi == ti {
			return errors.Unchanged
		}
		s := v.Sorts[fi]
		v.Sorts = slices.Delete(v.Sorts, fi, fi+1)
		v.Sorts = slices.Insert(v.Sorts, ti, s)
		changed = true
		return nil
	})
	if err == nil && changed {
		e.didUpdateSorts()
	}
	return err
}

// DeleteSort removes a sort.
func (e *Editor) DeleteSort(id string) error {
	err := e.updateView(func(v *model.View) error {
		n := len(v.Sorts)
		v.Sorts = slices.DeleteFunc(v.Sorts, func(s model.Sort) bool { return s.ID == id })
		if len(v.Sorts) == n {
			return errors.RecordNotFound("sort", id)
		}
		return nil
	})
	if err == nil {
		e.didUpdateSorts()
	}
	return err
}

// DeleteAllSorts removes every sort.
func (e *Editor) DeleteAllSorts() error {
	changed := false
	err := e.updateView(func(v *model.View) error {
		if len(v.Sorts) == 0 {
			return errors.Unchanged
		}
		v.Sorts = nil
		changed = true
		return nil
	})
	if err == nil && changed {
		e.didUpdateSorts()
	}
	return err
}

func (e *Editor) didUpdateSorts() {
	e.send(notify.DidUpdateSort, e.Sorts())
	rows := e.VisibleRows()
	if len(rows) == 0 {
		return
	}
	e.SortRowsAndNotify(&rows)
}

// SortRows returns the rows ordered by the sorts. Empty cells go last
// whatever the direction; ties keep their input order.
func (e *Editor) SortRows(rows []*model.Row) []*model.Row {
	out := slices.Clone(rows)
	sortRows(out, e.Sorts(), e.fields())
	return out
}

// SortRowsAndNotify sorts rows in place and announces the new order.
func (e *Editor) SortRowsAndNotify(rows *[]*model.Row) {
	sorts := e.Sorts()
	if len(sorts) == 0 {
		return
	}
	sortRows(*rows, sorts, e.fields())
	ids := make([]model.RowID, len(*rows))
	for i, r := range *rows {
		ids[i] = r.ID
	}
	e.send(notify.DidReorderRows, ReorderAllRows{RowOrders: ids})
}

// sortRows sorts rows in place by the given sort criteria.
func sortRows(rows []*model.Row, sorts []model.Sort, fields map[string]*model.Field) {
	type key struct {
		field *model.Field
		h     fieldtype.Handler
		opt   model.TypeOptionData
		desc  bool
	}
	var keys []key
	for _, s := range sorts {
		f, ok := fields[s.FieldID]
		if !ok {
			continue
		}
		h, err := fieldtype.For(f.Type)
		if err != nil {
			continue
		}
		opt := f.TypeOption()
		if opt == nil {
			opt = fieldtype.DefaultTypeOption(f.Type)
		}
		keys = append(keys, key{field: f, h: h, opt: opt, desc: s.Condition == model.SortDescending})
	}
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b *model.Row) int {
		for _, k := range keys {
			ca, cb := fieldtype.ReadCell(a, k.field), fieldtype.ReadCell(b, k.field)
			ea, eb := k.h.IsEmpty(ca), k.h.IsEmpty(cb)
			switch {
			case ea && eb:
				continue
			case ea:
				return 1
			case eb:
				return -1
			}
			c := k.h.Compare(ca, cb, k.opt)
			if c != 0 {
				if k.desc {
					return -c
				}
				return c
			}
		}
		return 0
	})
}
