// Field operations.

package editor

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
	"github.com/maruel/viewdb/internal/view"
)

// CreateFieldParams describes a field to create.
type CreateFieldParams struct {
	Name string          `json:"name"`
	Type model.FieldType `json:"type"`
	// TypeOption overrides the type's default configuration.
	TypeOption model.TypeOptionData `json:"type_option,omitempty"`
	Position   model.OrderPosition  `json:"position"`
}

// GetField returns a field.
func (e *Editor) GetField(fieldID string) (*model.Field, error) {
	var f *model.Field
	var ok bool
	e.doc.Read(func(s *document.State) { f, ok = s.Field(fieldID) })
	if !ok {
		return nil, errors.RecordNotFound("field", fieldID)
	}
	return f, nil
}

// GetFields returns the fields of a view in its order; ids restricts the
// result when not empty.
func (e *Editor) GetFields(viewID string, ids []string) ([]*model.Field, error) {
	var out []*model.Field
	var ok bool
	e.doc.Read(func(s *document.State) {
		if _, ok = s.View(viewID); ok {
			out = s.FieldsInView(viewID, ids)
		}
	})
	if !ok {
		return nil, errors.RecordNotFound("view", viewID)
	}
	return out, nil
}

// CreateField adds a field, placed in viewID according to the position and
// appended in the other views.
func (e *Editor) CreateField(ctx context.Context, viewID string, p CreateFieldParams) (*model.Field, error) {
	if !p.Type.Valid() {
		return nil, errors.InvalidData("unknown field type " + string(p.Type))
	}
	f := &model.Field{ID: model.NewID(), Name: p.Name, Type: p.Type}
	opt := p.TypeOption
	if len(opt) == 0 {
		opt = fieldtype.DefaultTypeOption(p.Type)
	}
	f.SetTypeOption(p.Type, opt)
	err := e.doc.Write(func(s *document.State) error {
		if _, ok := s.View(viewID); !ok {
			return errors.RecordNotFound("view", viewID)
		}
		s.InsertField(f, viewID, p.Position)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.didCreateField(f)
	slog.DebugContext(ctx, "Created field", "field_id", f.ID, "type", f.Type)
	return f.Clone(), nil
}

func (e *Editor) didCreateField(f *model.Field) {
	for _, v := range e.views.All() {
		index := -1
		e.doc.Read(func(s *document.State) {
			if vw, ok := s.View(v.ID()); ok {
				index = slices.Index(vw.FieldOrders, f.ID)
			}
		})
		v.DidCreateField(f, index)
	}
}

// UpdateField renames a field or changes its icon.
func (e *Editor) UpdateField(ctx context.Context, fieldID string, u model.FieldUpdate) (*model.Field, error) {
	f, err := e.updateField(fieldID, func(f *model.Field) error {
		if u.Name != nil {
			f.Name = *u.Name
		}
		if u.Icon != nil {
			f.Icon = *u.Icon
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.didUpdateField(f)
	return f, nil
}

func (e *Editor) updateField(fieldID string, fn func(f *model.Field) error) (*model.Field, error) {
	var out *model.Field
	err := e.doc.Write(func(s *document.State) error {
		if err := s.UpdateField(fieldID, fn); err != nil {
			return err
		}
		out, _ = s.Field(fieldID)
		return nil
	})
	return out, err
}

func (e *Editor) didUpdateField(f *model.Field) {
	for _, v := range e.views.All() {
		v.DidUpdateField(f)
	}
}

// DeleteField deletes a field and every setting referencing it. The primary
// field cannot be deleted.
func (e *Editor) DeleteField(ctx context.Context, fieldID string) error {
	err := e.doc.Write(func(s *document.State) error {
		f, ok := s.Field(fieldID)
		if !ok {
			return errors.RecordNotFound("field", fieldID)
		}
		if f.IsPrimary {
			return errors.Internal("cannot delete the primary field")
		}
		s.DeleteField(fieldID)
		return nil
	})
	if err != nil {
		return err
	}
	for _, v := range e.views.All() {
		v.DidDeleteField(fieldID)
	}
	slog.DebugContext(ctx, "Deleted field", "field_id", fieldID)
	return nil
}

// ClearField empties every cell of a field. The primary field cannot be
// cleared.
func (e *Editor) ClearField(ctx context.Context, fieldID string) error {
	f, err := e.GetField(fieldID)
	if err != nil {
		return err
	}
	if f.IsPrimary {
		return errors.Internal("cannot clear the primary field")
	}
	if f.Type.IsTimestamp() {
		return errors.Internal("cannot clear a field computed from the row timestamps")
	}
	var ids []model.RowID
	e.doc.Read(func(s *document.State) {
		for _, id := range allRowIDs(s) {
			if r, ok := s.Row(id); ok && r.Cells[fieldID] != nil {
				ids = append(ids, id)
			}
		}
	})
	for _, id := range ids {
		if err := e.ClearCell(ctx, id, fieldID); err != nil {
			return err
		}
	}
	return nil
}

// UpdateFieldTypeOption merges data into the configuration of the field's
// current type. Empty data is a no-op.
func (e *Editor) UpdateFieldTypeOption(ctx context.Context, fieldID string, data model.TypeOptionData) error {
	if len(data) == 0 {
		return nil
	}
	f, err := e.updateField(fieldID, func(f *model.Field) error {
		opt := maps.Clone(f.TypeOption())
		if opt == nil {
			opt = fieldtype.DefaultTypeOption(f.Type)
		}
		for k, v := range data {
			opt[k] = v
		}
		f.SetTypeOption(f.Type, opt)
		return nil
	})
	if err != nil {
		return err
	}
	e.didUpdateField(f)
	e.refreshCalculations(fieldID)
	return nil
}

// SwitchToFieldType changes the type of a field. Cells are kept and read
// through the new type; the type option is derived from the previous one.
// The primary field cannot change type.
func (e *Editor) SwitchToFieldType(ctx context.Context, fieldID string, t model.FieldType) (*model.Field, error) {
	if !t.Valid() {
		return nil, errors.InvalidData("unknown field type " + string(t))
	}
	var out *model.Field
	changed := false
	err := e.doc.Write(func(s *document.State) error {
		f, ok := s.Field(fieldID)
		if !ok {
			return errors.RecordNotFound("field", fieldID)
		}
		if f.Type == t {
			out = f
			return errors.Unchanged
		}
		if f.IsPrimary {
			return errors.Internal("cannot change the type of the primary field")
		}
		var texts []string
		for _, id := range allRowIDs(s) {
			if r, ok := s.Row(id); ok {
				if txt := fieldtype.RowString(r, f); txt != "" {
					texts = append(texts, txt)
				}
			}
		}
		opt := fieldtype.TransformTypeOption(f, t, texts)
		if err := s.UpdateField(fieldID, func(f *model.Field) error {
			f.Type = t
			f.SetTypeOption(t, opt)
			return nil
		}); err != nil {
			return err
		}
		out, _ = s.Field(fieldID)
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.didUpdateField(out)
		e.refreshCalculations(fieldID)
		slog.InfoContext(ctx, "Switched field type", "field_id", fieldID, "type", t)
	}
	return out, nil
}

// DuplicateField copies a field and its cells right after itself. The
// primary field cannot be duplicated.
func (e *Editor) DuplicateField(ctx context.Context, viewID, fieldID string) (*model.Field, error) {
	var dup *model.Field
	err := e.doc.Write(func(s *document.State) error {
		f, ok := s.Field(fieldID)
		if !ok {
			return errors.RecordNotFound("field", fieldID)
		}
		if f.IsPrimary {
			return errors.Internal("cannot duplicate the primary field")
		}
		if _, ok := s.View(viewID); !ok {
			return errors.RecordNotFound("view", viewID)
		}
		dup = f.Clone()
		dup.ID = model.NewID()
		dup.Name = f.Name + " (copy)"
		s.InsertField(dup, viewID, model.OrderPosition{After: fieldID})
		for _, id := range allRowIDs(s) {
			r, ok := s.Row(id)
			if !ok || r.Cells[fieldID] == nil {
				continue
			}
			c := r.Cells[fieldID]
			if err := s.UpdateRow(id, func(r *model.Row) { r.Cells[dup.ID] = c.Clone() }); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.didCreateField(dup)
	return dup.Clone(), nil
}

// MoveField moves a field to the position of another in a view.
func (e *Editor) MoveField(ctx context.Context, viewID, fromID, toID string) error {
	if fromID == toID {
		return nil
	}
	var f *model.Field
	index := -1
	err := e.doc.Write(func(s *document.State) error {
		if err := s.MoveField(viewID, fromID, toID); err != nil {
			return err
		}
		f, _ = s.Field(fromID)
		v, _ := s.View(viewID)
		index = slices.Index(v.FieldOrders, fromID)
		return nil
	})
	if err != nil {
		return err
	}
	e.send(viewID, notify.DidUpdateFields, view.FieldsChanged{
		Deleted:  []string{fromID},
		Inserted: []view.InsertedField{{Field: f, Index: index}},
	})
	return nil
}

// TypeOptionSchema returns the JSON schema of a field type's configuration.
func (e *Editor) TypeOptionSchema(t model.FieldType) (*jsonschema.Schema, error) {
	return fieldtype.Schema(t)
}
