// Cell operations.

package editor

import (
	"context"
	"slices"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
)

// RowCell is a cell with the row it belongs to.
type RowCell struct {
	RowID model.RowID `json:"row_id"`
	Cell  model.Cell  `json:"cell"`
}

// CellChange is a cell value the caller should display for a row.
type CellChange struct {
	RowID   model.RowID `json:"row_id"`
	FieldID string      `json:"field_id"`
	Cell    model.Cell  `json:"cell"`
}

// GetCell returns the cell of a field in a row. A cell never written is
// returned empty.
func (e *Editor) GetCell(fieldID string, rowID model.RowID) (model.Cell, error) {
	var f *model.Field
	var row *model.Row
	e.doc.Read(func(s *document.State) {
		f, _ = s.Field(fieldID)
		row, _ = s.Row(rowID)
	})
	if f == nil {
		return nil, errors.RecordNotFound("field", fieldID)
	}
	if row == nil {
		return nil, errors.RecordNotFound("row", string(rowID))
	}
	if c := fieldtype.ReadCell(row, f); c != nil {
		return c, nil
	}
	return model.NewCell(f.Type), nil
}

// GetCellsForField returns the cells of a field in the view's row order.
func (e *Editor) GetCellsForField(viewID, fieldID string) ([]RowCell, error) {
	var f *model.Field
	var rows []*model.Row
	var ok bool
	e.doc.Read(func(s *document.State) {
		f, _ = s.Field(fieldID)
		var orders []model.RowOrder
		if orders, ok = s.RowOrders(viewID); !ok {
			return
		}
		for _, o := range orders {
			if r, found := s.Row(o.ID); found {
				rows = append(rows, r)
			}
		}
	})
	if !ok {
		return nil, errors.RecordNotFound("view", viewID)
	}
	if f == nil {
		return nil, errors.RecordNotFound("field", fieldID)
	}
	out := make([]RowCell, 0, len(rows))
	for _, r := range rows {
		c := fieldtype.ReadCell(r, f)
		if c == nil {
			c = model.NewCell(f.Type)
		}
		out = append(out, RowCell{RowID: r.ID, Cell: c})
	}
	return out, nil
}

// UpdateCell replaces the cell of a field in a row.
func (e *Editor) UpdateCell(ctx context.Context, rowID model.RowID, fieldID string, cell model.Cell) error {
	_, err := e.updateCell(ctx, rowID, fieldID, func(_ *model.Row, f *model.Field) (model.Cell, error) {
		c := cell.Clone()
		if c == nil {
			c = model.NewCell(f.Type)
		}
		c[model.CellFieldType] = string(f.Type)
		return c, nil
	})
	return err
}

// UpdateCellWithChangeset applies a type specific changeset to a cell and
// returns the new cell. Text is accepted by every type except media.
func (e *Editor) UpdateCellWithChangeset(ctx context.Context, rowID model.RowID, fieldID string, cs any) (model.Cell, error) {
	return e.updateCell(ctx, rowID, fieldID, func(old *model.Row, f *model.Field) (model.Cell, error) {
		return fieldtype.ApplyToRow(cs, old, f)
	})
}

// ClearCell empties a cell. Timestamp cells cannot be cleared.
func (e *Editor) ClearCell(ctx context.Context, rowID model.RowID, fieldID string) error {
	_, err := e.updateCell(ctx, rowID, fieldID, func(*model.Row, *model.Field) (model.Cell, error) {
		return nil, nil
	})
	return err
}

// updateCell finalizes the row, then computes and writes the new cell from
// the row image in a single write. A nil cell removes it. Views are
// notified once the write is done.
func (e *Editor) updateCell(ctx context.Context, rowID model.RowID, fieldID string, fn func(old *model.Row, f *model.Field) (model.Cell, error)) (model.Cell, error) {
	if _, err := e.InitDatabaseRow(ctx, rowID); err != nil {
		return nil, err
	}
	var old, updated *model.Row
	var cell model.Cell
	var meta *model.RowMeta
	err := e.doc.Write(func(s *document.State) error {
		f, ok := s.Field(fieldID)
		if !ok {
			return errors.RecordNotFound("field", fieldID)
		}
		if f.Type.IsTimestamp() {
			return errors.Internal("field " + fieldID + " is computed from the row timestamps")
		}
		if old, ok = s.Row(rowID); !ok {
			return errors.RecordNotFound("row", string(rowID))
		}
		var err error
		if cell, err = fn(old, f); err != nil {
			return err
		}
		if err := s.UpdateRow(rowID, func(r *model.Row) {
			if cell == nil {
				delete(r.Cells, fieldID)
			} else {
				r.Cells[fieldID] = cell.Clone()
			}
		}); err != nil {
			return err
		}
		if f.Type == model.FieldMedia {
			diff := int64(len(fieldtype.MediaFiles(cell)) - len(fieldtype.MediaFiles(old.Cells[fieldID])))
			if diff != 0 {
				u := model.RowMetaUpdate{AttachmentCountAdd: diff}
				if err := s.UpdateRowMeta(rowID, u.Apply); err != nil {
					return err
				}
				meta, _ = s.RowMeta(rowID)
			}
		}
		updated, _ = s.Row(rowID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, v := range e.views.All() {
		v.DidUpdateRow(old, updated, fieldID)
	}
	if meta != nil {
		e.didUpdateRowMeta(meta)
	}
	e.refreshCalculations(fieldID)
	return cell, nil
}

// CreateSelectOption returns a new option for a select field. It is not
// stored until inserted in a cell.
func (e *Editor) CreateSelectOption(fieldID, name string) (model.SelectOption, error) {
	f, err := e.GetField(fieldID)
	if err != nil {
		return model.SelectOption{}, err
	}
	if !f.Type.IsSelect() {
		return model.SelectOption{}, errors.InvalidData("field " + fieldID + " is not a select field")
	}
	to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
	if o, ok := to.OptionByName(name); ok {
		return o, nil
	}
	return fieldtype.NewSelectOption(name), nil
}

// InsertSelectOptions adds options to a select field and selects them in a
// row's cell.
func (e *Editor) InsertSelectOptions(ctx context.Context, fieldID string, rowID model.RowID, opts []model.SelectOption) error {
	if err := e.upsertSelectOptions(fieldID, opts); err != nil {
		return err
	}
	ids := make([]string, len(opts))
	for i, o := range opts {
		ids[i] = o.ID
	}
	_, err := e.UpdateCellWithChangeset(ctx, rowID, fieldID, fieldtype.SelectChangeset{InsertOptionIDs: ids})
	return err
}

// DeleteSelectOptions removes options from a select field and from a row's
// cell.
func (e *Editor) DeleteSelectOptions(ctx context.Context, fieldID string, rowID model.RowID, opts []model.SelectOption) error {
	ids := make([]string, len(opts))
	for i, o := range opts {
		ids[i] = o.ID
	}
	f, err := e.updateField(fieldID, func(f *model.Field) error {
		if !f.Type.IsSelect() {
			return errors.InvalidData("field " + fieldID + " is not a select field")
		}
		to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
		to.Delete(ids...)
		f.SetTypeOption(f.Type, fieldtype.EncodeTypeOption(to))
		return nil
	})
	if err != nil {
		return err
	}
	e.didUpdateField(f)
	_, err = e.UpdateCellWithChangeset(ctx, rowID, fieldID, fieldtype.SelectChangeset{DeleteOptionIDs: ids})
	return err
}

func (e *Editor) upsertSelectOptions(fieldID string, opts []model.SelectOption) error {
	f, err := e.updateField(fieldID, func(f *model.Field) error {
		if !f.Type.IsSelect() {
			return errors.InvalidData("field " + fieldID + " is not a select field")
		}
		to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
		to.Upsert(opts...)
		f.SetTypeOption(f.Type, fieldtype.EncodeTypeOption(to))
		return nil
	})
	if err != nil {
		return err
	}
	e.didUpdateField(f)
	return nil
}

// removeSelectOption removes an option from a field and from every cell
// selecting it. Returns the rows that changed.
func (e *Editor) removeSelectOption(ctx context.Context, fieldID, optionID string) ([]model.RowID, error) {
	f, err := e.updateField(fieldID, func(f *model.Field) error {
		to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
		to.Delete(optionID)
		f.SetTypeOption(f.Type, fieldtype.EncodeTypeOption(to))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.didUpdateField(f)
	var affected []model.RowID
	e.doc.Read(func(s *document.State) {
		for _, id := range allRowIDs(s) {
			r, _ := s.Row(id)
			if slices.Contains(r.Cells[fieldID].GetStrings(model.CellData), optionID) {
				affected = append(affected, id)
			}
		}
	})
	for _, id := range affected {
		if _, err := e.UpdateCellWithChangeset(ctx, id, fieldID, fieldtype.SelectChangeset{DeleteOptionIDs: []string{optionID}}); err != nil {
			return nil, err
		}
	}
	return affected, nil
}

// SetChecklistOptions edits the tasks of a checklist cell.
func (e *Editor) SetChecklistOptions(ctx context.Context, rowID model.RowID, fieldID string, cs fieldtype.ChecklistChangeset) (model.Cell, error) {
	return e.UpdateCellWithChangeset(ctx, rowID, fieldID, cs)
}

// AutoUpdatedFieldsChangesets returns the cells of fields maintained by the
// database, such as the last edited time, for a row.
func (e *Editor) AutoUpdatedFieldsChangesets(viewID string, rowID model.RowID) ([]CellChange, error) {
	var fields []*model.Field
	var row *model.Row
	e.doc.Read(func(s *document.State) {
		fields = s.FieldsInView(viewID, nil)
		row, _ = s.Row(rowID)
	})
	if row == nil {
		return nil, errors.RecordNotFound("row", string(rowID))
	}
	var out []CellChange
	for _, f := range fields {
		if f.Type == model.FieldLastEditedTime {
			out = append(out, CellChange{RowID: rowID, FieldID: f.ID, Cell: fieldtype.CellForRow(row, f)})
		}
	}
	return out, nil
}

// allRowIDs returns the rows in the order of the first view.
func allRowIDs(s *document.State) []model.RowID {
	views := s.Views()
	if len(views) == 0 {
		return nil
	}
	return model.RowOrderIDs(views[0].RowOrders)
}
