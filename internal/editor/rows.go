// Row operations.

package editor

import (
	"context"
	"log/slog"
	"slices"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// RowUpdate changes row attributes other than cells; nil members are left
// alone.
type RowUpdate struct {
	Height     *int  `json:"height,omitempty"`
	Visibility *bool `json:"visibility,omitempty"`
}

// CreateRow creates a row in a view and returns it with its index in that
// view. Other views append it.
func (e *Editor) CreateRow(ctx context.Context, viewID string, params *model.CreateRowParams) (*model.Row, int, error) {
	if params == nil {
		params = &model.CreateRowParams{}
	}
	var row *model.Row
	var order model.RowOrder
	var index int
	err := e.doc.Write(func(s *document.State) error {
		var err error
		if order, index, err = s.CreateRow(viewID, params); err != nil {
			return err
		}
		row, _ = s.Row(order.ID)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	for _, v := range e.views.All() {
		if v.ID() == viewID {
			v.DidCreateRow(row, order, index)
		} else {
			v.DidCreateRow(row, order, -1)
		}
	}
	e.refreshCalculations("")
	slog.DebugContext(ctx, "Created row", "view_id", viewID, "row_id", row.ID, "index", index)
	return row, index, nil
}

// DuplicateRow copies a row, its cells and metadata, right after itself.
func (e *Editor) DuplicateRow(ctx context.Context, viewID string, rowID model.RowID) (*model.Row, int, error) {
	var params *model.CreateRowParams
	e.doc.Read(func(s *document.State) {
		r, ok := s.Row(rowID)
		if !ok {
			return
		}
		meta, _ := s.RowMeta(rowID)
		params = &model.CreateRowParams{Cells: r.Cells, Height: r.Height, Position: model.OrderPosition{After: string(rowID)}, Meta: meta}
	})
	if params == nil {
		return nil, 0, errors.RecordNotFound("row", string(rowID))
	}
	return e.CreateRow(ctx, viewID, params)
}

// DeleteRows deletes rows from the database and returns the deleted ones.
func (e *Editor) DeleteRows(ctx context.Context, ids []model.RowID) []*model.Row {
	var removed []*model.Row
	_ = e.doc.Write(func(s *document.State) error {
		if removed = s.RemoveRows(ids); len(removed) == 0 {
			return errors.Unchanged
		}
		return nil
	})
	if len(removed) == 0 {
		return nil
	}
	deleted := make([]model.RowID, len(removed))
	for i, r := range removed {
		deleted[i] = r.ID
		e.cache.Invalidate(r.ID)
	}
	for _, v := range e.views.All() {
		v.DidDeleteRows(deleted)
	}
	e.refreshCalculations("")
	slog.DebugContext(ctx, "Deleted rows", "rows", len(deleted))
	return removed
}

// MoveRow moves a row to the position of another in a view.
func (e *Editor) MoveRow(ctx context.Context, viewID string, fromID, toID model.RowID) error {
	if fromID == toID {
		return nil
	}
	var orders []model.RowOrder
	err := e.doc.Write(func(s *document.State) error {
		if err := s.MoveRow(viewID, fromID, toID); err != nil {
			return err
		}
		orders, _ = s.RowOrders(viewID)
		return nil
	})
	if err != nil {
		return err
	}
	if v, ok := e.views.Get(viewID); ok {
		v.DidMoveRow(fromID, orders)
	}
	return nil
}

// MoveGroupRow moves a row from one group to another: the row's group
// field is updated, then the row is moved to the position of toRowID, or
// to the end of the view when toRowID is empty.
func (e *Editor) MoveGroupRow(ctx context.Context, viewID string, rowID model.RowID, fromGroupID, toGroupID string, toRowID model.RowID) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	row, err := e.GetRow(viewID, rowID)
	if err != nil {
		return err
	}
	fieldID, cs, err := v.MoveGroupRowChangeset(row, fromGroupID, toGroupID)
	if err != nil {
		return err
	}
	if fromGroupID != toGroupID {
		if _, err := e.UpdateCellWithChangeset(ctx, rowID, fieldID, cs); err != nil {
			return err
		}
	}
	if toRowID == "" {
		ids, err := e.GetRowIDs(viewID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		toRowID = ids[len(ids)-1]
	}
	return e.MoveRow(ctx, viewID, rowID, toRowID)
}

// GetRow returns a row of a view.
func (e *Editor) GetRow(viewID string, rowID model.RowID) (*model.Row, error) {
	var row *model.Row
	var err error
	e.doc.Read(func(s *document.State) {
		orders, ok := s.RowOrders(viewID)
		if !ok {
			err = errors.RecordNotFound("view", viewID)
			return
		}
		if !slices.ContainsFunc(orders, func(o model.RowOrder) bool { return o.ID == rowID }) {
			err = errors.RecordNotFound("row", string(rowID))
			return
		}
		row, _ = s.Row(rowID)
	})
	if err == nil && row == nil {
		err = errors.RecordNotFound("row", string(rowID))
	}
	return row, err
}

// GetRowDetail returns a row with its metadata.
func (e *Editor) GetRowDetail(viewID string, rowID model.RowID) (*model.RowDetail, error) {
	row, err := e.GetRow(viewID, rowID)
	if err != nil {
		return nil, err
	}
	meta, err := e.GetRowMeta(rowID)
	if err != nil {
		return nil, err
	}
	return &model.RowDetail{Row: row, Meta: meta}, nil
}

// GetAllRows returns the rows of a view, filtered and sorted.
func (e *Editor) GetAllRows(ctx context.Context, viewID string) ([]*model.Row, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	var rows []*model.Row
	e.doc.Read(func(s *document.State) {
		orders, _ := s.RowOrders(viewID)
		for _, o := range orders {
			if r, ok := s.Row(o.ID); ok {
				rows = append(rows, r)
			}
		}
	})
	return v.SortRows(v.FilterRows(rows)), nil
}

// GetRowIDs returns the row order of a view.
func (e *Editor) GetRowIDs(viewID string) ([]model.RowID, error) {
	var orders []model.RowOrder
	var ok bool
	e.doc.Read(func(s *document.State) { orders, ok = s.RowOrders(viewID) })
	if !ok {
		return nil, errors.RecordNotFound("view", viewID)
	}
	return model.RowOrderIDs(orders), nil
}

// GetRowIndex returns the position of a row in a view.
func (e *Editor) GetRowIndex(viewID string, rowID model.RowID) (int, error) {
	ids, err := e.GetRowIDs(viewID)
	if err != nil {
		return 0, err
	}
	i := slices.Index(ids, rowID)
	if i < 0 {
		return 0, errors.RecordNotFound("row", string(rowID))
	}
	return i, nil
}

// GetRowOrderAtIndex returns the row at a position of a view.
func (e *Editor) GetRowOrderAtIndex(viewID string, index int) (model.RowOrder, error) {
	var orders []model.RowOrder
	var ok bool
	e.doc.Read(func(s *document.State) { orders, ok = s.RowOrders(viewID) })
	if !ok {
		return model.RowOrder{}, errors.RecordNotFound("view", viewID)
	}
	if index < 0 || index >= len(orders) {
		return model.RowOrder{}, errors.InvalidData("row index out of range")
	}
	return orders[index], nil
}

// GetRowMeta returns the metadata of a row.
func (e *Editor) GetRowMeta(rowID model.RowID) (*model.RowMeta, error) {
	var meta *model.RowMeta
	var ok bool
	e.doc.Read(func(s *document.State) { meta, ok = s.RowMeta(rowID) })
	if !ok {
		return nil, errors.RecordNotFound("row", string(rowID))
	}
	return meta, nil
}

// UpdateRowMeta finalizes the row, then changes its icon, cover, document
// state or attachment count.
func (e *Editor) UpdateRowMeta(ctx context.Context, rowID model.RowID, u model.RowMetaUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	if _, err := e.InitDatabaseRow(ctx, rowID); err != nil {
		return err
	}
	var meta *model.RowMeta
	err := e.doc.Write(func(s *document.State) error {
		if err := s.UpdateRowMeta(rowID, u.Apply); err != nil {
			return err
		}
		meta, _ = s.RowMeta(rowID)
		return nil
	})
	if err != nil {
		return err
	}
	e.didUpdateRowMeta(meta)
	return nil
}

func (e *Editor) didUpdateRowMeta(meta *model.RowMeta) {
	for _, v := range e.views.All() {
		v.DidUpdateRowMeta(meta)
	}
}

// UpdateRow finalizes the row, then changes its height or visibility.
func (e *Editor) UpdateRow(ctx context.Context, rowID model.RowID, u RowUpdate) error {
	if u.Height != nil && *u.Height <= 0 {
		return errors.InvalidData("row height must be positive")
	}
	if _, err := e.InitDatabaseRow(ctx, rowID); err != nil {
		return err
	}
	var old, updated *model.Row
	err := e.doc.Write(func(s *document.State) error {
		var ok bool
		if old, ok = s.Row(rowID); !ok {
			return errors.RecordNotFound("row", string(rowID))
		}
		if err := s.UpdateRow(rowID, func(r *model.Row) {
			if u.Height != nil {
				r.Height = *u.Height
			}
			if u.Visibility != nil {
				r.Visibility = *u.Visibility
			}
		}); err != nil {
			return err
		}
		updated, _ = s.Row(rowID)
		return nil
	})
	if err != nil {
		return err
	}
	for _, v := range e.views.All() {
		v.DidUpdateRow(old, updated, "")
	}
	return nil
}
