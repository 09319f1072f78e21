package view

import "github.com/maruel/viewdb/internal/model"

// InsertedRow is a row that appeared at an index.
type InsertedRow struct {
	RowID model.RowID `json:"row_id"`
	Index int         `json:"index"`
}

// UpdatedRow lists the fields that changed in a row.
type UpdatedRow struct {
	RowID    model.RowID `json:"row_id"`
	FieldIDs []string    `json:"field_ids,omitempty"`
}

// RowsChanged is the payload of DidUpdateRow.
type RowsChanged struct {
	Inserted []InsertedRow `json:"inserted,omitempty"`
	Deleted  []model.RowID `json:"deleted,omitempty"`
	Updated  []UpdatedRow  `json:"updated,omitempty"`
}

// RowsVisibility is the payload of DidUpdateViewRowsVisibility.
type RowsVisibility struct {
	Visible   []InsertedRow `json:"visible,omitempty"`
	Invisible []model.RowID `json:"invisible,omitempty"`
}

// ReorderAllRows is the payload of DidReorderRows.
type ReorderAllRows struct {
	RowOrders []model.RowID `json:"row_orders"`
}

// ReorderSingleRow is the payload of DidReorderSingleRow.
type ReorderSingleRow struct {
	RowID    model.RowID `json:"row_id"`
	OldIndex int         `json:"old_index"`
	NewIndex int         `json:"new_index"`
}

// InsertedField is a field that appeared at an index.
type InsertedField struct {
	Field *model.Field `json:"field"`
	Index int          `json:"index"`
}

// FieldsChanged is the payload of DidUpdateFields.
type FieldsChanged struct {
	Inserted []InsertedField `json:"inserted,omitempty"`
	Deleted  []string        `json:"deleted,omitempty"`
	Updated  []*model.Field  `json:"updated,omitempty"`
}
