// Defines rows, cells and per-row metadata.

package model

import (
	"encoding/json"
	"maps"
	"time"
)

// RowID identifies a row across every view of a database.
type RowID string

// Row is one record of the database: a cell per field plus timestamps.
type Row struct {
	ID         RowID           `json:"id" jsonschema:"description=Unique row identifier"`
	Cells      map[string]Cell `json:"cells,omitempty" jsonschema:"description=Cells keyed by field ID"`
	Height     int             `json:"height,omitempty" jsonschema:"description=Row height in pixels"`
	Visibility bool            `json:"visibility" jsonschema:"description=Whether the row is visible"`
	Created    time.Time       `json:"created" jsonschema:"description=Row creation timestamp"`
	Modified   time.Time       `json:"modified" jsonschema:"description=Last modification timestamp"`
}

// Clone returns a copy of the row whose cell map can be mutated independently.
func (r *Row) Clone() *Row {
	c := *r
	if r.Cells != nil {
		c.Cells = make(map[string]Cell, len(r.Cells))
		for k, v := range r.Cells {
			c.Cells[k] = v.Clone()
		}
	}
	return &c
}

// Cell is the stored value of one field in one row. Its keys depend on the field type.
type Cell map[string]any

// Cell keys shared by several field types.
const (
	CellFieldType = "field_type"
	CellData      = "data"
)

// NewCell returns an empty cell tagged with the field type.
func NewCell(t FieldType) Cell {
	return Cell{CellFieldType: string(t)}
}

// Clone returns a shallow copy of the cell.
func (c Cell) Clone() Cell {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}

// FieldType returns the type the cell was written with.
func (c Cell) FieldType() FieldType {
	s, _ := c[CellFieldType].(string)
	return FieldType(s)
}

// GetString returns the string value for a key, or empty string if not found/wrong type.
func (c Cell) GetString(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// GetBool returns the boolean value for a key, or false if not found/wrong type.
func (c Cell) GetBool(key string) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return false
}

// GetInt returns the integer value for a key. JSON decoding produces float64,
// in-memory writes produce int64; both are accepted.
func (c Cell) GetInt(key string) (int64, bool) {
	switch v := c[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// GetStrings returns the string slice value for a key.
// Returns nil if not found/wrong type.
func (c Cell) GetStrings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		// JSON unmarshal produces []any, convert to []string
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// Decode converts the value stored under key into v, whatever its in-memory
// shape (native struct slice or JSON-decoded maps). Returns false if absent or
// not convertible.
func (c Cell) Decode(key string, v any) bool {
	raw, ok := c[key]
	if !ok || raw == nil {
		return false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// RowMeta holds presentation metadata attached to a row.
type RowMeta struct {
	ID              RowID  `json:"id" jsonschema:"description=Row identifier"`
	DocumentID      string `json:"document_id" jsonschema:"description=UUID of the row's inline document"`
	Icon            string `json:"icon,omitempty" jsonschema:"description=Row icon"`
	Cover           string `json:"cover,omitempty" jsonschema:"description=Row cover image"`
	IsDocumentEmpty bool   `json:"is_document_empty" jsonschema:"description=Whether the inline document is empty"`
	AttachmentCount int64  `json:"attachment_count,omitempty" jsonschema:"description=Number of media files attached"`
}

// RowMetaUpdate changes a subset of RowMeta; nil fields are left alone.
type RowMetaUpdate struct {
	Icon               *string
	Cover              *string
	IsDocumentEmpty    *bool
	AttachmentCountAdd int64
}

// Apply writes the set fields of u into m.
func (u *RowMetaUpdate) Apply(m *RowMeta) {
	if u.Icon != nil {
		m.Icon = *u.Icon
	}
	if u.Cover != nil {
		m.Cover = *u.Cover
	}
	if u.IsDocumentEmpty != nil {
		m.IsDocumentEmpty = *u.IsDocumentEmpty
	}
	m.AttachmentCount += u.AttachmentCountAdd
	if m.AttachmentCount < 0 {
		m.AttachmentCount = 0
	}
}

// IsEmpty reports whether the update would change nothing.
func (u *RowMetaUpdate) IsEmpty() bool {
	return u.Icon == nil && u.Cover == nil && u.IsDocumentEmpty == nil && u.AttachmentCountAdd == 0
}

// RowOrder is a row's position entry in a view.
type RowOrder struct {
	ID     RowID `json:"id" jsonschema:"description=Row identifier"`
	Height int   `json:"height,omitempty" jsonschema:"description=Row height in pixels"`
}

// RowOrderIDs returns the IDs of the given orders.
func RowOrderIDs(orders []RowOrder) []RowID {
	ids := make([]RowID, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	return ids
}

// RowDetail bundles a row with its metadata.
type RowDetail struct {
	Row  *Row     `json:"row"`
	Meta *RowMeta `json:"meta"`
}

// CreateRowParams describes a row to create in a view.
type CreateRowParams struct {
	ID       RowID           `json:"id,omitempty"`
	Cells    map[string]Cell `json:"cells,omitempty"`
	Height   int             `json:"height,omitempty"`
	Position OrderPosition   `json:"position"`
	// Meta seeds the row metadata (duplicate_row).
	Meta *RowMeta `json:"meta,omitempty"`
}

// OrderPosition places a new entry relative to existing ones.
type OrderPosition struct {
	// Start inserts at the beginning; otherwise After/Before anchors are used; empty means end.
	Start  bool   `json:"start,omitempty"`
	After  string `json:"after,omitempty"`
	Before string `json:"before,omitempty"`
}
