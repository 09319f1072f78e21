// Defines fields (columns) and their type configuration.

package model

import "maps"

// FieldType is the closed set of column types.
type FieldType string

const (
	// FieldRichText stores plain text.
	FieldRichText FieldType = "rich_text"
	// FieldNumber stores a number formatted by its type option.
	FieldNumber FieldType = "number"
	// FieldDateTime stores a date, optionally a range and a time.
	FieldDateTime FieldType = "date_time"
	// FieldSingleSelect stores one option ID.
	FieldSingleSelect FieldType = "single_select"
	// FieldMultiSelect stores several option IDs.
	FieldMultiSelect FieldType = "multi_select"
	// FieldCheckbox stores a boolean.
	FieldCheckbox FieldType = "checkbox"
	// FieldURL stores a link.
	FieldURL FieldType = "url"
	// FieldChecklist stores a list of tasks and which are done.
	FieldChecklist FieldType = "checklist"
	// FieldLastEditedTime is derived from the row's modification time.
	FieldLastEditedTime FieldType = "last_edited_time"
	// FieldCreatedTime is derived from the row's creation time.
	FieldCreatedTime FieldType = "created_time"
	// FieldMedia stores attached files.
	FieldMedia FieldType = "media"
)

// AllFieldTypes lists every supported field type.
var AllFieldTypes = []FieldType{
	FieldRichText, FieldNumber, FieldDateTime, FieldSingleSelect, FieldMultiSelect,
	FieldCheckbox, FieldURL, FieldChecklist, FieldLastEditedTime, FieldCreatedTime, FieldMedia,
}

// IsTimestamp reports whether cells of this type are derived from row timestamps.
func (t FieldType) IsTimestamp() bool {
	return t == FieldCreatedTime || t == FieldLastEditedTime
}

// IsSelect reports whether the type stores option IDs.
func (t FieldType) IsSelect() bool {
	return t == FieldSingleSelect || t == FieldMultiSelect
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	for _, x := range AllFieldTypes {
		if x == t {
			return true
		}
	}
	return false
}

// TypeOptionData is the opaque per-type configuration of a field.
type TypeOptionData map[string]any

// Field is a column of the database.
type Field struct {
	ID        string    `json:"id" jsonschema:"description=Unique field identifier"`
	Name      string    `json:"name" jsonschema:"description=Field display name"`
	Icon      string    `json:"icon,omitempty" jsonschema:"description=Field icon"`
	Type      FieldType `json:"type" jsonschema:"description=Field type"`
	IsPrimary bool      `json:"is_primary,omitempty" jsonschema:"description=Whether this is the primary field"`
	// TypeOptions keeps the configuration of every type the field has been,
	// so switching back restores it.
	TypeOptions map[FieldType]TypeOptionData `json:"type_options,omitempty" jsonschema:"description=Type configuration keyed by field type"`
}

// Clone returns a copy of the field with an independent type option map.
func (f *Field) Clone() *Field {
	c := *f
	if f.TypeOptions != nil {
		c.TypeOptions = make(map[FieldType]TypeOptionData, len(f.TypeOptions))
		for k, v := range f.TypeOptions {
			c.TypeOptions[k] = maps.Clone(v)
		}
	}
	return &c
}

// TypeOption returns the configuration for the field's current type.
func (f *Field) TypeOption() TypeOptionData {
	return f.TypeOptions[f.Type]
}

// SetTypeOption stores the configuration for the given type.
func (f *Field) SetTypeOption(t FieldType, data TypeOptionData) {
	if f.TypeOptions == nil {
		f.TypeOptions = make(map[FieldType]TypeOptionData)
	}
	f.TypeOptions[t] = data
}

// FieldUpdate renames or re-icons a field; nil members are left alone.
type FieldUpdate struct {
	Name *string `json:"name,omitempty"`
	Icon *string `json:"icon,omitempty"`
}

// SelectOption is one choice of a select or checklist field.
type SelectOption struct {
	ID    string `json:"id" jsonschema:"description=Unique option identifier"`
	Name  string `json:"name" jsonschema:"description=Display name of the option"`
	Color string `json:"color,omitempty" jsonschema:"description=Color for visual distinction"`
}

// MediaFile is one file attached to a media cell.
type MediaFile struct {
	ID   string `json:"id" jsonschema:"description=File identifier"`
	Name string `json:"name" jsonschema:"description=Display name"`
	URL  string `json:"url" jsonschema:"description=Location of the file"`
	Type string `json:"type,omitempty" jsonschema:"description=File kind (image/link/document/...)"`
}
