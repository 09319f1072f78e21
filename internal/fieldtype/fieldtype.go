// Package fieldtype implements the behavior of each field type: reading a
// cell, applying a changeset, comparing and filtering, and type options.
package fieldtype

import (
	"encoding/json"
	"strings"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// Handler is the contract every field type implements.
type Handler interface {
	Type() model.FieldType
	// DefaultTypeOption returns the configuration of a newly created field.
	DefaultTypeOption() model.TypeOptionData
	// CellString renders the cell as text.
	CellString(cell model.Cell, opt model.TypeOptionData) string
	// ApplyChangeset returns the cell resulting from applying cs over prev.
	// prev may be nil.
	ApplyChangeset(cs any, prev model.Cell, opt model.TypeOptionData) (model.Cell, error)
	// IsEmpty reports whether the cell carries no value.
	IsEmpty(cell model.Cell) bool
	// Compare orders two non-empty cells.
	Compare(a, b model.Cell, opt model.TypeOptionData) int
	// Match reports whether the cell satisfies a leaf filter.
	Match(f *model.Filter, cell model.Cell, opt model.TypeOptionData) bool
}

// For returns the handler of a field type.
func For(t model.FieldType) (Handler, error) {
	switch t {
	case model.FieldRichText:
		return textHandler{t: t}, nil
	case model.FieldURL:
		return textHandler{t: t}, nil
	case model.FieldNumber:
		return numberHandler{}, nil
	case model.FieldCheckbox:
		return checkboxHandler{}, nil
	case model.FieldSingleSelect, model.FieldMultiSelect:
		return selectHandler{t: t}, nil
	case model.FieldDateTime:
		return dateHandler{}, nil
	case model.FieldChecklist:
		return checklistHandler{}, nil
	case model.FieldMedia:
		return mediaHandler{}, nil
	case model.FieldCreatedTime, model.FieldLastEditedTime:
		return timestampHandler{t: t}, nil
	default:
		return nil, errors.InvalidData("unknown field type " + string(t))
	}
}

// MustFor is For for types known to be valid.
func MustFor(t model.FieldType) Handler {
	h, err := For(t)
	if err != nil {
		panic(err)
	}
	return h
}

// CellForRow returns the cell a field has in a row. Timestamp fields have no
// stored cell and are synthesized from the row timestamps.
func CellForRow(row *model.Row, f *model.Field) model.Cell {
	switch f.Type {
	case model.FieldCreatedTime:
		return timestampCell(f.Type, row.Created)
	case model.FieldLastEditedTime:
		return timestampCell(f.Type, row.Modified)
	}
	return row.Cells[f.ID]
}

// RowString renders a field of a row as text.
func RowString(row *model.Row, f *model.Field) string {
	h, err := For(f.Type)
	if err != nil {
		return ""
	}
	return h.CellString(CellForRow(row, f), typeOption(f))
}

// ApplyToRow applies a changeset to a field's cell in a row and returns the new cell.
func ApplyToRow(cs any, row *model.Row, f *model.Field) (model.Cell, error) {
	h, err := For(f.Type)
	if err != nil {
		return nil, err
	}
	var prev model.Cell
	if row != nil {
		prev = row.Cells[f.ID]
		if prev != nil && prev.FieldType() != f.Type {
			// Written under a previous type; convert before applying.
			prev = ConvertCell(prev, f)
		}
	}
	return h.ApplyChangeset(cs, prev, typeOption(f))
}

// DefaultTypeOption returns the default configuration for a type.
func DefaultTypeOption(t model.FieldType) model.TypeOptionData {
	h, err := For(t)
	if err != nil {
		return model.TypeOptionData{}
	}
	return h.DefaultTypeOption()
}

func typeOption(f *model.Field) model.TypeOptionData {
	if opt := f.TypeOption(); opt != nil {
		return opt
	}
	return DefaultTypeOption(f.Type)
}

// DecodeTypeOption converts opaque type option data into its typed form.
func DecodeTypeOption[T any](data model.TypeOptionData) T {
	var v T
	if len(data) == 0 {
		return v
	}
	b, err := json.Marshal(data)
	if err != nil {
		return v
	}
	_ = json.Unmarshal(b, &v)
	return v
}

// EncodeTypeOption converts a typed type option into opaque data.
func EncodeTypeOption(v any) model.TypeOptionData {
	b, err := json.Marshal(v)
	if err != nil {
		return model.TypeOptionData{}
	}
	out := model.TypeOptionData{}
	_ = json.Unmarshal(b, &out)
	return out
}

// changesetString accepts a raw string changeset.
func changesetString(cs any) (string, error) {
	switch v := cs.(type) {
	case string:
		return v, nil
	case *string:
		if v == nil {
			return "", nil
		}
		return *v, nil
	case nil:
		return "", nil
	}
	return "", errors.InvalidData("expected a text changeset")
}

// matchText applies a text condition, case-insensitively.
func matchText(cond model.FilterCondition, value, content string) bool {
	vs := strings.ToLower(value)
	fs := strings.ToLower(content)
	switch cond {
	case model.FilterIs:
		return vs == fs
	case model.FilterIsNot:
		return vs != fs
	case model.FilterContains:
		return strings.Contains(vs, fs)
	case model.FilterDoesNotContain:
		return !strings.Contains(vs, fs)
	case model.FilterStartsWith:
		return strings.HasPrefix(vs, fs)
	case model.FilterEndsWith:
		return strings.HasSuffix(vs, fs)
	case model.FilterIsEmpty:
		return value == ""
	case model.FilterIsNotEmpty:
		return value != ""
	default:
		return false
	}
}

// matchOrdered applies a comparison condition given cmp(value, content).
func matchOrdered(cond model.FilterCondition, c int) bool {
	switch cond {
	case model.FilterIs:
		return c == 0
	case model.FilterIsNot:
		return c != 0
	case model.FilterGreater:
		return c > 0
	case model.FilterLess:
		return c < 0
	case model.FilterGreaterOrEqual:
		return c >= 0
	case model.FilterLessOrEqual:
		return c <= 0
	default:
		return false
	}
}
