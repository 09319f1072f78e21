// Converts type options and cells when a field changes type.

package fieldtype

import (
	"maps"
	"strings"

	"github.com/maruel/viewdb/internal/model"
)

// TransformTypeOption builds the configuration of f once switched to newType.
// cellTexts are the current cells of the field rendered as text; they seed
// the options of a select field created from a text field.
func TransformTypeOption(f *model.Field, newType model.FieldType, cellTexts []string) model.TypeOptionData {
	var out model.TypeOptionData
	if prev := f.TypeOptions[newType]; prev != nil {
		out = maps.Clone(prev)
	} else {
		out = DefaultTypeOption(newType)
	}
	oldOpt := f.TypeOption()
	switch {
	case newType.IsSelect() && f.Type.IsSelect():
		to := DecodeTypeOption[SelectTypeOption](out)
		to.Upsert(DecodeTypeOption[SelectTypeOption](oldOpt).Options...)
		return EncodeTypeOption(to)
	case newType.IsSelect() && f.Type == model.FieldCheckbox:
		to := DecodeTypeOption[SelectTypeOption](out)
		for _, name := range []string{CheckboxYes, CheckboxNo} {
			if _, ok := to.OptionByName(name); !ok {
				to.Upsert(NewSelectOption(name))
			}
		}
		return EncodeTypeOption(to)
	case newType.IsSelect() && (f.Type == model.FieldRichText || f.Type == model.FieldURL || f.Type == model.FieldNumber):
		to := DecodeTypeOption[SelectTypeOption](out)
		for _, text := range cellTexts {
			for _, name := range strings.Split(text, ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				if _, ok := to.OptionByName(name); !ok {
					to.Upsert(NewSelectOption(name))
				}
			}
		}
		return EncodeTypeOption(to)
	case newType == model.FieldDateTime && f.Type.IsTimestamp():
		ts := DecodeTypeOption[TimestampTypeOption](oldOpt)
		return EncodeTypeOption(DateTypeOption{DateFormat: ts.DateFormat, TimeFormat: ts.TimeFormat, TimezoneID: ts.TimezoneID})
	case newType.IsTimestamp() && f.Type == model.FieldDateTime:
		d := DecodeTypeOption[DateTypeOption](oldOpt)
		return EncodeTypeOption(TimestampTypeOption{DateFormat: d.DateFormat, TimeFormat: d.TimeFormat, TimezoneID: d.TimezoneID, IncludeTime: true})
	}
	return out
}

// ConvertCell reads a cell written under another type of f as a cell of f's
// current type. Returns nil when no meaningful conversion exists.
func ConvertCell(cell model.Cell, f *model.Field) model.Cell {
	from := cell.FieldType()
	if from == f.Type || from == "" {
		return cell
	}
	if from == model.FieldMedia || f.Type == model.FieldMedia || f.Type.IsTimestamp() {
		return nil
	}
	src, err := For(from)
	if err != nil {
		return nil
	}
	dst, err := For(f.Type)
	if err != nil {
		return nil
	}
	text := src.CellString(cell, f.TypeOptions[from])
	if from == model.FieldNumber {
		// Drop formatting so the value parses under the new type.
		text = cell.GetString(model.CellData)
	}
	if from == model.FieldDateTime && f.Type == model.FieldNumber {
		return nil
	}
	out, err := dst.ApplyChangeset(text, nil, typeOption(f))
	if err != nil {
		return nil
	}
	return out
}

// ReadCell returns the cell of a field for a row, converting cells written
// under a previous type.
func ReadCell(row *model.Row, f *model.Field) model.Cell {
	c := CellForRow(row, f)
	if c == nil || f.Type.IsTimestamp() {
		return c
	}
	return ConvertCell(c, f)
}
