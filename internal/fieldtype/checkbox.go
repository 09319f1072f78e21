package fieldtype

import (
	"strings"

	"github.com/maruel/viewdb/internal/model"
)

// CheckboxTypeOption configures a checkbox field. It has no settings.
type CheckboxTypeOption struct{}

// Display values of a checkbox cell.
const (
	CheckboxYes = "Yes"
	CheckboxNo  = "No"
)

// ParseCheckbox interprets text as a checkbox state.
func ParseCheckbox(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "checked", "x":
		return true
	}
	return false
}

type checkboxHandler struct{}

func (checkboxHandler) Type() model.FieldType { return model.FieldCheckbox }

func (checkboxHandler) DefaultTypeOption() model.TypeOptionData {
	return EncodeTypeOption(CheckboxTypeOption{})
}

func (checkboxHandler) CellString(cell model.Cell, _ model.TypeOptionData) string {
	if cell.GetBool(model.CellData) {
		return CheckboxYes
	}
	return CheckboxNo
}

func (checkboxHandler) ApplyChangeset(cs any, _ model.Cell, _ model.TypeOptionData) (model.Cell, error) {
	c := model.NewCell(model.FieldCheckbox)
	if b, ok := cs.(bool); ok {
		c[model.CellData] = b
		return c, nil
	}
	s, err := changesetString(cs)
	if err != nil {
		return nil, err
	}
	c[model.CellData] = ParseCheckbox(s)
	return c, nil
}

// IsEmpty reports whether the checkbox was never written.
func (checkboxHandler) IsEmpty(cell model.Cell) bool {
	_, ok := cell[model.CellData]
	return !ok
}

func (checkboxHandler) Compare(a, b model.Cell, _ model.TypeOptionData) int {
	va, vb := a.GetBool(model.CellData), b.GetBool(model.CellData)
	switch {
	case va == vb:
		return 0
	case !va:
		return -1
	}
	return 1
}

func (checkboxHandler) Match(f *model.Filter, cell model.Cell, _ model.TypeOptionData) bool {
	checked := cell.GetBool(model.CellData)
	switch f.Condition {
	case model.FilterIsChecked:
		return checked
	case model.FilterIsUnchecked:
		return !checked
	case model.FilterIs:
		return checked == ParseCheckbox(f.Content)
	}
	return false
}
