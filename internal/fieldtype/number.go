package fieldtype

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// NumberFormat is how a number cell is displayed.
type NumberFormat string

const (
	NumberFormatNum     NumberFormat = "num"
	NumberFormatUSD     NumberFormat = "usd"
	NumberFormatEUR     NumberFormat = "eur"
	NumberFormatPercent NumberFormat = "percent"
)

// NumberTypeOption configures a number field.
type NumberTypeOption struct {
	Format NumberFormat `json:"format" jsonschema:"enum=num,enum=usd,enum=eur,enum=percent,description=Display format"`
	Scale  int          `json:"scale,omitempty" jsonschema:"minimum=0,maximum=10,description=Digits after the decimal point"`
	Symbol string       `json:"symbol,omitempty" jsonschema:"description=Currency symbol override"`
}

// Render formats a number according to the option.
func (o NumberTypeOption) Render(v float64) string {
	prec := -1
	if o.Scale > 0 {
		prec = o.Scale
	}
	s := strconv.FormatFloat(v, 'f', prec, 64)
	switch o.Format {
	case NumberFormatUSD:
		return o.symbol("$") + s
	case NumberFormatEUR:
		return o.symbol("€") + s
	case NumberFormatPercent:
		return s + "%"
	}
	return s
}

func (o NumberTypeOption) symbol(def string) string {
	if o.Symbol != "" {
		return o.Symbol
	}
	return def
}

// ParseNumber extracts a number from text, ignoring currency symbols,
// thousands separators and a trailing percent sign.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimLeft(s, "$€£¥ ")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// numberHandler stores the number as its decimal text under "data".
type numberHandler struct{}

func (numberHandler) Type() model.FieldType { return model.FieldNumber }

func (numberHandler) DefaultTypeOption() model.TypeOptionData {
	return EncodeTypeOption(NumberTypeOption{Format: NumberFormatNum})
}

func (numberHandler) CellString(cell model.Cell, opt model.TypeOptionData) string {
	v, ok := numberValue(cell)
	if !ok {
		return ""
	}
	return DecodeTypeOption[NumberTypeOption](opt).Render(v)
}

func (numberHandler) ApplyChangeset(cs any, _ model.Cell, _ model.TypeOptionData) (model.Cell, error) {
	c := model.NewCell(model.FieldNumber)
	switch v := cs.(type) {
	case float64:
		c[model.CellData] = strconv.FormatFloat(v, 'f', -1, 64)
		return c, nil
	case int:
		c[model.CellData] = strconv.Itoa(v)
		return c, nil
	}
	s, err := changesetString(cs)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s) == "" {
		c[model.CellData] = ""
		return c, nil
	}
	v, ok := ParseNumber(s)
	if !ok {
		return nil, errors.InvalidData("not a number: " + s)
	}
	c[model.CellData] = strconv.FormatFloat(v, 'f', -1, 64)
	return c, nil
}

func (numberHandler) IsEmpty(cell model.Cell) bool {
	_, ok := numberValue(cell)
	return !ok
}

func (numberHandler) Compare(a, b model.Cell, _ model.TypeOptionData) int {
	va, _ := numberValue(a)
	vb, _ := numberValue(b)
	return cmp.Compare(va, vb)
}

func (numberHandler) Match(f *model.Filter, cell model.Cell, _ model.TypeOptionData) bool {
	v, ok := numberValue(cell)
	switch f.Condition {
	case model.FilterIsEmpty:
		return !ok
	case model.FilterIsNotEmpty:
		return ok
	}
	want, wok := ParseNumber(f.Content)
	if !ok || !wok {
		return false
	}
	return matchOrdered(f.Condition, cmp.Compare(v, want))
}

func numberValue(cell model.Cell) (float64, bool) {
	return ParseNumber(cell.GetString(model.CellData))
}
