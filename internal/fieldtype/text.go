package fieldtype

import (
	"cmp"
	"net/url"
	"strings"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// RichTextTypeOption configures a text field. It has no settings.
type RichTextTypeOption struct{}

// URLTypeOption configures a URL field.
type URLTypeOption struct {
	// Content is a placeholder shown for empty cells.
	Content string `json:"content,omitempty" jsonschema:"description=Placeholder for empty cells"`
}

// textHandler serves rich text and URL fields; both store a string under "data".
type textHandler struct {
	t model.FieldType
}

func (h textHandler) Type() model.FieldType { return h.t }

func (h textHandler) DefaultTypeOption() model.TypeOptionData {
	if h.t == model.FieldURL {
		return EncodeTypeOption(URLTypeOption{})
	}
	return EncodeTypeOption(RichTextTypeOption{})
}

func (h textHandler) CellString(cell model.Cell, _ model.TypeOptionData) string {
	return cell.GetString(model.CellData)
}

func (h textHandler) ApplyChangeset(cs any, _ model.Cell, _ model.TypeOptionData) (model.Cell, error) {
	s, err := changesetString(cs)
	if err != nil {
		return nil, err
	}
	if h.t == model.FieldURL {
		s = strings.TrimSpace(s)
		if s != "" {
			if _, err := url.Parse(s); err != nil {
				return nil, errors.InvalidData("invalid URL").Wrap(err)
			}
		}
	}
	c := model.NewCell(h.t)
	c[model.CellData] = s
	return c, nil
}

func (h textHandler) IsEmpty(cell model.Cell) bool {
	return cell.GetString(model.CellData) == ""
}

func (h textHandler) Compare(a, b model.Cell, _ model.TypeOptionData) int {
	return cmp.Compare(strings.ToLower(a.GetString(model.CellData)), strings.ToLower(b.GetString(model.CellData)))
}

func (h textHandler) Match(f *model.Filter, cell model.Cell, _ model.TypeOptionData) bool {
	return matchText(f.Condition, cell.GetString(model.CellData), f.Content)
}
