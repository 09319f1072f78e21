package fieldtype

import (
	"cmp"
	"slices"
	"strings"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// SelectTypeOption configures a single or multi select field.
type SelectTypeOption struct {
	Options      []model.SelectOption `json:"options,omitempty" jsonschema:"description=Allowed options"`
	DisableColor bool                 `json:"disable_color,omitempty" jsonschema:"description=Render options without color"`
}

// Option returns the option with the given ID.
func (o *SelectTypeOption) Option(id string) (model.SelectOption, bool) {
	for _, opt := range o.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return model.SelectOption{}, false
}

// OptionByName returns the option with the given name, case-insensitively.
func (o *SelectTypeOption) OptionByName(name string) (model.SelectOption, bool) {
	for _, opt := range o.Options {
		if strings.EqualFold(opt.Name, name) {
			return opt, true
		}
	}
	return model.SelectOption{}, false
}

// Upsert inserts the options or replaces those with the same ID.
func (o *SelectTypeOption) Upsert(opts ...model.SelectOption) {
	for _, opt := range opts {
		if i := slices.IndexFunc(o.Options, func(x model.SelectOption) bool { return x.ID == opt.ID }); i >= 0 {
			o.Options[i] = opt
			continue
		}
		o.Options = append(o.Options, opt)
	}
}

// Delete removes the options with the given IDs.
func (o *SelectTypeOption) Delete(ids ...string) {
	o.Options = slices.DeleteFunc(o.Options, func(x model.SelectOption) bool { return slices.Contains(ids, x.ID) })
}

// SelectChangeset adds and removes option IDs of a select cell.
type SelectChangeset struct {
	InsertOptionIDs []string `json:"insert_option_ids,omitempty"`
	DeleteOptionIDs []string `json:"delete_option_ids,omitempty"`
}

// NewSelectOption creates an option with a fresh ID.
func NewSelectOption(name string) model.SelectOption {
	return model.SelectOption{ID: model.NewID(), Name: name, Color: "purple"}
}

// selectHandler stores the selected option IDs under "data".
type selectHandler struct {
	t model.FieldType
}

func (h selectHandler) Type() model.FieldType { return h.t }

func (h selectHandler) DefaultTypeOption() model.TypeOptionData {
	return EncodeTypeOption(SelectTypeOption{})
}

func (h selectHandler) CellString(cell model.Cell, opt model.TypeOptionData) string {
	to := DecodeTypeOption[SelectTypeOption](opt)
	var names []string
	for _, id := range cell.GetStrings(model.CellData) {
		if o, ok := to.Option(id); ok {
			names = append(names, o.Name)
		}
	}
	return strings.Join(names, ",")
}

func (h selectHandler) ApplyChangeset(cs any, prev model.Cell, opt model.TypeOptionData) (model.Cell, error) {
	var change SelectChangeset
	switch v := cs.(type) {
	case SelectChangeset:
		change = v
	case *SelectChangeset:
		change = *v
	default:
		// Text is a comma separated list of option IDs or names.
		s, err := changesetString(cs)
		if err != nil {
			return nil, errors.InvalidData("expected a select changeset")
		}
		to := DecodeTypeOption[SelectTypeOption](opt)
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if o, ok := to.Option(part); ok {
				change.InsertOptionIDs = append(change.InsertOptionIDs, o.ID)
			} else if o, ok := to.OptionByName(part); ok {
				change.InsertOptionIDs = append(change.InsertOptionIDs, o.ID)
			}
		}
		// A text write replaces the selection.
		prev = nil
	}
	ids := slices.Clone(prev.GetStrings(model.CellData))
	for _, id := range change.InsertOptionIDs {
		if h.t == model.FieldSingleSelect {
			ids = []string{id}
			continue
		}
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	ids = slices.DeleteFunc(ids, func(id string) bool { return slices.Contains(change.DeleteOptionIDs, id) })
	c := model.NewCell(h.t)
	if ids == nil {
		ids = []string{}
	}
	c[model.CellData] = ids
	return c, nil
}

func (h selectHandler) IsEmpty(cell model.Cell) bool {
	return len(cell.GetStrings(model.CellData)) == 0
}

// Compare orders by the position of the first selected option in the type option.
func (h selectHandler) Compare(a, b model.Cell, opt model.TypeOptionData) int {
	to := DecodeTypeOption[SelectTypeOption](opt)
	pos := func(c model.Cell) int {
		ids := c.GetStrings(model.CellData)
		if len(ids) == 0 {
			return len(to.Options)
		}
		return slices.IndexFunc(to.Options, func(o model.SelectOption) bool { return o.ID == ids[0] })
	}
	return cmp.Compare(pos(a), pos(b))
}

// Match compares against Content, a comma separated list of option IDs.
func (h selectHandler) Match(f *model.Filter, cell model.Cell, _ model.TypeOptionData) bool {
	ids := cell.GetStrings(model.CellData)
	var want []string
	for _, s := range strings.Split(f.Content, ",") {
		if s = strings.TrimSpace(s); s != "" {
			want = append(want, s)
		}
	}
	anyOf := func() bool {
		for _, w := range want {
			if slices.Contains(ids, w) {
				return true
			}
		}
		return false
	}
	switch f.Condition {
	case model.FilterIsEmpty:
		return len(ids) == 0
	case model.FilterIsNotEmpty:
		return len(ids) > 0
	case model.FilterIs:
		if h.t == model.FieldSingleSelect {
			return anyOf()
		}
		a, b := slices.Clone(ids), slices.Clone(want)
		slices.Sort(a)
		slices.Sort(b)
		return slices.Equal(a, b)
	case model.FilterIsNot:
		if h.t == model.FieldSingleSelect {
			return !anyOf()
		}
		a, b := slices.Clone(ids), slices.Clone(want)
		slices.Sort(a)
		slices.Sort(b)
		return !slices.Equal(a, b)
	case model.FilterContains:
		return anyOf()
	case model.FilterDoesNotContain:
		return !anyOf()
	}
	return false
}
