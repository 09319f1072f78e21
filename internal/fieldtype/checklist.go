package fieldtype

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// Checklist cell keys.
const (
	CellOptions  = "options"
	CellSelected = "selected"
)

// ChecklistTypeOption configures a checklist field. Tasks live in the cells.
type ChecklistTypeOption struct{}

// ChecklistChangeset edits the tasks of a checklist cell.
type ChecklistChangeset struct {
	// Insert appends new tasks by name.
	Insert []string `json:"insert,omitempty"`
	// Update renames existing tasks matched by ID.
	Update []model.SelectOption `json:"update,omitempty"`
	Delete []string             `json:"delete,omitempty"`
	// Toggle flips the completion of the tasks.
	Toggle []string `json:"toggle,omitempty"`
	// Replace, when non-nil, sets the whole task list, keeping completion of
	// tasks whose IDs survive.
	Replace []model.SelectOption `json:"replace,omitempty"`
}

// ChecklistData is the decoded form of a checklist cell.
type ChecklistData struct {
	Options  []model.SelectOption
	Selected []string
}

// DecodeChecklist reads a checklist cell.
func DecodeChecklist(cell model.Cell) ChecklistData {
	var d ChecklistData
	cell.Decode(CellOptions, &d.Options)
	d.Selected = slices.Clone(cell.GetStrings(CellSelected))
	return d
}

// Percentage returns the fraction of completed tasks, 0 when there are none.
func (d ChecklistData) Percentage() float64 {
	if len(d.Options) == 0 {
		return 0
	}
	return float64(len(d.Selected)) / float64(len(d.Options))
}

type checklistHandler struct{}

func (checklistHandler) Type() model.FieldType { return model.FieldChecklist }

func (checklistHandler) DefaultTypeOption() model.TypeOptionData {
	return EncodeTypeOption(ChecklistTypeOption{})
}

func (checklistHandler) CellString(cell model.Cell, _ model.TypeOptionData) string {
	d := DecodeChecklist(cell)
	if len(d.Options) == 0 {
		return ""
	}
	names := make([]string, len(d.Options))
	for i, o := range d.Options {
		names[i] = o.Name
	}
	return fmt.Sprintf("%s (%d/%d)", strings.Join(names, ","), len(d.Selected), len(d.Options))
}

func (checklistHandler) ApplyChangeset(cs any, prev model.Cell, _ model.TypeOptionData) (model.Cell, error) {
	var change ChecklistChangeset
	switch v := cs.(type) {
	case ChecklistChangeset:
		change = v
	case *ChecklistChangeset:
		change = *v
	default:
		s, err := changesetString(cs)
		if err != nil {
			return nil, errors.InvalidData("expected a checklist changeset")
		}
		change.Replace = []model.SelectOption{}
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				change.Replace = append(change.Replace, NewSelectOption(name))
			}
		}
	}
	d := DecodeChecklist(prev)
	if change.Replace != nil {
		d.Options = slices.Clone(change.Replace)
	}
	for _, name := range change.Insert {
		d.Options = append(d.Options, NewSelectOption(name))
	}
	for _, u := range change.Update {
		for i := range d.Options {
			if d.Options[i].ID == u.ID {
				d.Options[i] = u
			}
		}
	}
	d.Options = slices.DeleteFunc(d.Options, func(o model.SelectOption) bool { return slices.Contains(change.Delete, o.ID) })
	for _, id := range change.Toggle {
		if i := slices.Index(d.Selected, id); i >= 0 {
			d.Selected = slices.Delete(d.Selected, i, i+1)
		} else {
			d.Selected = append(d.Selected, id)
		}
	}
	// Drop completion of tasks that no longer exist.
	d.Selected = slices.DeleteFunc(d.Selected, func(id string) bool {
		return !slices.ContainsFunc(d.Options, func(o model.SelectOption) bool { return o.ID == id })
	})
	c := model.NewCell(model.FieldChecklist)
	if d.Options == nil {
		d.Options = []model.SelectOption{}
	}
	if d.Selected == nil {
		d.Selected = []string{}
	}
	c[CellOptions] = d.Options
	c[CellSelected] = d.Selected
	return c, nil
}

func (checklistHandler) IsEmpty(cell model.Cell) bool {
	return len(DecodeChecklist(cell).Options) == 0
}

func (checklistHandler) Compare(a, b model.Cell, _ model.TypeOptionData) int {
	return cmp.Compare(DecodeChecklist(a).Percentage(), DecodeChecklist(b).Percentage())
}

func (checklistHandler) Match(f *model.Filter, cell model.Cell, _ model.TypeOptionData) bool {
	d := DecodeChecklist(cell)
	complete := len(d.Options) > 0 && len(d.Selected) == len(d.Options)
	switch f.Condition {
	case model.FilterIsChecked:
		return complete
	case model.FilterIsUnchecked:
		return !complete
	case model.FilterIsEmpty:
		return len(d.Options) == 0
	case model.FilterIsNotEmpty:
		return len(d.Options) > 0
	}
	return false
}
