// Groups the rows of a view by a select, checkbox or URL field.

package view

import (
	"slices"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
)

func groupable(t model.FieldType) bool {
	return t.IsSelect() || t == model.FieldCheckbox || t == model.FieldURL
}

// groupIDsForRow returns the groups a row belongs to. The default group,
// for rows without a value, has the field's ID.
func groupIDsForRow(f *model.Field, row *model.Row) []string {
	cell := fieldtype.ReadCell(row, f)
	switch {
	case f.Type.IsSelect():
		to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
		var ids []string
		for _, id := range cell.GetStrings(model.CellData) {
			if _, ok := to.Option(id); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return []string{f.ID}
		}
		return ids
	case f.Type == model.FieldCheckbox:
		if cell.GetBool(model.CellData) {
			return []string{fieldtype.CheckboxYes}
		}
		return []string{fieldtype.CheckboxNo}
	case f.Type == model.FieldURL:
		if s := cell.GetString(model.CellData); s != "" {
			return []string{s}
		}
	}
	return []string{f.ID}
}

// groupDefs returns the groups a field produces, in natural order.
func groupDefs(f *model.Field, rows []*model.Row) []*model.Group {
	def := &model.Group{ID: f.ID, FieldID: f.ID, Name: "No " + f.Name, IsDefault: true, Visible: true}
	switch {
	case f.Type.IsSelect():
		out := []*model.Group{def}
		to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
		for _, o := range to.Options {
			out = append(out, &model.Group{ID: o.ID, FieldID: f.ID, Name: o.Name, Visible: true})
		}
		return out
	case f.Type == model.FieldCheckbox:
		return []*model.Group{
			{ID: fieldtype.CheckboxYes, FieldID: f.ID, Name: fieldtype.CheckboxYes, Visible: true},
			{ID: fieldtype.CheckboxNo, FieldID: f.ID, Name: fieldtype.CheckboxNo, Visible: true},
		}
	case f.Type == model.FieldURL:
		out := []*model.Group{def}
		for _, r := range rows {
			if s := fieldtype.ReadCell(r, f).GetString(model.CellData); s != "" {
				if !slices.ContainsFunc(out, func(g *model.Group) bool { return g.ID == s }) {
					out = append(out, &model.Group{ID: s, FieldID: f.ID, Name: s, Visible: true})
				}
			}
		}
		return out
	}
	return nil
}

// orderGroups applies the persisted order and visibility to defs. Groups not
// persisted yet go last in natural order.
func orderGroups(defs []*model.Group, entries []model.GroupEntry) []*model.Group {
	out := make([]*model.Group, 0, len(defs))
	for _, e := range entries {
		if i := slices.IndexFunc(defs, func(g *model.Group) bool { return g.ID == e.ID }); i >= 0 {
			g := defs[i]
			g.Visible = e.Visible
			out = append(out, g)
		}
	}
	for _, g := range defs {
		if !slices.ContainsFunc(entries, func(e model.GroupEntry) bool { return e.ID == g.ID }) {
			out = append(out, g)
		}
	}
	return out
}

func entriesFor(groups []*model.Group) []model.GroupEntry {
	out := make([]model.GroupEntry, len(groups))
	for i, g := range groups {
		out[i] = model.GroupEntry{ID: g.ID, Visible: g.Visible}
	}
	return out
}

// groupSetting returns the active grouping and its field.
func (e *Editor) groupSetting() (*model.GroupSetting, *model.Field) {
	v, err := e.View()
	if err != nil || len(v.Groups) == 0 {
		return nil, nil
	}
	gs := v.Groups[0]
	f, ok := e.field(gs.FieldID)
	if !ok || !groupable(f.Type) {
		return nil, nil
	}
	return &gs, f
}

// Regroup recomputes group membership from the visible cached rows.
func (e *Editor) Regroup() {
	gs, f := e.groupSetting()
	if gs == nil {
		e.mu.Lock()
		e.groups = nil
		e.mu.Unlock()
		return
	}
	rows := e.VisibleRows()
	groups := orderGroups(groupDefs(f, rows), gs.Groups)
	for _, r := range rows {
		for _, id := range groupIDsForRow(f, r) {
			if i := slices.IndexFunc(groups, func(g *model.Group) bool { return g.ID == id }); i >= 0 {
				groups[i].Rows = append(groups[i].Rows, r.ID)
			}
		}
	}
	e.mu.Lock()
	e.groups = groups
	e.mu.Unlock()
}

// Groups returns the computed groups.
func (e *Editor) Groups() []*model.Group {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*model.Group, len(e.groups))
	for i, g := range e.groups {
		c := *g
		c.Rows = slices.Clone(g.Rows)
		out[i] = &c
	}
	return out
}

// LoadGroups computes the groups if needed and returns them.
func (e *Editor) LoadGroups() ([]*model.Group, error) {
	gs, _ := e.groupSetting()
	if gs == nil {
		return nil, errors.RecordNotFound("group setting", e.id)
	}
	e.mu.RLock()
	computed := e.groups != nil
	e.mu.RUnlock()
	if !computed {
		e.Regroup()
	}
	return e.Groups(), nil
}

// Group returns one group.
func (e *Editor) Group(id string) (*model.Group, error) {
	groups, err := e.LoadGroups()
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, errors.RecordNotFound("group", id)
}

// GroupByField groups the view by a field, replacing the current grouping.
// Setting the same field and content again is a no-op. Returns whether the
// grouping changed.
func (e *Editor) GroupByField(fieldID, content string) (bool, error) {
	f, ok := e.field(fieldID)
	if !ok {
		return false, errors.RecordNotFound("field", fieldID)
	}
	if !groupable(f.Type) {
		return false, errors.InvalidData("cannot group by a " + string(f.Type) + " field")
	}
	changed := false
	err := e.updateView(func(v *model.View) error {
		gs := model.GroupSetting{ID: model.NewID(), FieldID: fieldID, FieldType: f.Type, Content: content}
		if len(v.Groups) != 0 && v.Groups[0].FieldID == fieldID {
			gs.ID = v.Groups[0].ID
			gs.Groups = v.Groups[0].Groups
		}
		gs.Groups = entriesFor(orderGroups(groupDefs(f, e.CachedRows()), gs.Groups))
		if len(v.Groups) != 0 && model.ContentHash(v.Groups[0]) == model.ContentHash(gs) {
			return errors.Unchanged
		}
		v.Groups = []model.GroupSetting{gs}
		changed = true
		return nil
	})
	if err != nil || !changed {
		return false, err
	}
	e.Regroup()
	e.send(notify.DidGroupByField, e.Groups())
	return true, nil
}

// CreateGroup adds an option to the grouping select field and a group for
// it. Returns the updated field.
func (e *Editor) CreateGroup(name string) (*model.Group, *model.Field, error) {
	gs, f := e.groupSetting()
	if gs == nil {
		return nil, nil, errors.RecordNotFound("group setting", e.id)
	}
	if !f.Type.IsSelect() {
		return nil, nil, errors.Internal("groups of a " + string(f.Type) + " field are derived from the cells")
	}
	opt := fieldtype.NewSelectOption(name)
	var updated *model.Field
	err := e.doc.Write(func(s *document.State) error {
		if err := s.UpdateField(f.ID, func(f *model.Field) error {
			to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
			to.Upsert(opt)
			f.SetTypeOption(f.Type, fieldtype.EncodeTypeOption(to))
			updated = f.Clone()
			return nil
		}); err != nil {
			return err
		}
		return s.UpdateView(e.id, func(v *model.View) error {
			v.Groups[0].Groups = append(v.Groups[0].Groups, model.GroupEntry{ID: opt.ID, Visible: true})
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	e.Regroup()
	e.send(notify.DidUpdateGroups, e.Groups())
	g, err := e.Group(opt.ID)
	return g, updated, err
}

// MoveGroup moves a group to the position of another.
func (e *Editor) MoveGroup(fromID, toID string) error {
	if fromID == toID {
		return nil
	}
	if _, err := e.LoadGroups(); err != nil {
		return err
	}
	groups := e.Groups()
	fi := slices.IndexFunc(groups, func(g *model.Group) bool { return g.ID == fromID })
	ti := slices.IndexFunc(groups, func(g *model.Group) bool { return g.ID == toID })
	if fi < 0 {
		return errors.RecordNotFound("group", fromID)
	}
	if ti < 0 {
		return errors.RecordNotFound("group", toID)
	}
	g := groups[fi]
	groups = slices.Delete(groups, fi, fi+1)
	groups = slices.Insert(groups, ti, g)
	if err := e.updateView(func(v *model.View) error {
		v.Groups[0].Groups = entriesFor(groups)
		return nil
	}); err != nil {
		return err
	}
	e.Regroup()
	e.send(notify.DidUpdateGroups, e.Groups())
	return nil
}

// UpdateGroups renames or hides groups. Renaming a select group renames the
// option; the updated field is returned in that case.
func (e *Editor) UpdateGroups(changes []model.GroupUpdate) (*model.Field, error) {
	gs, f := e.groupSetting()
	if gs == nil {
		return nil, errors.RecordNotFound("group setting", e.id)
	}
	if _, err := e.LoadGroups(); err != nil {
		return nil, err
	}
	groups := e.Groups()
	var renamedField *model.Field
	err := e.doc.Write(func(s *document.State) error {
		for _, c := range changes {
			i := slices.IndexFunc(groups, func(g *model.Group) bool { return g.ID == c.GroupID })
			if i < 0 {
				return errors.RecordNotFound("group", c.GroupID)
			}
			if c.Visible != nil {
				groups[i].Visible = *c.Visible
			}
			if c.Name != nil && *c.Name != groups[i].Name {
				if !f.Type.IsSelect() || groups[i].IsDefault {
					return errors.Internal("group " + c.GroupID + " cannot be renamed")
				}
				name := *c.Name
				if err := s.UpdateField(f.ID, func(f *model.Field) error {
					to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
					o, _ := to.Option(c.GroupID)
					o.Name = name
					to.Upsert(o)
					f.SetTypeOption(f.Type, fieldtype.EncodeTypeOption(to))
					renamedField = f.Clone()
					return nil
				}); err != nil {
					return err
				}
			}
		}
		return s.UpdateView(e.id, func(v *model.View) error {
			v.Groups[0].Groups = entriesFor(groups)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.Regroup()
	e.send(notify.DidUpdateGroups, e.Groups())
	return renamedField, nil
}

// GroupDeletion is the select option whose group was deleted; the caller
// removes it from the field and its cells.
type GroupDeletion struct {
	FieldID  string
	OptionID string
}

// DeleteGroup removes a select group.
func (e *Editor) DeleteGroup(id string) (GroupDeletion, error) {
	gs, f := e.groupSetting()
	if gs == nil {
		return GroupDeletion{}, errors.RecordNotFound("group setting", e.id)
	}
	g, err := e.Group(id)
	if err != nil {
		return GroupDeletion{}, err
	}
	if g.IsDefault || !f.Type.IsSelect() {
		return GroupDeletion{}, errors.Internal("group " + id + " cannot be deleted")
	}
	if err := e.updateView(func(v *model.View) error {
		v.Groups[0].Groups = slices.DeleteFunc(v.Groups[0].Groups, func(x model.GroupEntry) bool { return x.ID == id })
		return nil
	}); err != nil {
		return GroupDeletion{}, err
	}
	return GroupDeletion{FieldID: f.ID, OptionID: id}, nil
}

// MoveGroupRowChangeset returns the cell change moving row from one group
// to another.
func (e *Editor) MoveGroupRowChangeset(row *model.Row, fromGroupID, toGroupID string) (string, any, error) {
	gs, f := e.groupSetting()
	if gs == nil {
		return "", nil, errors.RecordNotFound("group setting", e.id)
	}
	for _, id := range []string{fromGroupID, toGroupID} {
		if _, err := e.Group(id); err != nil {
			return "", nil, err
		}
	}
	toDefault := toGroupID == f.ID
	switch {
	case f.Type == model.FieldSingleSelect:
		if toDefault {
			return f.ID, fieldtype.SelectChangeset{DeleteOptionIDs: groupIDsForRow(f, row)}, nil
		}
		return f.ID, fieldtype.SelectChangeset{InsertOptionIDs: []string{toGroupID}}, nil
	case f.Type == model.FieldMultiSelect:
		if toDefault {
			return f.ID, fieldtype.SelectChangeset{DeleteOptionIDs: groupIDsForRow(f, row)}, nil
		}
		cs := fieldtype.SelectChangeset{InsertOptionIDs: []string{toGroupID}}
		if fromGroupID != f.ID && fromGroupID != toGroupID {
			cs.DeleteOptionIDs = []string{fromGroupID}
		}
		return f.ID, cs, nil
	case f.Type == model.FieldCheckbox:
		return f.ID, toGroupID == fieldtype.CheckboxYes, nil
	case f.Type == model.FieldURL:
		if toDefault {
			return f.ID, "", nil
		}
		return f.ID, toGroupID, nil
	}
	return "", nil, errors.Internal("unsupported group field")
}
