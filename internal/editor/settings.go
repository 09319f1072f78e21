// View settings: filters, sorts, groups, calculations, layout and field
// settings. Each call is routed to the view's editor.

package editor

import (
	"context"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/view"
)

// ModifyViewFilters applies a filter changeset to a view.
func (e *Editor) ModifyViewFilters(ctx context.Context, viewID string, cs view.FilterChangeset) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	changed, err := v.ModifyFilters(cs)
	if err == nil && changed {
		e.refreshCalculations("")
	}
	return err
}

// GetAllFilters returns the filter tree of a view.
func (e *Editor) GetAllFilters(ctx context.Context, viewID string) ([]model.Filter, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.Filters(), nil
}

// GetFilter returns one filter of a view.
func (e *Editor) GetFilter(ctx context.Context, viewID, filterID string) (*model.Filter, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.Filter(filterID)
}

// CreateOrUpdateSort adds or changes a sort of a view.
func (e *Editor) CreateOrUpdateSort(ctx context.Context, viewID string, p view.UpdateSortParams) (model.Sort, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return model.Sort{}, err
	}
	return v.CreateOrUpdateSort(p)
}

// ReorderSort moves a sort to the position of another.
func (e *Editor) ReorderSort(ctx context.Context, viewID, fromID, toID string) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	return v.ReorderSort(fromID, toID)
}

// DeleteSort removes a sort of a view.
func (e *Editor) DeleteSort(ctx context.Context, viewID, sortID string) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	return v.DeleteSort(sortID)
}

// DeleteAllSorts removes every sort of a view.
func (e *Editor) DeleteAllSorts(ctx context.Context, viewID string) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	return v.DeleteAllSorts()
}

// GetAllSorts returns the sorts of a view.
func (e *Editor) GetAllSorts(ctx context.Context, viewID string) ([]model.Sort, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.Sorts(), nil
}

// SetGroupByField groups a view by a field with a type specific
// configuration. Setting the current grouping again is a no-op.
func (e *Editor) SetGroupByField(ctx context.Context, viewID, fieldID, content string) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	_, err = v.GroupByField(fieldID, content)
	return err
}

// GroupByField groups a view by a field.
func (e *Editor) GroupByField(ctx context.Context, viewID, fieldID string) error {
	return e.SetGroupByField(ctx, viewID, fieldID, "")
}

// LoadGroups returns the groups of a view.
func (e *Editor) LoadGroups(ctx context.Context, viewID string) ([]*model.Group, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.LoadGroups()
}

// GetGroup returns one group of a view.
func (e *Editor) GetGroup(ctx context.Context, viewID, groupID string) (*model.Group, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.Group(groupID)
}

// CreateGroup adds a group to a view grouped by a select field; the option
// is added to the field.
func (e *Editor) CreateGroup(ctx context.Context, viewID, name string) (*model.Group, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	g, f, err := v.CreateGroup(name)
	if err != nil {
		return nil, err
	}
	e.didUpdateFieldElsewhere(viewID, f)
	return g, nil
}

// MoveGroup moves a group to the position of another.
func (e *Editor) MoveGroup(ctx context.Context, viewID, fromID, toID string) error {
	if fromID == toID {
		return nil
	}
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	return v.MoveGroup(fromID, toID)
}

// UpdateGroup renames or hides groups of a view.
func (e *Editor) UpdateGroup(ctx context.Context, viewID string, changes []model.GroupUpdate) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	f, err := v.UpdateGroups(changes)
	if err != nil {
		return err
	}
	if f != nil {
		e.didUpdateFieldElsewhere(viewID, f)
	}
	return nil
}

// DeleteGroup deletes a select group: its option is removed from the field
// and from every cell. Returns the rows that changed.
func (e *Editor) DeleteGroup(ctx context.Context, viewID, groupID string) ([]model.RowID, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	del, err := v.DeleteGroup(groupID)
	if err != nil {
		return nil, err
	}
	return e.removeSelectOption(ctx, del.FieldID, del.OptionID)
}

// didUpdateFieldElsewhere notifies the views other than viewID, which
// already reacted to its own change.
func (e *Editor) didUpdateFieldElsewhere(viewID string, f *model.Field) {
	for _, v := range e.views.All() {
		if v.ID() != viewID {
			v.DidUpdateField(f)
		}
	}
}

// GetAllCalculations returns the aggregates of a view.
func (e *Editor) GetAllCalculations(ctx context.Context, viewID string) ([]model.Calculation, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.Calculations(), nil
}

// UpdateCalculation sets the aggregate of a field in a view.
func (e *Editor) UpdateCalculation(ctx context.Context, viewID string, p view.UpdateCalculationParams) (model.Calculation, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return model.Calculation{}, err
	}
	return v.UpdateCalculation(p)
}

// RemoveCalculation removes the aggregate of a field in a view.
func (e *Editor) RemoveCalculation(ctx context.Context, viewID, fieldID, calculationID string) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	return v.RemoveCalculation(fieldID, calculationID)
}

// GetLayoutType returns the layout of a view.
func (e *Editor) GetLayoutType(ctx context.Context, viewID string) (model.Layout, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return "", err
	}
	return v.LayoutType()
}

// UpdateViewLayout switches the layout of a view. The calendar layout uses
// the first date field, creating one named "Date" when there is none.
func (e *Editor) UpdateViewLayout(ctx context.Context, viewID string, layout model.Layout) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	dateFieldID := ""
	if layout == model.LayoutCalendar {
		if dateFieldID, err = e.calendarField(ctx, viewID); err != nil {
			return err
		}
	}
	return v.UpdateLayout(layout, dateFieldID)
}

func (e *Editor) calendarField(ctx context.Context, viewID string) (string, error) {
	var current string
	var first string
	e.doc.Read(func(s *document.State) {
		if v, ok := s.View(viewID); ok && v.LayoutSetting.Calendar != nil {
			if f, ok := s.Field(v.LayoutSetting.Calendar.FieldID); ok && f.Type == model.FieldDateTime {
				current = f.ID
			}
		}
		for _, f := range s.Fields() {
			if f.Type == model.FieldDateTime {
				first = f.ID
				break
			}
		}
	})
	if current != "" {
		return current, nil
	}
	if first != "" {
		return first, nil
	}
	f, err := e.CreateField(ctx, viewID, CreateFieldParams{Name: "Date", Type: model.FieldDateTime})
	if err != nil {
		return "", err
	}
	return f.ID, nil
}

// SetLayoutSetting changes the calendar or board settings of a view.
func (e *Editor) SetLayoutSetting(ctx context.Context, viewID string, s model.LayoutSetting) error {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return err
	}
	return v.SetLayoutSetting(s)
}

// GetLayoutSetting returns the settings of a layout of a view.
func (e *Editor) GetLayoutSetting(ctx context.Context, viewID string, layout model.Layout) (model.LayoutSetting, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return model.LayoutSetting{}, err
	}
	return v.LayoutSetting(layout)
}

// GetAllCalendarEvents returns the rows of a calendar view as events.
func (e *Editor) GetAllCalendarEvents(ctx context.Context, viewID string) ([]model.CalendarEvent, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.CalendarEvents()
}

// GetCalendarEvent returns the event of one row of a calendar view.
func (e *Editor) GetCalendarEvent(ctx context.Context, viewID string, rowID model.RowID) (model.CalendarEvent, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return model.CalendarEvent{}, err
	}
	return v.CalendarEvent(rowID)
}

// GetFieldSettings returns the settings of fields in a view.
func (e *Editor) GetFieldSettings(ctx context.Context, viewID string, fieldIDs []string) ([]model.FieldSettings, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.FieldSettings(fieldIDs)
}

// GetAllFieldSettings returns the settings of every field in a view.
func (e *Editor) GetAllFieldSettings(ctx context.Context, viewID string) ([]model.FieldSettings, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return nil, err
	}
	return v.AllFieldSettings()
}

// UpdateFieldSettings changes the settings of a field in a view.
func (e *Editor) UpdateFieldSettings(ctx context.Context, viewID string, cs model.FieldSettingsChangeset) (model.FieldSettings, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return model.FieldSettings{}, err
	}
	return v.UpdateFieldSettings(cs)
}

// GetDatabaseViewSetting returns every setting of a view.
func (e *Editor) GetDatabaseViewSetting(ctx context.Context, viewID string) (model.ViewSetting, error) {
	v, err := e.viewEditor(ctx, viewID)
	if err != nil {
		return model.ViewSetting{}, err
	}
	return v.Setting()
}
