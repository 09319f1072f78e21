// Layout and per-field display settings of a view.

package view

import (
	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
)

// LayoutType returns the view's layout.
func (e *Editor) LayoutType() (model.Layout, error) {
	v, err := e.View()
	if err != nil {
		return "", err
	}
	return v.Layout, nil
}

// UpdateLayout switches the view's layout. Switching to calendar needs the
// date field placing rows; dateFieldID is ignored for the other layouts.
func (e *Editor) UpdateLayout(layout model.Layout, dateFieldID string) error {
	switch layout {
	case model.LayoutGrid, model.LayoutBoard:
	case model.LayoutCalendar:
		f, ok := e.field(dateFieldID)
		if !ok {
			return errors.RecordNotFound("field", dateFieldID)
		}
		if f.Type != model.FieldDateTime {
			return errors.InvalidData("calendar layout requires a date field")
		}
	default:
		return errors.InvalidData("unknown layout " + string(layout))
	}
	var setting model.LayoutSetting
	err := e.updateView(func(v *model.View) error {
		v.Layout = layout
		switch layout {
		case model.LayoutCalendar:
			if v.LayoutSetting.Calendar == nil {
				v.LayoutSetting.Calendar = &model.CalendarLayoutSetting{ShowWeekends: true}
			}
			v.LayoutSetting.Calendar.FieldID = dateFieldID
		case model.LayoutBoard:
			if v.LayoutSetting.Board == nil {
				v.LayoutSetting.Board = &model.BoardLayoutSetting{CollapseHiddenGroups: true}
			}
		}
		setting = v.LayoutSetting
		return nil
	})
	if err != nil {
		return err
	}
	e.send(notify.DidUpdateViewLayout, layout)
	e.send(notify.DidUpdateLayoutSettings, setting)
	return nil
}

// LayoutSetting returns the settings of the given layout.
func (e *Editor) LayoutSetting(layout model.Layout) (model.LayoutSetting, error) {
	v, err := e.View()
	if err != nil {
		return model.LayoutSetting{}, err
	}
	var out model.LayoutSetting
	switch layout {
	case model.LayoutCalendar:
		out.Calendar = v.LayoutSetting.Calendar
	case model.LayoutBoard:
		out.Board = v.LayoutSetting.Board
	}
	return out, nil
}

// SetLayoutSetting replaces the settings present in s.
func (e *Editor) SetLayoutSetting(s model.LayoutSetting) error {
	if s.Calendar != nil {
		f, ok := e.field(s.Calendar.FieldID)
		if !ok {
			return errors.RecordNotFound("field", s.Calendar.FieldID)
		}
		if f.Type != model.FieldDateTime {
			return errors.InvalidData("calendar layout requires a date field")
		}
	}
	var setting model.LayoutSetting
	err := e.updateView(func(v *model.View) error {
		if s.Calendar != nil {
			c := *s.Calendar
			v.LayoutSetting.Calendar = &c
		}
		if s.Board != nil {
			b := *s.Board
			v.LayoutSetting.Board = &b
		}
		setting = v.LayoutSetting
		return nil
	})
	if err != nil {
		return err
	}
	e.send(notify.DidUpdateLayoutSettings, setting)
	return nil
}

// CalendarEvents returns the visible rows placed on the calendar.
func (e *Editor) CalendarEvents() ([]model.CalendarEvent, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	if v.LayoutSetting.Calendar == nil {
		return nil, nil
	}
	dateField, ok := e.field(v.LayoutSetting.Calendar.FieldID)
	if !ok {
		return nil, errors.RecordNotFound("field", v.LayoutSetting.Calendar.FieldID)
	}
	var primary *model.Field
	e.doc.Read(func(s *document.State) { primary, _ = s.PrimaryField() })
	var out []model.CalendarEvent
	for _, r := range e.VisibleRows() {
		out = append(out, calendarEvent(r, dateField, primary))
	}
	return out, nil
}

// CalendarEvent returns the calendar event of one row.
func (e *Editor) CalendarEvent(id model.RowID) (model.CalendarEvent, error) {
	events, err := e.CalendarEvents()
	if err != nil {
		return model.CalendarEvent{}, err
	}
	for _, ev := range events {
		if ev.RowID == id {
			return ev, nil
		}
	}
	return model.CalendarEvent{}, errors.RecordNotFound("row", string(id))
}

func calendarEvent(r *model.Row, dateField, primary *model.Field) model.CalendarEvent {
	ev := model.CalendarEvent{RowID: r.ID}
	if primary != nil {
		ev.Title = fieldtype.RowString(r, primary)
	}
	if ts, ok := fieldtype.ReadCell(r, dateField).GetInt(fieldtype.CellTimestamp); ok {
		ev.Timestamp = ts
		ev.IsScheduled = true
	}
	return ev
}

func defaultFieldSettings(fieldID string) model.FieldSettings {
	return model.FieldSettings{FieldID: fieldID, Visibility: model.VisibilityAlways}
}

// FieldSettings returns the settings of the given fields, defaults for the
// ones never configured.
func (e *Editor) FieldSettings(fieldIDs []string) ([]model.FieldSettings, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	out := make([]model.FieldSettings, 0, len(fieldIDs))
	for _, id := range fieldIDs {
		s, ok := v.FieldSettings[id]
		if !ok {
			s = defaultFieldSettings(id)
		}
		out = append(out, s)
	}
	return out, nil
}

// AllFieldSettings returns the settings of every field in view order.
func (e *Editor) AllFieldSettings() ([]model.FieldSettings, error) {
	v, err := e.View()
	if err != nil {
		return nil, err
	}
	return e.FieldSettings(v.FieldOrders)
}

// UpdateFieldSettings applies a changeset to one field's settings.
func (e *Editor) UpdateFieldSettings(cs model.FieldSettingsChangeset) (model.FieldSettings, error) {
	if _, ok := e.field(cs.FieldID); !ok {
		return model.FieldSettings{}, errors.RecordNotFound("field", cs.FieldID)
	}
	var out model.FieldSettings
	err := e.updateView(func(v *model.View) error {
		s, ok := v.FieldSettings[cs.FieldID]
		if !ok {
			s = defaultFieldSettings(cs.FieldID)
		}
		if cs.Visibility != nil {
			s.Visibility = *cs.Visibility
		}
		if cs.Width != nil {
			if *cs.Width < 0 {
				return errors.InvalidData("width must not be negative")
			}
			s.Width = *cs.Width
		}
		if cs.WrapCellContent != nil {
			s.WrapCellContent = *cs.WrapCellContent
		}
		if v.FieldSettings == nil {
			v.FieldSettings = map[string]model.FieldSettings{}
		}
		v.FieldSettings[cs.FieldID] = s
		out = s
		return nil
	})
	if err != nil {
		return model.FieldSettings{}, err
	}
	e.send(notify.DidUpdateFieldSettings, out)
	return out, nil
}

// Setting returns every setting of the view.
func (e *Editor) Setting() (model.ViewSetting, error) {
	v, err := e.View()
	if err != nil {
		return model.ViewSetting{}, err
	}
	all, err := e.AllFieldSettings()
	if err != nil {
		return model.ViewSetting{}, err
	}
	fs := make(map[string]model.FieldSettings, len(all))
	for _, s := range all {
		fs[s.FieldID] = s
	}
	return model.ViewSetting{
		Layout:        v.Layout,
		LayoutSetting: v.LayoutSetting,
		Filters:       v.Filters,
		Sorts:         v.Sorts,
		Groups:        v.Groups,
		FieldSettings: fs,
	}, nil
}
