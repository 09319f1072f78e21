// Defines view types for saved layouts over the shared rows.

package model

import "slices"

// Layout is the presentation of a view.
type Layout string

const (
	// LayoutGrid displays rows in a spreadsheet-like table.
	LayoutGrid Layout = "grid"
	// LayoutBoard displays rows in a kanban board grouped by a field.
	LayoutBoard Layout = "board"
	// LayoutCalendar displays rows on a calendar by date field.
	LayoutCalendar Layout = "calendar"
)

// View is one saved presentation of the database rows.
type View struct {
	ID          string     `json:"id" jsonschema:"description=Unique view identifier"`
	Name        string     `json:"name" jsonschema:"description=View display name"`
	Layout      Layout     `json:"layout" jsonschema:"description=View layout (grid/board/calendar)"`
	RowOrders   []RowOrder `json:"row_orders,omitempty" jsonschema:"description=Row ordering of this view"`
	FieldOrders []string   `json:"field_orders,omitempty" jsonschema:"description=Field ordering of this view"`

	Filters       []Filter                 `json:"filters,omitempty" jsonschema:"description=Filter conditions"`
	Sorts         []Sort                   `json:"sorts,omitempty" jsonschema:"description=Sort order"`
	Groups        []GroupSetting           `json:"groups,omitempty" jsonschema:"description=Grouping configuration"`
	Calculations  []Calculation            `json:"calculations,omitempty" jsonschema:"description=Per-field aggregates"`
	FieldSettings map[string]FieldSettings `json:"field_settings,omitempty" jsonschema:"description=Per-field display settings"`
	LayoutSetting LayoutSetting            `json:"layout_setting,omitempty" jsonschema:"description=Layout specific settings"`
}

// Clone returns a deep copy of the view.
func (v *View) Clone() *View {
	c := *v
	c.RowOrders = slices.Clone(v.RowOrders)
	c.FieldOrders = slices.Clone(v.FieldOrders)
	c.Filters = cloneFilters(v.Filters)
	c.Sorts = slices.Clone(v.Sorts)
	c.Groups = make([]GroupSetting, len(v.Groups))
	for i := range v.Groups {
		c.Groups[i] = v.Groups[i]
		c.Groups[i].Groups = slices.Clone(v.Groups[i].Groups)
	}
	if v.Groups == nil {
		c.Groups = nil
	}
	c.Calculations = slices.Clone(v.Calculations)
	if v.FieldSettings != nil {
		c.FieldSettings = make(map[string]FieldSettings, len(v.FieldSettings))
		for k, s := range v.FieldSettings {
			c.FieldSettings[k] = s
		}
	}
	if v.LayoutSetting.Calendar != nil {
		cal := *v.LayoutSetting.Calendar
		c.LayoutSetting.Calendar = &cal
	}
	if v.LayoutSetting.Board != nil {
		b := *v.LayoutSetting.Board
		c.LayoutSetting.Board = &b
	}
	return &c
}

// RowIndex returns the position of the row in this view, or -1.
func (v *View) RowIndex(id RowID) int {
	for i := range v.RowOrders {
		if v.RowOrders[i].ID == id {
			return i
		}
	}
	return -1
}

// FilterType distinguishes leaf conditions from compound ones.
type FilterType string

const (
	// FilterData is a leaf condition on one field.
	FilterData FilterType = "data"
	// FilterAnd matches when every child matches.
	FilterAnd FilterType = "and"
	// FilterOr matches when any child matches.
	FilterOr FilterType = "or"
)

// FilterCondition is the comparison applied by a leaf filter.
type FilterCondition string

const (
	// FilterIs matches if the value equals the content.
	FilterIs FilterCondition = "is"
	// FilterIsNot matches if the value differs from the content.
	FilterIsNot FilterCondition = "is_not"
	// FilterContains matches if the value contains the content (text).
	FilterContains FilterCondition = "contains"
	// FilterDoesNotContain matches if the value does not contain the content.
	FilterDoesNotContain FilterCondition = "does_not_contain"
	// FilterStartsWith matches if the value starts with the content.
	FilterStartsWith FilterCondition = "starts_with"
	// FilterEndsWith matches if the value ends with the content.
	FilterEndsWith FilterCondition = "ends_with"
	// FilterGreater matches if the value is greater than the content.
	FilterGreater FilterCondition = "gt"
	// FilterLess matches if the value is less than the content.
	FilterLess FilterCondition = "lt"
	// FilterGreaterOrEqual matches if the value is greater than or equal to the content.
	FilterGreaterOrEqual FilterCondition = "gte"
	// FilterLessOrEqual matches if the value is less than or equal to the content.
	FilterLessOrEqual FilterCondition = "lte"
	// FilterIsEmpty matches if the cell is absent or empty.
	FilterIsEmpty FilterCondition = "is_empty"
	// FilterIsNotEmpty matches if the cell has a value.
	FilterIsNotEmpty FilterCondition = "is_not_empty"
	// FilterIsChecked matches checked checkboxes and completed checklists.
	FilterIsChecked FilterCondition = "is_checked"
	// FilterIsUnchecked matches unchecked checkboxes and incomplete checklists.
	FilterIsUnchecked FilterCondition = "is_unchecked"
)

// Filter is a node of a view's filter tree.
type Filter struct {
	ID        string          `json:"id" jsonschema:"description=Unique filter identifier"`
	Type      FilterType      `json:"type" jsonschema:"description=Leaf or compound filter"`
	FieldID   string          `json:"field_id,omitempty" jsonschema:"description=Field to filter on"`
	Condition FilterCondition `json:"condition,omitempty" jsonschema:"description=Filter condition"`
	Content   string          `json:"content,omitempty" jsonschema:"description=Value to compare against"`
	Children  []Filter        `json:"children,omitempty" jsonschema:"description=Children of an and/or filter"`
}

// Find returns the filter with the given ID in the tree rooted at f.
func (f *Filter) Find(id string) *Filter {
	if f.ID == id {
		return f
	}
	for i := range f.Children {
		if found := f.Children[i].Find(id); found != nil {
			return found
		}
	}
	return nil
}

// References reports whether the tree rooted at f uses the field.
func (f *Filter) References(fieldID string) bool {
	if f.FieldID == fieldID {
		return true
	}
	for i := range f.Children {
		if f.Children[i].References(fieldID) {
			return true
		}
	}
	return false
}

func cloneFilters(in []Filter) []Filter {
	if in == nil {
		return nil
	}
	out := make([]Filter, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Children = cloneFilters(in[i].Children)
	}
	return out
}

// SortCondition is the direction of a sort.
type SortCondition string

const (
	// SortAscending sorts in ascending order (A-Z, 0-9, oldest-newest).
	SortAscending SortCondition = "asc"
	// SortDescending sorts in descending order (Z-A, 9-0, newest-oldest).
	SortDescending SortCondition = "desc"
)

// Sort orders rows by one field.
type Sort struct {
	ID        string        `json:"id" jsonschema:"description=Unique sort identifier"`
	FieldID   string        `json:"field_id" jsonschema:"description=Field to sort by"`
	Condition SortCondition `json:"condition" jsonschema:"description=Sort direction (asc/desc)"`
}

// GroupSetting groups a view's rows by one field.
type GroupSetting struct {
	ID        string       `json:"id" jsonschema:"description=Unique group setting identifier"`
	FieldID   string       `json:"field_id" jsonschema:"description=Field to group by"`
	FieldType FieldType    `json:"field_type" jsonschema:"description=Type of the group field"`
	Groups    []GroupEntry `json:"groups,omitempty" jsonschema:"description=Ordered groups and their visibility"`
	Content   string       `json:"content,omitempty" jsonschema:"description=Type specific grouping configuration"`
}

// GroupEntry is the persisted order/visibility of one group.
type GroupEntry struct {
	ID      string `json:"id" jsonschema:"description=Group identifier"`
	Visible bool   `json:"visible" jsonschema:"description=Whether the group is shown"`
}

// Group is a computed bucket of rows.
type Group struct {
	ID        string  `json:"id"`
	FieldID   string  `json:"field_id"`
	Name      string  `json:"name"`
	IsDefault bool    `json:"is_default,omitempty"`
	Visible   bool    `json:"visible"`
	Rows      []RowID `json:"rows"`
}

// GroupRowsChange reports the row membership changes of one group.
type GroupRowsChange struct {
	GroupID      string  `json:"group_id"`
	InsertedRows []RowID `json:"inserted_rows,omitempty"`
	DeletedRows  []RowID `json:"deleted_rows,omitempty"`
}

// GroupUpdate renames or hides a group; nil members are left alone.
type GroupUpdate struct {
	GroupID string  `json:"group_id"`
	Name    *string `json:"name,omitempty"`
	Visible *bool   `json:"visible,omitempty"`
}

// CalculationType is the aggregate computed over a field.
type CalculationType string

const (
	CalcAverage       CalculationType = "average"
	CalcMax           CalculationType = "max"
	CalcMedian        CalculationType = "median"
	CalcMin           CalculationType = "min"
	CalcSum           CalculationType = "sum"
	CalcCount         CalculationType = "count"
	CalcCountEmpty    CalculationType = "count_empty"
	CalcCountNonEmpty CalculationType = "count_non_empty"
)

// Calculation is an aggregate shown under a field.
type Calculation struct {
	ID      string          `json:"id" jsonschema:"description=Unique calculation identifier"`
	FieldID string          `json:"field_id" jsonschema:"description=Field aggregated"`
	Type    CalculationType `json:"type" jsonschema:"description=Aggregate kind"`
	Value   string          `json:"value,omitempty" jsonschema:"description=Last computed value"`
}

// Visibility controls whether a field is shown in a view.
type Visibility string

const (
	VisibilityAlways   Visibility = "always"
	VisibilityNonEmpty Visibility = "non_empty"
	VisibilityHidden   Visibility = "hidden"
)

// FieldSettings are per-view display settings for one field.
type FieldSettings struct {
	FieldID         string     `json:"field_id"`
	Visibility      Visibility `json:"visibility"`
	Width           int        `json:"width,omitempty"`
	WrapCellContent bool       `json:"wrap_cell_content,omitempty"`
}

// FieldSettingsChangeset updates one field's settings; nil members are left alone.
type FieldSettingsChangeset struct {
	FieldID         string      `json:"field_id"`
	Visibility      *Visibility `json:"visibility,omitempty"`
	Width           *int        `json:"width,omitempty"`
	WrapCellContent *bool       `json:"wrap_cell_content,omitempty"`
}

// LayoutSetting holds the settings of the layouts that have any.
type LayoutSetting struct {
	Calendar *CalendarLayoutSetting `json:"calendar,omitempty"`
	Board    *BoardLayoutSetting    `json:"board,omitempty"`
}

// CalendarLayoutSetting configures the calendar layout.
type CalendarLayoutSetting struct {
	FieldID         string `json:"field_id" jsonschema:"description=Date field placing rows on the calendar"`
	FirstDayOfWeek  int    `json:"first_day_of_week,omitempty"`
	ShowWeekends    bool   `json:"show_weekends"`
	ShowWeekNumbers bool   `json:"show_week_numbers"`
}

// BoardLayoutSetting configures the board layout.
type BoardLayoutSetting struct {
	HideUngroupedColumn  bool `json:"hide_ungrouped_column,omitempty"`
	CollapseHiddenGroups bool `json:"collapse_hidden_groups"`
}

// CalendarEvent is a row placed on the calendar.
type CalendarEvent struct {
	RowID       RowID  `json:"row_id"`
	Title       string `json:"title"`
	Timestamp   int64  `json:"timestamp"`
	IsScheduled bool   `json:"is_scheduled"`
}

// ViewSetting bundles every setting of a view.
type ViewSetting struct {
	Layout        Layout                   `json:"layout"`
	LayoutSetting LayoutSetting            `json:"layout_setting"`
	Filters       []Filter                 `json:"filters"`
	Sorts         []Sort                   `json:"sorts"`
	Groups        []GroupSetting           `json:"groups"`
	FieldSettings map[string]FieldSettings `json:"field_settings"`
}
