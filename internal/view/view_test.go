package view

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
)

var (
	nameField = &model.Field{ID: "name", Name: "Name", Type: model.FieldRichText, IsPrimary: true}
	numField  = &model.Field{ID: "num", Name: "Num", Type: model.FieldNumber}
	doneField = &model.Field{ID: "done", Name: "Done", Type: model.FieldCheckbox}
)

func statusField() *model.Field {
	f := &model.Field{ID: "status", Name: "Status", Type: model.FieldSingleSelect}
	f.SetTypeOption(f.Type, fieldtype.EncodeTypeOption(fieldtype.SelectTypeOption{Options: []model.SelectOption{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
	}}))
	return f
}

func cell(t *testing.T, f *model.Field, cs any) model.Cell {
	t.Helper()
	c, err := fieldtype.ApplyToRow(cs, nil, f)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// newTestEditor builds rows r0..r{n-1}: num=i, status a for even rows and b
// for odd rows except the last which has none, done for even rows.
func newTestEditor(t *testing.T, n int) (*Editor, *notify.Recorder) {
	t.Helper()
	status := statusField()
	d := document.New("db")
	err := d.Write(func(s *document.State) error {
		for _, f := range []*model.Field{nameField, numField, status, doneField} {
			s.InsertField(f, "", model.OrderPosition{})
		}
		s.InsertView(&model.View{ID: "grid", Name: "Grid", Layout: model.LayoutGrid})
		for i := range n {
			cells := map[string]model.Cell{
				"name": cell(t, nameField, fmt.Sprintf("row %d", i)),
				"num":  cell(t, numField, i),
				"done": cell(t, doneField, i%2 == 0),
			}
			if i != n-1 {
				cells["status"] = cell(t, status, []string{"a", "b"}[i%2])
			}
			if _, _, err := s.CreateRow("grid", &model.CreateRowParams{ID: model.RowID(fmt.Sprintf("r%d", i)), Cells: cells}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := &notify.Recorder{}
	e, err := New("grid", d, rec)
	if err != nil {
		t.Fatal(err)
	}
	var orders []model.RowOrder
	var rows []*model.Row
	d.Read(func(s *document.State) {
		orders, _ = s.RowOrders("grid")
		for _, o := range orders {
			r, _ := s.Row(o.ID)
			rows = append(rows, r)
		}
	})
	e.SetRowOrders(orders)
	e.CacheRows(rows)
	return e, rec
}

func ids(rows []*model.Row) []model.RowID {
	out := make([]model.RowID, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestFilters(t *testing.T) {
	e, rec := newTestEditor(t, 5)
	changed, err := e.ModifyFilters(FilterChangeset{Insert: &InsertFilter{Filter: model.Filter{ID: "f1", FieldID: "num", Condition: model.FilterGreater, Content: "2"}}})
	if err != nil || !changed {
		t.Fatalf("expected filter inserted, got %v %v", changed, err)
	}
	if got := ids(e.VisibleRows()); !slices.Equal(got, []model.RowID{"r3", "r4"}) {
		t.Fatalf("expected [r3 r4], got %v", got)
	}
	evs := rec.Filter(notify.DidUpdateViewRowsVisibility)
	if len(evs) != 1 {
		t.Fatalf("expected 1 visibility event, got %d", len(evs))
	}
	if got := evs[0].Payload.(RowsVisibility).Invisible; len(got) != 3 {
		t.Errorf("expected 3 hidden rows, got %v", got)
	}

	t.Run("identical update is a no-op", func(t *testing.T) {
		rec.Reset()
		changed, err := e.ModifyFilters(FilterChangeset{Update: &model.Filter{ID: "f1", FieldID: "num", Condition: model.FilterGreater, Content: "2"}})
		if err != nil || changed {
			t.Fatalf("expected no change, got %v %v", changed, err)
		}
		if n := len(rec.Events()); n != 0 {
			t.Errorf("expected no events, got %d", n)
		}
	})
	t.Run("or group", func(t *testing.T) {
		_, err := e.ModifyFilters(FilterChangeset{Update: &model.Filter{ID: "f1", Type: model.FilterOr}})
		if err != nil {
			t.Fatal(err)
		}
		for _, content := range []string{"0", "4"} {
			cs := FilterChangeset{Insert: &InsertFilter{ParentID: "f1", Filter: model.Filter{FieldID: "num", Condition: model.FilterIs, Content: content}}}
			if _, err := e.ModifyFilters(cs); err != nil {
				t.Fatal(err)
			}
		}
		if got := ids(e.VisibleRows()); !slices.Equal(got, []model.RowID{"r0", "r4"}) {
			t.Fatalf("expected [r0 r4], got %v", got)
		}
	})
	t.Run("in place", func(t *testing.T) {
		rows := e.CachedRows()
		e.FilterRowsAndNotify(&rows)
		if got := ids(rows); !slices.Equal(got, []model.RowID{"r0", "r4"}) {
			t.Fatalf("expected [r0 r4], got %v", got)
		}
	})
	t.Run("delete", func(t *testing.T) {
		if _, err := e.ModifyFilters(FilterChangeset{Delete: "f1"}); err != nil {
			t.Fatal(err)
		}
		if n := len(e.VisibleRows()); n != 5 {
			t.Errorf("expected 5 visible rows, got %d", n)
		}
		if _, err := e.ModifyFilters(FilterChangeset{Delete: "f1"}); errors.CodeOf(err) != errors.ErrRecordNotFound {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestSorts(t *testing.T) {
	e, rec := newTestEditor(t, 5)
	// A row without a number sorts last in both directions.
	err := e.doc.Write(func(s *document.State) error {
		o, _, err := s.CreateRow("grid", &model.CreateRowParams{ID: "empty"})
		if err == nil {
			r, _ := s.Row(o.ID)
			e.CacheRows([]*model.Row{r})
			orders, _ := s.RowOrders("grid")
			e.SetRowOrders(orders)
		}
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	s, err := e.CreateOrUpdateSort(UpdateSortParams{FieldID: "num", Condition: model.SortDescending})
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(e.SortRows(e.CachedRows())); !slices.Equal(got, []model.RowID{"r4", "r3", "r2", "r1", "r0", "empty"}) {
		t.Fatalf("unexpected desc order %v", got)
	}
	if len(rec.Filter(notify.DidReorderRows)) != 1 {
		t.Errorf("expected a reorder notification")
	}
	again, err := e.CreateOrUpdateSort(UpdateSortParams{FieldID: "num", Condition: model.SortAscending})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != s.ID {
		t.Errorf("expected sort %s reused, got %s", s.ID, again.ID)
	}
	if got := ids(e.SortRows(e.CachedRows())); !slices.Equal(got, []model.RowID{"r0", "r1", "r2", "r3", "r4", "empty"}) {
		t.Fatalf("unexpected asc order %v", got)
	}
	if err := e.DeleteSort("missing"); errors.CodeOf(err) != errors.ErrRecordNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	if err := e.DeleteAllSorts(); err != nil {
		t.Fatal(err)
	}
	if e.HasSorts() {
		t.Errorf("expected no sorts")
	}
}

func TestGroups(t *testing.T) {
	e, rec := newTestEditor(t, 5)
	if _, err := e.LoadGroups(); errors.CodeOf(err) != errors.ErrRecordNotFound {
		t.Fatalf("expected not found before grouping, got %v", err)
	}
	changed, err := e.GroupByField("status", "")
	if err != nil || !changed {
		t.Fatalf("expected grouping, got %v %v", changed, err)
	}
	groups, err := e.LoadGroups()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]model.RowID{"status": {"r4"}, "a": {"r0", "r2"}, "b": {"r1", "r3"}}
	if len(groups) != 3 || !groups[0].IsDefault {
		t.Fatalf("expected default group first, got %+v", groups)
	}
	for _, g := range groups {
		if !slices.Equal(g.Rows, want[g.ID]) {
			t.Errorf("group %s: expected %v, got %v", g.ID, want[g.ID], g.Rows)
		}
	}

	t.Run("same field is a no-op", func(t *testing.T) {
		rec.Reset()
		changed, err := e.GroupByField("status", "")
		if err != nil || changed {
			t.Fatalf("expected no-op, got %v %v", changed, err)
		}
		if len(rec.Filter(notify.DidGroupByField)) != 0 {
			t.Errorf("expected no notification")
		}
	})
	t.Run("not groupable", func(t *testing.T) {
		if _, err := e.GroupByField("num", ""); errors.CodeOf(err) != errors.ErrInvalidData {
			t.Errorf("expected invalid data, got %v", err)
		}
	})
	t.Run("move group", func(t *testing.T) {
		if err := e.MoveGroup("b", "status"); err != nil {
			t.Fatal(err)
		}
		groups := e.Groups()
		if groups[0].ID != "b" {
			t.Errorf("expected b first, got %s", groups[0].ID)
		}
		if err := e.MoveGroup("b", "b"); err != nil {
			t.Errorf("expected no-op, got %v", err)
		}
	})
	t.Run("create and rename", func(t *testing.T) {
		g, f, err := e.CreateGroup("C")
		if err != nil {
			t.Fatal(err)
		}
		to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
		if _, ok := to.Option(g.ID); !ok || g.Name != "C" {
			t.Fatalf("expected option C in field, got %+v", to)
		}
		name := "Renamed"
		hidden := false
		f, err = e.UpdateGroups([]model.GroupUpdate{{GroupID: g.ID, Name: &name, Visible: &hidden}})
		if err != nil || f == nil {
			t.Fatalf("expected renamed field, got %v %v", f, err)
		}
		g, err = e.Group(g.ID)
		if err != nil {
			t.Fatal(err)
		}
		if g.Name != name || g.Visible {
			t.Errorf("expected hidden renamed group, got %+v", g)
		}
		del, err := e.DeleteGroup(g.ID)
		if err != nil || del.OptionID != g.ID {
			t.Fatalf("unexpected deletion %+v %v", del, err)
		}
		if _, err := e.DeleteGroup("status"); errors.CodeOf(err) != errors.ErrInternal {
			t.Errorf("expected default group protected, got %v", err)
		}
	})
	t.Run("move row changeset", func(t *testing.T) {
		r, _ := e.CachedRow("r0")
		fieldID, cs, err := e.MoveGroupRowChangeset(r, "a", "b")
		if err != nil {
			t.Fatal(err)
		}
		sc, ok := cs.(fieldtype.SelectChangeset)
		if fieldID != "status" || !ok || !slices.Equal(sc.InsertOptionIDs, []string{"b"}) {
			t.Errorf("unexpected changeset %s %+v", fieldID, cs)
		}
		_, cs, _ = e.MoveGroupRowChangeset(r, "a", "status")
		if sc := cs.(fieldtype.SelectChangeset); !slices.Equal(sc.DeleteOptionIDs, []string{"a"}) {
			t.Errorf("expected a removed, got %+v", sc)
		}
		for _, pair := range [][2]string{{"a", "nope"}, {"nope", "b"}} {
			if _, _, err := e.MoveGroupRowChangeset(r, pair[0], pair[1]); errors.CodeOf(err) != errors.ErrRecordNotFound {
				t.Errorf("%s -> %s: expected RecordNotFound, got %v", pair[0], pair[1], err)
			}
		}
	})
	t.Run("row update", func(t *testing.T) {
		rec.Reset()
		old, _ := e.CachedRow("r4")
		updated := old.Clone()
		updated.Cells["status"] = cell(t, statusField(), "a")
		e.DidUpdateRow(old, updated, "status")
		evs := rec.Filter(notify.DidUpdateGroupRow)
		if len(evs) != 1 {
			t.Fatalf("expected a group row event, got %d", len(evs))
		}
		changes := evs[0].Payload.([]model.GroupRowsChange)
		if len(changes) != 2 {
			t.Fatalf("expected 2 changes, got %+v", changes)
		}
		g, _ := e.Group("a")
		if !slices.Contains(g.Rows, "r4") {
			t.Errorf("expected r4 in group a, got %v", g.Rows)
		}
	})
	t.Run("row of another view", func(t *testing.T) {
		rec.Reset()
		other := &model.Row{ID: "elsewhere", Visibility: true}
		e.DidUpdateRow(nil, other, "status")
		if _, ok := e.CachedRow("elsewhere"); ok {
			t.Error("expected a row outside the view not to be cached")
		}
		if n := len(rec.Filter(notify.DidUpdateRow)); n != 0 {
			t.Errorf("expected no notification, got %d", n)
		}
	})
}

func TestCheckboxGroups(t *testing.T) {
	e, _ := newTestEditor(t, 4)
	if _, err := e.GroupByField("done", ""); err != nil {
		t.Fatal(err)
	}
	g, err := e.Group(fieldtype.CheckboxYes)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(g.Rows, []model.RowID{"r0", "r2"}) {
		t.Errorf("expected [r0 r2], got %v", g.Rows)
	}
	if _, _, err := e.CreateGroup("x"); errors.CodeOf(err) != errors.ErrInternal {
		t.Errorf("expected checkbox groups to be fixed, got %v", err)
	}
}

func TestCalculations(t *testing.T) {
	e, rec := newTestEditor(t, 5)
	tests := []struct {
		typ  model.CalculationType
		want string
	}{
		{model.CalcSum, "10"},
		{model.CalcAverage, "2"},
		{model.CalcMedian, "2"},
		{model.CalcMin, "0"},
		{model.CalcMax, "4"},
		{model.CalcCount, "5"},
	}
	for _, tc := range tests {
		t.Run(string(tc.typ), func(t *testing.T) {
			if got := Calculate(tc.typ, numField, e.CachedRows()); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
	t.Run("count_empty", func(t *testing.T) {
		if got := Calculate(model.CalcCountEmpty, statusField(), e.CachedRows()); got != "1" {
			t.Errorf("expected 1, got %s", got)
		}
		if got := Calculate(model.CalcCountNonEmpty, statusField(), e.CachedRows()); got != "4" {
			t.Errorf("expected 4, got %s", got)
		}
	})
	t.Run("update and refresh", func(t *testing.T) {
		c, err := e.UpdateCalculation(UpdateCalculationParams{FieldID: "num", Type: model.CalcSum})
		if err != nil {
			t.Fatal(err)
		}
		if c.Value != "10" {
			t.Fatalf("expected 10, got %s", c.Value)
		}
		if _, err := e.ModifyFilters(FilterChangeset{Insert: &InsertFilter{Filter: model.Filter{FieldID: "num", Condition: model.FilterLess, Content: "3"}}}); err != nil {
			t.Fatal(err)
		}
		rec.Reset()
		changed, err := e.RefreshCalculations()
		if err != nil {
			t.Fatal(err)
		}
		if len(changed) != 1 || changed[0].Value != "3" {
			t.Fatalf("expected sum 3, got %+v", changed)
		}
		if len(rec.Filter(notify.DidUpdateCalculation)) != 1 {
			t.Errorf("expected a calculation notification")
		}
		if changed, _ := e.RefreshCalculations(); len(changed) != 0 {
			t.Errorf("expected nothing to refresh, got %+v", changed)
		}
		if err := e.RemoveCalculation("num", c.ID); err != nil {
			t.Fatal(err)
		}
		if len(e.Calculations()) != 0 {
			t.Errorf("expected calculation removed")
		}
	})
	t.Run("numeric on text", func(t *testing.T) {
		_, err := e.UpdateCalculation(UpdateCalculationParams{FieldID: "name", Type: model.CalcSum})
		if errors.CodeOf(err) != errors.ErrInvalidData {
			t.Errorf("expected invalid data, got %v", err)
		}
	})
}

func TestLayout(t *testing.T) {
	e, rec := newTestEditor(t, 3)
	if err := e.UpdateLayout(model.LayoutCalendar, "num"); errors.CodeOf(err) != errors.ErrInvalidData {
		t.Fatalf("expected a date field to be required, got %v", err)
	}
	date := &model.Field{ID: "date", Name: "Date", Type: model.FieldDateTime}
	ts := int64(1700000000)
	err := e.doc.Write(func(s *document.State) error {
		s.InsertField(date, "", model.OrderPosition{})
		return s.UpdateRow("r1", func(r *model.Row) {
			r.Cells["date"] = cell(t, date, fieldtype.DateChangeset{Timestamp: &ts})
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	var r1 *model.Row
	e.doc.Read(func(s *document.State) { r1, _ = s.Row("r1") })
	e.CacheRows([]*model.Row{r1})
	if err := e.UpdateLayout(model.LayoutCalendar, "date"); err != nil {
		t.Fatal(err)
	}
	if l, _ := e.LayoutType(); l != model.LayoutCalendar {
		t.Fatalf("expected calendar, got %s", l)
	}
	if len(rec.Filter(notify.DidUpdateViewLayout)) != 1 {
		t.Errorf("expected a layout notification")
	}
	ev, err := e.CalendarEvent("r1")
	if err != nil {
		t.Fatal(err)
	}
	if !ev.IsScheduled || ev.Timestamp != 1700000000 || ev.Title != "row 1" {
		t.Errorf("unexpected event %+v", ev)
	}
	events, _ := e.CalendarEvents()
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}
	s, _ := e.LayoutSetting(model.LayoutCalendar)
	if s.Calendar == nil || s.Calendar.FieldID != "date" {
		t.Errorf("unexpected setting %+v", s)
	}
}

func TestFieldSettings(t *testing.T) {
	e, rec := newTestEditor(t, 1)
	all, err := e.AllFieldSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || all[0].Visibility != model.VisibilityAlways {
		t.Fatalf("unexpected defaults %+v", all)
	}
	hidden := model.VisibilityHidden
	width := 200
	s, err := e.UpdateFieldSettings(model.FieldSettingsChangeset{FieldID: "num", Visibility: &hidden, Width: &width})
	if err != nil {
		t.Fatal(err)
	}
	if s.Visibility != hidden || s.Width != 200 {
		t.Errorf("unexpected settings %+v", s)
	}
	if len(rec.Filter(notify.DidUpdateFieldSettings)) != 1 {
		t.Errorf("expected a field settings notification")
	}
	setting, err := e.Setting()
	if err != nil {
		t.Fatal(err)
	}
	if setting.FieldSettings["num"].Width != 200 {
		t.Errorf("expected width in view setting, got %+v", setting.FieldSettings["num"])
	}
	if _, err := e.UpdateFieldSettings(model.FieldSettingsChangeset{FieldID: "missing"}); errors.CodeOf(err) != errors.ErrRecordNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	e, _ := newTestEditor(t, 1)
	r := NewRegistry(e.doc, nil)
	ctx := context.Background()
	a, err := r.GetOrInit(ctx, "grid")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := r.GetOrInit(ctx, "grid")
	if a != b {
		t.Errorf("expected the same editor")
	}
	if _, err := r.GetOrInit(ctx, "missing"); errors.CodeOf(err) != errors.ErrRecordNotFound {
		t.Errorf("expected not found, got %v", err)
	}
	if r.Len() != 1 || !r.Remove("grid") || r.Len() != 0 {
		t.Errorf("expected the editor removed")
	}
}
