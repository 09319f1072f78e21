package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maruel/viewdb/internal/document"
	verrors "github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/loader"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
	"github.com/maruel/viewdb/internal/view"
)

type slowSource struct {
	delay   time.Duration
	fetches atomic.Int32
}

func (s *slowSource) FetchRow(ctx context.Context, id model.RowID) (*model.Row, error) {
	s.fetches.Add(1)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, nil
}

// newTestDoc builds a database with views grid and board and n rows r000...
// Row i has num n-1-i, so storage order is descending, and status a for even
// rows and b for odd rows.
func newTestDoc(t *testing.T, n int, opts ...document.Option) *document.Document {
	t.Helper()
	name := &model.Field{ID: "name", Name: "Name", Type: model.FieldRichText, IsPrimary: true}
	num := &model.Field{ID: "num", Name: "Num", Type: model.FieldNumber}
	status := &model.Field{ID: "status", Name: "Status", Type: model.FieldSingleSelect}
	status.SetTypeOption(status.Type, fieldtype.EncodeTypeOption(fieldtype.SelectTypeOption{
		Options: []model.SelectOption{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
	}))
	d := document.New("db", opts...)
	err := d.Write(func(s *document.State) error {
		for _, f := range []*model.Field{name, num, status} {
			s.InsertField(f.Clone(), "", model.OrderPosition{})
		}
		s.InsertView(&model.View{ID: "grid", Name: "Grid", Layout: model.LayoutGrid})
		s.InsertView(&model.View{ID: "board", Name: "Board", Layout: model.LayoutBoard})
		for i := range n {
			cells := map[string]model.Cell{}
			changes := []struct {
				f  *model.Field
				cs any
			}{
				{name, fmt.Sprintf("row %d", i)},
				{num, n - 1 - i},
				{status, []string{"a", "b"}[i%2]},
			}
			for _, c := range changes {
				cell, err := fieldtype.ApplyToRow(c.cs, nil, c.f)
				if err != nil {
					return err
				}
				cells[c.f.ID] = cell
			}
			if _, _, err := s.CreateRow("grid", &model.CreateRowParams{ID: rowID(i), Cells: cells}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func rowID(i int) model.RowID {
	return model.RowID(fmt.Sprintf("r%03d", i))
}

func newTestEditor(t *testing.T, d *document.Document, opts Options) (*Editor, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	if opts.Sink == nil {
		opts.Sink = rec
	}
	if opts.Debounce == 0 {
		opts.Debounce = time.Millisecond
	}
	e := New(d, opts)
	t.Cleanup(func() { _ = e.Close() })
	return e, rec
}

func ids(rows []*model.Row) []model.RowID {
	out := make([]model.RowID, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestOpenViewBlocking(t *testing.T) {
	ctx := t.Context()
	e, _ := newTestEditor(t, newTestDoc(t, 20), Options{})
	if _, err := e.CreateOrUpdateSort(ctx, "grid", view.UpdateSortParams{FieldID: "num"}); err != nil {
		t.Fatal(err)
	}
	err := e.ModifyViewFilters(ctx, "grid", view.FilterChangeset{Insert: &view.InsertFilter{Filter: model.Filter{FieldID: "status", Condition: model.FilterIs, Content: "a"}}})
	if err != nil {
		t.Fatal(err)
	}
	snap, err := e.OpenView(ctx, "grid", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Complete {
		t.Fatal("expected a complete snapshot under the blocking threshold")
	}
	// Even rows have status a; r018 has the smallest number among them.
	want := []model.RowID{"r018", "r016", "r014", "r012", "r010", "r008", "r006", "r004", "r002", "r000"}
	if got := ids(snap.Rows); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(snap.Fields) != 3 {
		t.Errorf("expected 3 fields, got %d", len(snap.Fields))
	}
	if s := e.LoadState("grid"); s != view.LoadReady {
		t.Errorf("expected ready, got %s", s)
	}
}

func TestOpenViewNonBlocking(t *testing.T) {
	ctx := t.Context()
	e, rec := newTestEditor(t, newTestDoc(t, 120), Options{})
	if _, err := e.CreateOrUpdateSort(ctx, "grid", view.UpdateSortParams{FieldID: "num"}); err != nil {
		t.Fatal(err)
	}
	e.CloseView("grid")
	rec.Reset()
	snap, err := e.OpenView(ctx, "grid", nil)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Complete || len(snap.Rows) != 120 || snap.Rows[0].ID != "r000" {
		t.Fatalf("expected 120 rows in storage order, got complete=%v first=%s", snap.Complete, snap.Rows[0].ID)
	}
	ev, ok := rec.WaitFor(5*time.Second, func(ev notify.Event) bool {
		return ev.ObjectID == "grid" && ev.Kind == notify.DidReorderRows
	})
	if !ok {
		t.Fatal("expected a reorder notification")
	}
	order := ev.Payload.(view.ReorderAllRows).RowOrders
	if len(order) != 120 || order[0] != "r119" || order[119] != "r000" {
		t.Errorf("expected ascending order by num, got first=%s last=%s", order[0], order[len(order)-1])
	}
}

func TestOpenViewWithFinish(t *testing.T) {
	ctx := t.Context()
	e, rec := newTestEditor(t, newTestDoc(t, 120), Options{})
	if _, err := e.CreateOrUpdateSort(ctx, "grid", view.UpdateSortParams{FieldID: "num"}); err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	finish := make(chan struct{})
	snap, err := e.OpenView(ctx, "grid", finish)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-finish:
	default:
		t.Fatal("expected finish to be closed")
	}
	if !snap.Complete || len(snap.Rows) != 120 {
		t.Fatalf("expected 120 sorted rows, got complete=%v n=%d", snap.Complete, len(snap.Rows))
	}
	want := slices.Clone(snap.Rows)
	slices.SortStableFunc(want, func(a, b *model.Row) int {
		x, _ := fieldtype.ParseNumber(a.Cells["num"].GetString(model.CellData))
		y, _ := fieldtype.ParseNumber(b.Cells["num"].GetString(model.CellData))
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	})
	if !slices.Equal(ids(snap.Rows), ids(want)) {
		t.Error("expected rows sorted ascending by num")
	}
	if n := len(rec.Filter(notify.DidReorderRows)); n != 0 {
		t.Errorf("expected no reorder notification, got %d", n)
	}
}

func TestOpenViewSingleFlight(t *testing.T) {
	src := &slowSource{delay: 5 * time.Millisecond}
	e, _ := newTestEditor(t, newTestDoc(t, 30, document.WithRowSource(src)), Options{})
	ctx := t.Context()
	const callers = 6
	results := make([][]model.RowID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Go(func() {
			snap, err := e.OpenView(ctx, "grid", nil)
			errs[i] = err
			if err == nil {
				results[i] = ids(snap.Rows)
			}
		})
	}
	wg.Wait()
	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !slices.Equal(results[i], results[0]) {
			t.Errorf("caller %d observed %v, expected %v", i, results[i], results[0])
		}
	}
	if n := src.fetches.Load(); n != 30 {
		t.Errorf("expected each row fetched once, got %d fetches", n)
	}
}

func TestOpenViewTimeout(t *testing.T) {
	src := &slowSource{delay: time.Second}
	e, _ := newTestEditor(t, newTestDoc(t, 5, document.WithRowSource(src)), Options{OpenTimeout: 20 * time.Millisecond})
	_, err := e.OpenView(t.Context(), "grid", nil)
	if verrors.CodeOf(err) != verrors.ErrTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if s := e.LoadState("grid"); s != view.LoadTimedOut {
		t.Errorf("expected timed out, got %s", s)
	}
}

func TestOpenViewCancelledByNextOpen(t *testing.T) {
	src := &slowSource{delay: 50 * time.Millisecond}
	e, _ := newTestEditor(t, newTestDoc(t, 40, document.WithRowSource(src)), Options{})
	ctx := t.Context()
	res := make(chan error, 1)
	go func() {
		_, err := e.OpenView(ctx, "grid", nil)
		res <- err
	}()
	deadline := time.Now().Add(5 * time.Second)
	for e.LoadState("grid") != view.LoadLoading {
		if time.Now().After(deadline) {
			t.Fatal("grid never started loading")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := e.OpenView(ctx, "board", nil); err != nil {
		t.Fatal(err)
	}
	if err := <-res; verrors.CodeOf(err) != verrors.ErrCancelled {
		t.Fatalf("expected the first open cancelled, got %v", err)
	}
	if s := e.LoadState("grid"); s != view.LoadCancelled {
		t.Errorf("expected cancelled, got %s", s)
	}
}

func TestOpenViewCancelledForEveryWaiter(t *testing.T) {
	src := &slowSource{delay: 200 * time.Millisecond}
	e, _ := newTestEditor(t, newTestDoc(t, 40, document.WithRowSource(src)), Options{})
	ctx := t.Context()
	const waiters = 5
	res := make(chan error, waiters)
	for range waiters {
		go func() {
			_, err := e.OpenView(ctx, "grid", nil)
			res <- err
		}()
	}
	deadline := time.Now().Add(5 * time.Second)
	for e.LoadState("grid") != view.LoadLoading {
		if time.Now().After(deadline) {
			t.Fatal("grid never started loading")
		}
		time.Sleep(time.Millisecond)
	}
	// Let every caller join the load in progress.
	time.Sleep(20 * time.Millisecond)
	if _, err := e.OpenView(ctx, "board", nil); err != nil {
		t.Fatal(err)
	}
	for i := range waiters {
		select {
		case err := <-res:
			if verrors.CodeOf(err) != verrors.ErrCancelled {
				t.Errorf("waiter %d: expected cancelled, got %v", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("waiter %d never returned", i)
		}
	}
}

func TestInitDatabaseRow(t *testing.T) {
	cs := document.NewCloudSync()
	e, _ := newTestEditor(t, newTestDoc(t, 10), Options{Finalizer: cs, CacheCapacity: 3})
	ctx := t.Context()

	t.Run("concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				if _, err := e.InitDatabaseRow(ctx, "r000"); err != nil {
					t.Error(err)
				}
			})
		}
		wg.Wait()
		if n := cs.Active("r000"); n != 1 {
			t.Errorf("expected 1 active sync, got %d", n)
		}
	})
	t.Run("eviction", func(t *testing.T) {
		for i := 1; i < 5; i++ {
			if _, err := e.InitDatabaseRow(ctx, rowID(i)); err != nil {
				t.Fatal(err)
			}
		}
		if n := cs.ActiveRows(); n != 3 {
			t.Errorf("expected 3 synchronized rows, got %d", n)
		}
		if got := e.FinalizedRows(); !slices.Equal(got, []model.RowID{"r004", "r003", "r002"}) {
			t.Errorf("unexpected finalized rows %v", got)
		}
		// Evicted rows are finalized again on demand.
		if _, err := e.InitDatabaseRow(ctx, "r000"); err != nil {
			t.Fatal(err)
		}
		if n := cs.Active("r000"); n != 1 {
			t.Errorf("expected r000 synchronized again, got %d", n)
		}
	})
	t.Run("missing", func(t *testing.T) {
		if _, err := e.InitDatabaseRow(ctx, "nope"); !errors.Is(err, verrors.NotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestInitDatabaseRowWaitsForLoad(t *testing.T) {
	e, _ := newTestEditor(t, newTestDoc(t, 3), Options{FinalizeWait: 5 * time.Second})
	e.gate.begin()
	done := make(chan error, 1)
	go func() {
		_, err := e.InitDatabaseRow(t.Context(), "r001")
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("expected finalization to wait for the load")
	case <-time.After(30 * time.Millisecond):
	}
	e.gate.end()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("finalization never resumed")
	}

	t.Run("bounded", func(t *testing.T) {
		e, _ := newTestEditor(t, newTestDoc(t, 3), Options{FinalizeWait: 10 * time.Millisecond})
		e.gate.begin()
		defer e.gate.end()
		if _, err := e.InitDatabaseRow(t.Context(), "r001"); err != nil {
			t.Fatalf("expected finalization after the wait, got %v", err)
		}
	})
}

func TestCloseDatabaseGrace(t *testing.T) {
	cs := document.NewCloudSync()
	e, _ := newTestEditor(t, newTestDoc(t, 5), Options{Finalizer: cs, CloseGrace: 30 * time.Millisecond})
	ctx := t.Context()
	for i := range 3 {
		if _, err := e.InitDatabaseRow(ctx, rowID(i)); err != nil {
			t.Fatal(err)
		}
	}
	e.CloseDatabase(ctx)
	if _, err := e.OpenView(ctx, "grid", nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	if n := len(e.FinalizedRows()); n != 3 {
		t.Fatalf("expected reopening to keep 3 finalized rows, got %d", n)
	}

	e.CloseDatabase(ctx)
	deadline := time.Now().Add(5 * time.Second)
	for len(e.FinalizedRows()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("finalized rows were never released")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n := cs.ActiveRows(); n != 0 {
		t.Errorf("expected no synchronized rows, got %d", n)
	}
	if _, detached := cs.Stats(); detached != 3 {
		t.Errorf("expected 3 detachments, got %d", detached)
	}
	if n := e.NumOfOpeningViews(); n != 0 {
		t.Errorf("expected no open views, got %d", n)
	}
}

func TestPrimaryFieldProtected(t *testing.T) {
	d := newTestDoc(t, 3)
	e, _ := newTestEditor(t, d, Options{})
	ctx := t.Context()
	before, err := d.Encode()
	if err != nil {
		t.Fatal(err)
	}
	checks := map[string]func() error{
		"delete": func() error { return e.DeleteField(ctx, "name") },
		"switch": func() error {
			_, err := e.SwitchToFieldType(ctx, "name", model.FieldNumber)
			return err
		},
		"duplicate": func() error {
			_, err := e.DuplicateField(ctx, "grid", "name")
			return err
		},
		"clear": func() error { return e.ClearField(ctx, "name") },
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			if err := fn(); verrors.CodeOf(err) != verrors.ErrInternal {
				t.Fatalf("expected internal error, got %v", err)
			}
		})
	}
	after, err := d.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("expected the document unchanged")
	}
}

func TestNoOpWritesKeepDocumentClean(t *testing.T) {
	d := newTestDoc(t, 4)
	if err := d.Persist(t.Context(), &nopStore{}); err != nil {
		t.Fatal(err)
	}
	e, _ := newTestEditor(t, d, Options{})
	ctx := t.Context()
	if _, err := e.CreateOrUpdateSort(ctx, "grid", view.UpdateSortParams{FieldID: "num"}); err != nil {
		t.Fatal(err)
	}
	if err := d.Persist(ctx, &nopStore{}); err != nil {
		t.Fatal(err)
	}
	checks := map[string]func() error{
		"same type": func() error {
			_, err := e.SwitchToFieldType(ctx, "num", model.FieldNumber)
			return err
		},
		"delete unknown rows": func() error {
			if removed := e.DeleteRows(ctx, []model.RowID{"missing"}); len(removed) != 0 {
				return fmt.Errorf("unexpected removal %v", removed)
			}
			return nil
		},
		"same sort": func() error {
			_, err := e.CreateOrUpdateSort(ctx, "grid", view.UpdateSortParams{FieldID: "num"})
			return err
		},
		"no sorts": func() error { return e.DeleteAllSorts(ctx, "board") },
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			if err := fn(); err != nil {
				t.Fatal(err)
			}
			if d.Dirty() {
				t.Error("expected the document clean")
			}
		})
	}
}

type nopStore struct{}

func (nopStore) Load(context.Context) ([]byte, error) { return nil, nil }

func (nopStore) Save(context.Context, []byte) error { return nil }

func TestSelectOptionScenario(t *testing.T) {
	e, _ := newTestEditor(t, newTestDoc(t, 0), Options{})
	ctx := t.Context()
	f, err := e.CreateField(ctx, "grid", CreateFieldParams{Name: "Tag", Type: model.FieldSingleSelect})
	if err != nil {
		t.Fatal(err)
	}
	a, err := e.CreateSelectOption(f.ID, "A")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.CreateSelectOption(f.ID, "B")
	if err := e.upsertSelectOptions(f.ID, []model.SelectOption{a, b}); err != nil {
		t.Fatal(err)
	}
	row, _, err := e.CreateRow(ctx, "grid", nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := e.GetCell(f.ID, row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.GetStrings(model.CellData)) != 0 {
		t.Fatalf("expected an empty cell, got %v", c)
	}
	if err := e.InsertSelectOptions(ctx, f.ID, row.ID, []model.SelectOption{a}); err != nil {
		t.Fatal(err)
	}
	c, _ = e.GetCell(f.ID, row.ID)
	if got := c.GetStrings(model.CellData); !slices.Equal(got, []string{a.ID}) {
		t.Errorf("expected option A selected, got %v", got)
	}
	f, _ = e.GetField(f.ID)
	to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
	if len(to.Options) != 2 || to.Options[0].Name != "A" || to.Options[1].Name != "B" {
		t.Errorf("expected options A and B, got %+v", to.Options)
	}
	if err := e.DeleteSelectOptions(ctx, f.ID, row.ID, []model.SelectOption{a}); err != nil {
		t.Fatal(err)
	}
	c, _ = e.GetCell(f.ID, row.ID)
	if len(c.GetStrings(model.CellData)) != 0 {
		t.Errorf("expected the option removed from the cell, got %v", c)
	}
}

func TestCellUpdates(t *testing.T) {
	cs := document.NewCloudSync()
	e, rec := newTestEditor(t, newTestDoc(t, 3), Options{Finalizer: cs})
	ctx := t.Context()
	if _, err := e.OpenView(ctx, "grid", nil); err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	if _, err := e.UpdateCellWithChangeset(ctx, "r001", "num", "42"); err != nil {
		t.Fatal(err)
	}
	if cs.Active("r001") != 1 {
		t.Error("expected the row finalized before the update")
	}
	c, _ := e.GetCell("num", "r001")
	if got := c.GetString(model.CellData); got != "42" {
		t.Errorf("expected 42, got %q", got)
	}
	if len(rec.Filter(notify.DidUpdateRow)) == 0 {
		t.Error("expected a row notification")
	}
	if err := e.ClearCell(ctx, "r001", "num"); err != nil {
		t.Fatal(err)
	}
	c, _ = e.GetCell("num", "r001")
	if c.GetString(model.CellData) != "" {
		t.Errorf("expected an empty cell, got %v", c)
	}

	t.Run("timestamps", func(t *testing.T) {
		f, err := e.CreateField(ctx, "grid", CreateFieldParams{Name: "Edited", Type: model.FieldLastEditedTime})
		if err != nil {
			t.Fatal(err)
		}
		if err := e.ClearCell(ctx, "r001", f.ID); verrors.CodeOf(err) != verrors.ErrInternal {
			t.Errorf("expected internal error, got %v", err)
		}
		changes, err := e.AutoUpdatedFieldsChangesets("grid", "r001")
		if err != nil {
			t.Fatal(err)
		}
		if len(changes) != 1 || changes[0].FieldID != f.ID {
			t.Errorf("unexpected changes %+v", changes)
		}
	})
	t.Run("media", func(t *testing.T) {
		f, err := e.CreateField(ctx, "grid", CreateFieldParams{Name: "Files", Type: model.FieldMedia})
		if err != nil {
			t.Fatal(err)
		}
		insert := fieldtype.MediaChangeset{Insert: []model.MediaFile{{ID: "f1", Name: "a.png"}, {ID: "f2", Name: "b.png"}}}
		if _, err := e.UpdateCellWithChangeset(ctx, "r002", f.ID, insert); err != nil {
			t.Fatal(err)
		}
		meta, _ := e.GetRowMeta("r002")
		if meta.AttachmentCount != 2 {
			t.Fatalf("expected 2 attachments, got %d", meta.AttachmentCount)
		}
		if _, err := e.UpdateCellWithChangeset(ctx, "r002", f.ID, fieldtype.MediaChangeset{Delete: []string{"f1"}}); err != nil {
			t.Fatal(err)
		}
		meta, _ = e.GetRowMeta("r002")
		if meta.AttachmentCount != 1 {
			t.Errorf("expected 1 attachment, got %d", meta.AttachmentCount)
		}
		if _, ok := rec.WaitFor(time.Second, func(ev notify.Event) bool { return ev.Kind == notify.DidUpdateRowMeta }); !ok {
			t.Error("expected a row meta notification")
		}
	})
}

func TestFieldOperations(t *testing.T) {
	e, _ := newTestEditor(t, newTestDoc(t, 4), Options{})
	ctx := t.Context()

	t.Run("duplicate", func(t *testing.T) {
		dup, err := e.DuplicateField(ctx, "grid", "num")
		if err != nil {
			t.Fatal(err)
		}
		if dup.Name != "Num (copy)" || dup.IsPrimary {
			t.Errorf("unexpected duplicate %+v", dup)
		}
		fields, _ := e.GetFields("grid", nil)
		if fields[2].ID != dup.ID {
			t.Errorf("expected the copy right after the original, got %s", fields[2].ID)
		}
		c, _ := e.GetCell(dup.ID, "r000")
		if c.GetString(model.CellData) != "3" {
			t.Errorf("expected the cell copied, got %v", c)
		}
	})
	t.Run("switch to select", func(t *testing.T) {
		f, err := e.CreateField(ctx, "grid", CreateFieldParams{Name: "Color", Type: model.FieldRichText})
		if err != nil {
			t.Fatal(err)
		}
		for i, s := range []string{"red", "blue", "red"} {
			if _, err := e.UpdateCellWithChangeset(ctx, rowID(i), f.ID, s); err != nil {
				t.Fatal(err)
			}
		}
		f, err = e.SwitchToFieldType(ctx, f.ID, model.FieldSingleSelect)
		if err != nil {
			t.Fatal(err)
		}
		to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
		if len(to.Options) != 2 {
			t.Fatalf("expected options seeded from the cells, got %+v", to.Options)
		}
		c, _ := e.GetCell(f.ID, "r002")
		red, _ := to.OptionByName("red")
		if got := c.GetStrings(model.CellData); !slices.Equal(got, []string{red.ID}) {
			t.Errorf("expected red selected, got %v", got)
		}
	})
	t.Run("type option", func(t *testing.T) {
		if err := e.UpdateFieldTypeOption(ctx, "num", nil); err != nil {
			t.Fatal(err)
		}
		if err := e.UpdateFieldTypeOption(ctx, "num", model.TypeOptionData{"format": "usd"}); err != nil {
			t.Fatal(err)
		}
		f, _ := e.GetField("num")
		if got := fieldtype.DecodeTypeOption[fieldtype.NumberTypeOption](f.TypeOption()).Format; got != fieldtype.NumberFormatUSD {
			t.Errorf("expected usd, got %s", got)
		}
		if _, err := e.TypeOptionSchema(model.FieldNumber); err != nil {
			t.Error(err)
		}
	})
	t.Run("delete", func(t *testing.T) {
		if err := e.DeleteField(ctx, "num"); err != nil {
			t.Fatal(err)
		}
		if _, err := e.GetField("num"); !errors.Is(err, verrors.NotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}

func TestRowOperations(t *testing.T) {
	e, rec := newTestEditor(t, newTestDoc(t, 4), Options{})
	ctx := t.Context()
	if _, err := e.OpenView(ctx, "grid", nil); err != nil {
		t.Fatal(err)
	}
	icon := "🚀"
	if err := e.UpdateRowMeta(ctx, "r001", model.RowMetaUpdate{Icon: &icon}); err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(e.FinalizedRows(), "r001") {
		t.Errorf("expected r001 finalized by the meta update, got %v", e.FinalizedRows())
	}
	dup, index, err := e.DuplicateRow(ctx, "grid", "r001")
	if err != nil {
		t.Fatal(err)
	}
	if index != 2 {
		t.Errorf("expected the copy at 2, got %d", index)
	}
	meta, _ := e.GetRowMeta(dup.ID)
	if meta.Icon != icon {
		t.Errorf("expected the meta copied, got %+v", meta)
	}
	if c, _ := e.GetCell("num", dup.ID); c.GetString(model.CellData) != "2" {
		t.Errorf("expected the cells copied, got %v", c)
	}
	if i, _ := e.GetRowIndex("board", dup.ID); i != 4 {
		t.Errorf("expected the copy appended in board, got %d", i)
	}
	if err := e.MoveRow(ctx, "grid", "r000", "r003"); err != nil {
		t.Fatal(err)
	}
	o, err := e.GetRowOrderAtIndex("grid", 4)
	if err != nil || o.ID != "r000" {
		t.Errorf("expected r000 at 4, got %v %v", o.ID, err)
	}
	removed := e.DeleteRows(ctx, []model.RowID{"r000", "missing"})
	if len(removed) != 1 {
		t.Errorf("expected 1 removed row, got %d", len(removed))
	}
	if _, err := e.GetRow("grid", "r000"); !errors.Is(err, verrors.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if len(rec.Filter(notify.DidUpdateRow)) == 0 {
		t.Error("expected row notifications")
	}
	rows, err := e.GetAllRows(ctx, "grid")
	if err != nil || len(rows) != 4 {
		t.Errorf("expected 4 rows, got %d %v", len(rows), err)
	}
	height := 80
	if err := e.UpdateRow(ctx, "r002", RowUpdate{Height: &height}); err != nil {
		t.Fatal(err)
	}
	if r, _ := e.GetRow("grid", "r002"); r.Height != 80 {
		t.Errorf("expected height 80, got %d", r.Height)
	}
	if !slices.Contains(e.FinalizedRows(), "r002") {
		t.Errorf("expected r002 finalized by the update, got %v", e.FinalizedRows())
	}
	if err := e.UpdateRow(ctx, "missing", RowUpdate{Height: &height}); !errors.Is(err, verrors.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMoveGroupRow(t *testing.T) {
	e, _ := newTestEditor(t, newTestDoc(t, 6), Options{})
	ctx := t.Context()
	if err := e.GroupByField(ctx, "board", "status"); err != nil {
		t.Fatal(err)
	}
	if err := e.MoveGroupRow(ctx, "board", "r000", "a", "b", "r003"); err != nil {
		t.Fatal(err)
	}
	c, _ := e.GetCell("status", "r000")
	if got := c.GetStrings(model.CellData); !slices.Equal(got, []string{"b"}) {
		t.Errorf("expected r000 in group b, got %v", got)
	}
	if i, _ := e.GetRowIndex("board", "r000"); i != 3 {
		t.Errorf("expected r000 at the position of r003, got %d", i)
	}
	g, err := e.GetGroup(ctx, "board", "b")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(g.Rows, "r000") {
		t.Errorf("expected r000 in group b rows, got %v", g.Rows)
	}
	if err := e.MoveGroupRow(ctx, "board", "r001", "b", "a", ""); err != nil {
		t.Fatal(err)
	}
	if i, _ := e.GetRowIndex("board", "r001"); i != 5 {
		t.Errorf("expected r001 moved last, got %d", i)
	}
	if err := e.MoveGroupRow(ctx, "board", "r002", "a", "no-such-group", ""); verrors.CodeOf(err) != verrors.ErrRecordNotFound {
		t.Errorf("expected RecordNotFound for an unknown group, got %v", err)
	}
	c, _ = e.GetCell("status", "r002")
	if got := c.GetStrings(model.CellData); !slices.Equal(got, []string{"a"}) {
		t.Errorf("expected r002 untouched, got %v", got)
	}
}

func TestGroupOperations(t *testing.T) {
	e, _ := newTestEditor(t, newTestDoc(t, 4), Options{})
	ctx := t.Context()
	if err := e.SetGroupByField(ctx, "board", "status", ""); err != nil {
		t.Fatal(err)
	}
	g, err := e.CreateGroup(ctx, "board", "C")
	if err != nil {
		t.Fatal(err)
	}
	f, _ := e.GetField("status")
	to := fieldtype.DecodeTypeOption[fieldtype.SelectTypeOption](f.TypeOption())
	if _, ok := to.Option(g.ID); !ok {
		t.Fatalf("expected option %s in the field", g.ID)
	}
	if err := e.MoveGroup(ctx, "board", g.ID, "status"); err != nil {
		t.Fatal(err)
	}
	groups, _ := e.LoadGroups(ctx, "board")
	if groups[0].ID != g.ID {
		t.Errorf("expected %s first, got %s", g.ID, groups[0].ID)
	}
	changed, err := e.DeleteGroup(ctx, "board", "a")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(changed, []model.RowID{"r000", "r002"}) {
		t.Errorf("expected rows of a changed, got %v", changed)
	}
	c, _ := e.GetCell("status", "r000")
	if len(c.GetStrings(model.CellData)) != 0 {
		t.Errorf("expected r000 without status, got %v", c)
	}
}

func TestCalendarLayout(t *testing.T) {
	e, _ := newTestEditor(t, newTestDoc(t, 2), Options{})
	ctx := t.Context()
	if err := e.UpdateViewLayout(ctx, "grid", model.LayoutCalendar); err != nil {
		t.Fatal(err)
	}
	s, err := e.GetLayoutSetting(ctx, "grid", model.LayoutCalendar)
	if err != nil {
		t.Fatal(err)
	}
	f, err := e.GetField(s.Calendar.FieldID)
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "Date" || f.Type != model.FieldDateTime {
		t.Errorf("expected a Date field created, got %+v", f)
	}
	if _, err := e.UpdateCellWithChangeset(ctx, "r000", f.ID, "2024-03-01"); err != nil {
		t.Fatal(err)
	}
	ev, err := e.GetCalendarEvent(ctx, "grid", "r000")
	if err != nil {
		t.Fatal(err)
	}
	if !ev.IsScheduled || ev.Title != "row 0" {
		t.Errorf("unexpected event %+v", ev)
	}
	if l, _ := e.GetLayoutType(ctx, "grid"); l != model.LayoutCalendar {
		t.Errorf("expected calendar, got %s", l)
	}
	setting, err := e.GetDatabaseViewSetting(ctx, "grid")
	if err != nil || setting.Layout != model.LayoutCalendar {
		t.Errorf("unexpected setting %+v %v", setting, err)
	}
}

func TestDeleteView(t *testing.T) {
	e, rec := newTestEditor(t, newTestDoc(t, 2), Options{})
	ctx := t.Context()
	if _, err := e.OpenView(ctx, "board", nil); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteDatabaseView(ctx, "board"); err != nil {
		t.Fatal(err)
	}
	if e.NumOfOpeningViews() != 0 {
		t.Error("expected the view closed")
	}
	if len(rec.Filter(notify.DidDeleteView)) != 1 {
		t.Error("expected a delete notification")
	}
	if _, err := e.OpenView(ctx, "board", nil); !errors.Is(err, verrors.NotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestLoaderOptions(t *testing.T) {
	e, _ := newTestEditor(t, newTestDoc(t, 30), Options{Loader: loader.Options{ChunkSize: 4, Concurrency: 2}})
	snap, err := e.OpenView(t.Context(), "grid", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Rows) != 30 {
		t.Errorf("expected 30 rows, got %d", len(snap.Rows))
	}
}
