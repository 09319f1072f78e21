package loader

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/notify"
	"github.com/maruel/viewdb/internal/scheduler"
	"github.com/maruel/viewdb/internal/view"
)

var numField = &model.Field{ID: "num", Name: "Num", Type: model.FieldNumber}

// newTestView creates n rows whose number is n-1-i, so storage order is the
// reverse of ascending order.
func newTestView(t *testing.T, n int) (*document.Document, *view.Editor, *notify.Recorder) {
	t.Helper()
	d := document.New("db")
	err := d.Write(func(s *document.State) error {
		s.InsertField(&model.Field{ID: "name", Name: "Name", Type: model.FieldRichText, IsPrimary: true}, "", model.OrderPosition{})
		s.InsertField(numField, "", model.OrderPosition{})
		s.InsertView(&model.View{ID: "grid", Name: "Grid", Layout: model.LayoutGrid})
		for i := range n {
			c, err := fieldtype.ApplyToRow(n-1-i, nil, numField)
			if err != nil {
				return err
			}
			p := &model.CreateRowParams{ID: model.RowID(fmt.Sprintf("r%03d", i)), Cells: map[string]model.Cell{"num": c}}
			if _, _, err := s.CreateRow("grid", p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := &notify.Recorder{}
	v, err := view.New("grid", d, rec)
	if err != nil {
		t.Fatal(err)
	}
	return d, v, rec
}

func orders(d *document.Document) []model.RowOrder {
	var out []model.RowOrder
	d.Read(func(s *document.State) { out, _ = s.RowOrders("grid") })
	return out
}

func docFetch(d *document.Document) FetchFunc {
	return func(ctx context.Context, id model.RowID) (*model.Row, error) {
		h, err := d.InitRow(ctx, id)
		if err != nil {
			return nil, err
		}
		r, ok := h.Row()
		if !ok {
			return nil, errors.RecordNotFound("row", string(id))
		}
		return r, nil
	}
}

func ids(rows []*model.Row) []model.RowID {
	out := make([]model.RowID, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestLoadStorageOrder(t *testing.T) {
	d, v, _ := newTestView(t, 25)
	l := New(docFetch(d), nil, Options{})
	rows, err := l.Load(context.Background(), Request{View: v, Orders: orders(d), Blocking: true})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := ids(rows), model.RowOrderIDs(orders(d)); !slices.Equal(got, want) {
		t.Fatalf("expected storage order %v, got %v", want, got)
	}
	if n := len(v.CachedRows()); n != 25 {
		t.Errorf("expected 25 cached rows, got %d", n)
	}
}

func TestLoadBlockingSorted(t *testing.T) {
	d, v, rec := newTestView(t, 120)
	v.SetRowOrders(orders(d))
	if _, err := v.CreateOrUpdateSort(view.UpdateSortParams{FieldID: "num"}); err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	l := New(docFetch(d), nil, Options{})
	rows, err := l.Load(context.Background(), Request{View: v, Orders: orders(d), Blocking: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 120 {
		t.Fatalf("expected 120 rows, got %d", len(rows))
	}
	want := slices.Clone(rows)
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
	if !slices.Equal(ids(rows), ids(want)) {
		t.Fatalf("rows are not sorted ascending")
	}
	if n := len(rec.Filter(notify.DidReorderRows)); n != 0 {
		t.Errorf("expected no reorder notification in blocking mode, got %d", n)
	}
}

func TestLoadNonBlockingNotifies(t *testing.T) {
	d, v, rec := newTestView(t, 60)
	v.SetRowOrders(orders(d))
	if _, err := v.ModifyFilters(view.FilterChangeset{Insert: &view.InsertFilter{Filter: model.Filter{FieldID: "num", Condition: model.FilterLess, Content: "10"}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := v.CreateOrUpdateSort(view.UpdateSortParams{FieldID: "num"}); err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	l := New(docFetch(d), nil, Options{})
	res := <-l.Start(context.Background(), Request{View: v, Orders: orders(d)})
	if res.Err != nil {
		t.Fatal(res.Err)
	}
	if len(res.Rows) != 10 || res.Rows[0].ID != "r059" {
		t.Fatalf("expected 10 rows starting with r059, got %v", ids(res.Rows))
	}
	if n := len(rec.Filter(notify.DidUpdateViewRowsVisibility)); n != 1 {
		t.Errorf("expected 1 visibility notification, got %d", n)
	}
	if n := len(rec.Filter(notify.DidReorderRows)); n != 1 {
		t.Errorf("expected 1 reorder notification, got %d", n)
	}
}

func TestLoadDropsFailures(t *testing.T) {
	d, v, _ := newTestView(t, 15)
	fetch := docFetch(d)
	l := New(func(ctx context.Context, id model.RowID) (*model.Row, error) {
		if id == "r003" || id == "r012" {
			return nil, errors.Internal("boom")
		}
		return fetch(ctx, id)
	}, nil, Options{})
	rows, err := l.Load(context.Background(), Request{View: v, Orders: orders(d), Blocking: true})
	if err != nil {
		t.Fatal(err)
	}
	got := ids(rows)
	if len(got) != 13 || slices.Contains(got, "r003") || slices.Contains(got, "r012") {
		t.Errorf("expected the failed rows dropped, got %v", got)
	}
}

func TestLoadCancelled(t *testing.T) {
	d, v, _ := newTestView(t, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetch := docFetch(d)
	var calls atomic.Int32
	l := New(func(ctx context.Context, id model.RowID) (*model.Row, error) {
		if calls.Add(1) == 12 {
			cancel()
		}
		return fetch(ctx, id)
	}, nil, Options{})
	rows, err := l.Load(ctx, Request{View: v, Orders: orders(d), Blocking: true})
	if errors.CodeOf(err) != errors.ErrCancelled {
		t.Fatalf("expected cancelled, got %v", err)
	}
	if rows != nil {
		t.Errorf("expected partial rows discarded, got %d", len(rows))
	}
	if n := calls.Load(); n > 20 {
		t.Errorf("expected loading to stop at a chunk boundary, got %d fetches", n)
	}
}

func TestLoadConcurrencyBound(t *testing.T) {
	d, v, _ := newTestView(t, 30)
	fetch := docFetch(d)
	var cur, peak atomic.Int32
	l := New(func(ctx context.Context, id model.RowID) (*model.Row, error) {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		cur.Add(-1)
		return fetch(ctx, id)
	}, nil, Options{Concurrency: 3})
	if _, err := l.Load(context.Background(), Request{View: v, Orders: orders(d), Blocking: true}); err != nil {
		t.Fatal(err)
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("expected at most 3 concurrent fetches, got %d", p)
	}
}

func TestLoadRefreshesCalculations(t *testing.T) {
	d, v, rec := newTestView(t, 5)
	v.SetRowOrders(orders(d))
	if _, err := v.UpdateCalculation(view.UpdateCalculationParams{FieldID: "num", Type: model.CalcSum}); err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	s := scheduler.New()
	defer s.Close()
	l := New(docFetch(d), s, Options{RowsPerSecond: 1000})
	if _, err := l.Load(context.Background(), Request{View: v, Orders: orders(d), Blocking: true}); err != nil {
		t.Fatal(err)
	}
	s.Wait()
	calcs := v.Calculations()
	if len(calcs) != 1 || calcs[0].Value != "10" {
		t.Errorf("expected sum 10, got %+v", calcs)
	}
}
