package model

import (
	"encoding/json"
	"testing"
)

func TestCellAccessors(t *testing.T) {
	c := Cell{CellFieldType: string(FieldMultiSelect), CellData: []string{"a", "b"}}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Cell
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	for _, cell := range []Cell{c, decoded} {
		if got := cell.GetStrings(CellData); len(got) != 2 || got[0] != "a" {
			t.Errorf("expected [a b], got %v", got)
		}
		if cell.FieldType() != FieldMultiSelect {
			t.Errorf("expected multi_select, got %q", cell.FieldType())
		}
	}

	t.Run("int from json", func(t *testing.T) {
		var c Cell
		if err := json.Unmarshal([]byte(`{"timestamp":1700000000}`), &c); err != nil {
			t.Fatal(err)
		}
		v, ok := c.GetInt("timestamp")
		if !ok || v != 1700000000 {
			t.Errorf("expected 1700000000, got %d %v", v, ok)
		}
	})

	t.Run("decode struct slice", func(t *testing.T) {
		c := Cell{"files": []MediaFile{{ID: "f1", Name: "a.png"}}}
		var files []MediaFile
		if !c.Decode("files", &files) || len(files) != 1 || files[0].ID != "f1" {
			t.Errorf("unexpected %v", files)
		}
		if c.Decode("missing", &files) {
			t.Error("expected false for missing key")
		}
	})
}

func TestRowClone(t *testing.T) {
	r := &Row{ID: "r1", Cells: map[string]Cell{"f": {CellData: "x"}}}
	c := r.Clone()
	c.Cells["f"][CellData] = "y"
	if r.Cells["f"][CellData] != "x" {
		t.Error("clone shares cell storage")
	}
}

func TestViewClone(t *testing.T) {
	v := &View{
		ID:        "v",
		RowOrders: []RowOrder{{ID: "a"}},
		Filters:   []Filter{{ID: "f", Type: FilterAnd, Children: []Filter{{ID: "c"}}}},
	}
	c := v.Clone()
	c.RowOrders[0].ID = "b"
	c.Filters[0].Children[0].ID = "z"
	if v.RowOrders[0].ID != "a" || v.Filters[0].Children[0].ID != "c" {
		t.Error("clone shares storage")
	}
	if v.Filters[0].Find("c") == nil {
		t.Error("expected to find nested filter")
	}
}

func TestContentHash(t *testing.T) {
	a := []Sort{{ID: "1", FieldID: "f", Condition: SortAscending}}
	b := []Sort{{ID: "1", FieldID: "f", Condition: SortAscending}}
	if ContentHash(a) != ContentHash(b) {
		t.Error("expected identical hashes")
	}
	b[0].Condition = SortDescending
	if ContentHash(a) == ContentHash(b) {
		t.Error("expected different hashes")
	}
}

func TestRowDocumentID(t *testing.T) {
	if RowDocumentID("r1") != RowDocumentID("r1") {
		t.Error("expected stable document id")
	}
	if RowDocumentID("r1") == RowDocumentID("r2") {
		t.Error("expected distinct document ids")
	}
}

func TestRowMetaUpdate(t *testing.T) {
	m := RowMeta{AttachmentCount: 1}
	icon := "x"
	u := RowMetaUpdate{Icon: &icon, AttachmentCountAdd: -3}
	u.Apply(&m)
	if m.Icon != "x" || m.AttachmentCount != 0 {
		t.Errorf("unexpected %+v", m)
	}
}
