// Demo database.

package main

import (
	"fmt"

	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
)

var demoStatuses = []model.SelectOption{
	{ID: "todo", Name: "To do", Color: "gray"},
	{ID: "doing", Name: "Doing", Color: "blue"},
	{ID: "done", Name: "Done", Color: "green"},
}

type cellValue struct {
	f  *model.Field
	cs any
}

// seedDemo fills an empty document with a task list of n rows and three
// views: a grid, a board grouped by status and a calendar by due date.
func seedDemo(doc *document.Document, n int) error {
	name := &model.Field{ID: "name", Name: "Task", Type: model.FieldRichText, IsPrimary: true}
	estimate := &model.Field{ID: "estimate", Name: "Estimate", Type: model.FieldNumber}
	status := &model.Field{ID: "status", Name: "Status", Type: model.FieldSingleSelect}
	status.SetTypeOption(status.Type, fieldtype.EncodeTypeOption(fieldtype.SelectTypeOption{Options: demoStatuses}))
	done := &model.Field{ID: "done", Name: "Done", Type: model.FieldCheckbox}
	due := &model.Field{ID: "due", Name: "Due", Type: model.FieldDateTime}
	files := &model.Field{ID: "files", Name: "Files", Type: model.FieldMedia}
	fields := []*model.Field{name, estimate, status, done, due, files}

	return doc.Write(func(s *document.State) error {
		if s.RowCount() != 0 || len(s.Fields()) != 0 {
			return fmt.Errorf("database %q is not empty", doc.ID())
		}
		for _, f := range fields {
			s.InsertField(f, "", model.OrderPosition{})
		}
		s.InsertView(&model.View{ID: "grid", Name: "Tasks", Layout: model.LayoutGrid})
		s.InsertView(&model.View{ID: "board", Name: "Board", Layout: model.LayoutBoard})
		s.InsertView(&model.View{ID: "calendar", Name: "Calendar", Layout: model.LayoutCalendar})
		for i := range n {
			st := demoStatuses[i%len(demoStatuses)]
			values := []cellValue{
				{name, fmt.Sprintf("Task %d", i+1)},
				{estimate, (i*7)%13 + 1},
				{status, st.ID},
				{done, st.ID == "done"},
				{due, fmt.Sprintf("2026-01-%02d", i%28+1)},
			}
			if i%4 == 0 {
				values = append(values, cellValue{files, fieldtype.MediaChangeset{Insert: []model.MediaFile{{
					ID:   fmt.Sprintf("f%d", i),
					Name: fmt.Sprintf("notes-%d.md", i+1),
					URL:  fmt.Sprintf("https://example.com/notes-%d.md", i+1),
					Type: "document",
				}}}})
			}
			cells := map[string]model.Cell{}
			for _, v := range values {
				c, err := fieldtype.ApplyToRow(v.cs, nil, v.f)
				if err != nil {
					return fmt.Errorf("row %d field %s: %w", i, v.f.ID, err)
				}
				cells[v.f.ID] = c
			}
			if _, _, err := s.CreateRow("grid", &model.CreateRowParams{ID: model.RowID(fmt.Sprintf("t%04d", i+1)), Cells: cells}); err != nil {
				return err
			}
		}
		return nil
	})
}
