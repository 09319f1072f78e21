// Terminal output.

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/maruel/viewdb/internal/docstore"
	"github.com/maruel/viewdb/internal/editor"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/notify"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	eventStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// renderView prints the rows of a view, one column per field.
func renderView(w io.Writer, snap *editor.ViewSnapshot) error {
	headers := make([]string, len(snap.Fields))
	for i, f := range snap.Fields {
		headers[i] = f.Name
	}
	t := newTable(append([]string{"ID"}, headers...)...)
	for _, r := range snap.Rows {
		line := make([]string, 0, len(snap.Fields)+1)
		line = append(line, string(r.ID))
		for _, f := range snap.Fields {
			line = append(line, fieldtype.RowString(r, f))
		}
		t.Row(line...)
	}
	_, err := fmt.Fprintf(w, "%s (%d rows)\n%s\n", titleStyle.Render(snap.ViewID), len(snap.Rows), t.Render())
	return err
}

func renderRevisions(w io.Writer, revs []docstore.Revision) error {
	t := newTable("Commit", "When", "Message")
	for _, r := range revs {
		t.Row(r.Hash[:12], r.When.Local().Format("2006-01-02 15:04:05"), r.Message)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func printEvent(w io.Writer, e notify.Event) {
	_, _ = fmt.Fprintf(w, "%s %s %s\n", e.At.Format("15:04:05.000"), eventStyle.Render(string(e.Kind)), e.ObjectID)
}
