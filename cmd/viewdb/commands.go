package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maruel/viewdb/internal/docstore"
	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/fieldtype"
	"github.com/maruel/viewdb/internal/model"
	"github.com/maruel/viewdb/internal/view"
)

func newInitCmd(a *app) *cobra.Command {
	rows := 0
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a demo task database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			doc, err := document.Load(ctx, st, a.cfg.Store.DocumentID)
			if err != nil {
				return err
			}
			if err := seedDemo(doc, rows); err != nil {
				return err
			}
			if err := doc.Persist(ctx, st); err != nil {
				return err
			}
			slog.InfoContext(ctx, "Created database", "dsn", a.cfg.Store.DSN, "rows", rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 20, "Number of rows")
	return cmd
}

func newOpenCmd(a *app) *cobra.Command {
	var sortField string
	var desc, wait bool
	cmd := &cobra.Command{
		Use:   "open VIEW",
		Short: "Open a view and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.close(ctx)) }()
			if sortField != "" {
				cond := model.SortAscending
				if desc {
					cond = model.SortDescending
				}
				if _, err := s.editor.CreateOrUpdateSort(ctx, args[0], view.UpdateSortParams{FieldID: sortField, Condition: cond}); err != nil {
					return err
				}
			}
			var finish chan struct{}
			if wait {
				finish = make(chan struct{})
			}
			snap, err := s.editor.OpenView(ctx, args[0], finish)
			if err != nil {
				return err
			}
			if !snap.Complete {
				slog.WarnContext(ctx, "Rows shown in storage order; use --wait to filter and sort first", "view_id", snap.ViewID, "rows", len(snap.Rows))
			}
			return renderView(cmd.OutOrStdout(), snap)
		},
	}
	f := cmd.Flags()
	f.StringVar(&sortField, "sort", "", "Sort by this field ID, saved in the view")
	f.BoolVar(&desc, "desc", false, "Sort in descending order")
	f.BoolVar(&wait, "wait", false, "Filter and sort before printing, regardless of the view size")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set ROW FIELD VALUE",
		Short: "Write a cell from text",
		Long: `Write a cell from text. The text is interpreted by the field type: a
number, an option name or ID, "yes"/"no", or a date such as "2026-03-01" or
"next friday". An empty value clears the cell.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, s.close(ctx)) }()
			rowID, fieldID := model.RowID(args[0]), args[1]
			f, err := s.editor.GetField(fieldID)
			if err != nil {
				return err
			}
			var cell model.Cell
			if args[2] == "" {
				err = s.editor.ClearCell(ctx, rowID, fieldID)
			} else {
				cell, err = s.editor.UpdateCellWithChangeset(ctx, rowID, fieldID, args[2])
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s.%s = %s\n", rowID, f.Name, fieldtype.MustFor(f.Type).CellString(cell, f.TypeOption()))
			return err
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch VIEW",
		Short: "Print a view every time its file store changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			events, unsubscribe := a.hub.Subscribe("")
			defer unsubscribe()
			changed := make(chan struct{}, 1)
			var fileStore *docstore.File
			show := func() error {
				s, err := a.openSession(ctx)
				if err != nil {
					return err
				}
				if fileStore == nil {
					f, ok := s.store.(*docstore.File)
					if !ok {
						_ = s.close(ctx)
						return fmt.Errorf("watch requires a file store, got %q", a.cfg.Store.DSN)
					}
					fileStore = f
					err = f.Watch(ctx, func() {
						select {
						case changed <- struct{}{}:
						default:
						}
					})
					if err != nil {
						_ = s.close(ctx)
						return err
					}
				}
				snap, err := s.editor.OpenView(ctx, args[0], make(chan struct{}))
				err = errors.Join(err, s.close(ctx))
				if err != nil {
					return err
				}
				return renderView(cmd.OutOrStdout(), snap)
			}
			if err := show(); err != nil {
				return err
			}
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-changed:
					slog.InfoContext(ctx, "Store changed, reloading", "path", fileStore.Path())
					if err := show(); err != nil {
						slog.ErrorContext(ctx, "Failed to reload", "err", err)
					}
				case e := <-events:
					printEvent(cmd.OutOrStdout(), e)
				}
			}
		},
	}
}

func newSchemaCmd(*app) *cobra.Command {
	return &cobra.Command{
		Use:       "schema FIELDTYPE",
		Short:     "Print the JSON schema of a field type's configuration",
		ValidArgs: fieldTypeNames(),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := fieldtype.Schema(model.FieldType(args[0]))
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return err
		},
	}
}

func fieldTypeNames() []string {
	out := make([]string, len(model.AllFieldTypes))
	for i, t := range model.AllFieldTypes {
		out[i] = string(t)
	}
	return out
}

func newHistoryCmd(a *app) *cobra.Command {
	limit := 0
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the saved snapshots of a jsonl store or a file store with git history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			revs, err := a.history(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderRevisions(cmd.OutOrStdout(), revs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of snapshots; 0 for all")
	return cmd
}

func (a *app) history(ctx context.Context, limit int) ([]docstore.Revision, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()
	if f, ok := st.(*docstore.File); ok && !a.cfg.Store.GitHistory {
		return nil, fmt.Errorf("history of %s requires store.git_history", f.Path())
	}
	h, ok := st.(docstore.Historian)
	if !ok {
		return nil, fmt.Errorf("store %q keeps no history", a.cfg.Store.DSN)
	}
	return h.History(limit)
}
