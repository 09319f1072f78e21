package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maruel/viewdb/internal/config"
	"github.com/maruel/viewdb/internal/docstore"
	"github.com/maruel/viewdb/internal/document"
	"github.com/maruel/viewdb/internal/editor"
	"github.com/maruel/viewdb/internal/loader"
	"github.com/maruel/viewdb/internal/notify"
)

// app holds the state shared by the commands.
type app struct {
	configPath string
	dsn        string
	logLevel   string

	cfg       *config.Config
	level     slog.LevelVar
	logCloser io.Closer
	hub       *notify.Hub
	push      *notify.WebPushSink
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "viewdb",
		Short:         "Inspect and edit view databases",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown()
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "viewdb.yaml", "Configuration file, created with defaults if missing")
	f.StringVar(&a.dsn, "dsn", "", "Store DSN, overrides store.dsn")
	f.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides log.level")
	root.AddCommand(
		newInitCmd(a),
		newOpenCmd(a),
		newSetCmd(a),
		newWatchCmd(a),
		newSchemaCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dsn != "" {
		cfg.Store.DSN = a.dsn
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.level.Set(parseLevel(cfg.Log.Level))
	var logger *slog.Logger
	logger, a.logCloser = initLogger(cfg.Log, &a.level)
	slog.SetDefault(logger)
	a.hub = notify.NewHub(64)
	if w := cfg.Notify.WebPush; w.Enabled() {
		a.push = notify.NewWebPushSink(w.Keys, w.Subscriptions, w.Kinds...)
	}
	return nil
}

func (a *app) teardown() error {
	if a.push != nil {
		a.push.Wait()
	}
	if a.logCloser != nil {
		return a.logCloser.Close()
	}
	return nil
}

// sink returns where editor notifications go.
func (a *app) sink() notify.Sink {
	m := notify.Multi{a.hub, notify.SinkFunc(func(e notify.Event) {
		slog.Debug("Notification", "object_id", e.ObjectID, "kind", e.Kind)
	})}
	if a.push != nil {
		m = append(m, a.push)
	}
	return m
}

func (a *app) editorOptions() editor.Options {
	c := a.cfg.Editor
	return editor.Options{
		BlockingThreshold: c.BlockingThreshold,
		OpenTimeout:       c.OpenTimeout,
		FinalizeWait:      c.FinalizeWait,
		CloseGrace:        c.CloseGrace,
		CacheCapacity:     c.CacheCapacity,
		Debounce:          a.cfg.Notify.Debounce,
		Loader: loader.Options{
			ChunkSize:     c.ChunkSize,
			Concurrency:   c.FetchConcurrency,
			RowsPerSecond: c.RowFetchRate,
		},
		Sink: a.sink(),
	}
}

// openStore opens the configured backend.
func (a *app) openStore(ctx context.Context) (docstore.Backend, error) {
	return docstore.Open(ctx, a.cfg.Store.DSN, docstore.Options{
		DocumentID:  a.cfg.Store.DocumentID,
		GitHistory:  a.cfg.Store.GitHistory,
		JournalKeep: a.cfg.Store.JournalKeep,
	})
}

// session is an editor over a loaded document.
type session struct {
	store  docstore.Backend
	editor *editor.Editor
}

func (a *app) openSession(ctx context.Context) (*session, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := document.Load(ctx, st, a.cfg.Store.DocumentID)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &session{store: st, editor: editor.New(doc, a.editorOptions())}, nil
}

// close persists pending changes and releases the session.
func (s *session) close(ctx context.Context) error {
	// Background refreshes may still write the document until the editor is
	// closed.
	err := s.editor.Close()
	err = errors.Join(err, s.editor.Document().Persist(ctx, s.store), s.store.Close())
	if err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}
