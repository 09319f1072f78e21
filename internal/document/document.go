// Package document holds the shared database document: fields, views and
// rows behind a single reader/writer lock, plus the live row handles the
// engine finalizes for cloud sync.
package document

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// Store persists the encoded document.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// RowSource materializes row bodies that may live in slow or remote storage.
type RowSource interface {
	FetchRow(ctx context.Context, id model.RowID) (*model.Row, error)
}

// Option configures a Document.
type Option func(*Document)

// WithRowSource routes row materialization through src.
func WithRowSource(src RowSource) Option {
	return func(d *Document) { d.source = src }
}

// WithClock overrides the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Document) { d.now = now }
}

// Document is the shared structured document of one database.
//
// Lock order: mu before handlesMu.
type Document struct {
	id     string
	source RowSource
	now    func() time.Time

	mu      sync.RWMutex
	fields  []*model.Field
	views   []*model.View
	rows    map[model.RowID]*model.Row
	metas   map[model.RowID]*model.RowMeta
	version uint64
	saved   uint64

	handlesMu sync.Mutex
	handles   map[model.RowID]*DatabaseRow
}

// New returns an empty document.
func New(id string, opts ...Option) *Document {
	d := &Document{
		id:      id,
		now:     time.Now,
		rows:    map[model.RowID]*model.Row{},
		metas:   map[model.RowID]*model.RowMeta{},
		handles: map[model.RowID]*DatabaseRow{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Decode builds a document from its encoded state.
func Decode(data []byte, opts ...Option) (*Document, error) {
	var s model.DatabaseData
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.InvalidData("decode document").Wrap(err)
	}
	d := New(s.ID, opts...)
	d.fields = s.Fields
	d.views = s.Views
	for _, r := range s.Rows {
		d.rows[r.ID] = r
	}
	for _, m := range s.Metas {
		d.metas[m.ID] = m
	}
	return d, nil
}

// Load reads and decodes the document from a store. A store with no data
// yields an empty document with the given id.
func Load(ctx context.Context, st Store, id string, opts ...Option) (*Document, error) {
	data, err := st.Load(ctx)
	if err != nil {
		return nil, errors.Storage("load document", err)
	}
	if len(data) == 0 {
		return New(id, opts...), nil
	}
	return Decode(data, opts...)
}

// ID returns the database identifier.
func (d *Document) ID() string {
	return d.id
}

// Encode serializes the complete state.
func (d *Document) Encode() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.encodeLocked()
}

func (d *Document) encodeLocked() ([]byte, error) {
	s := model.DatabaseData{ID: d.id, Fields: d.fields, Views: d.views}
	s.Rows = make([]*model.Row, 0, len(d.rows))
	for _, r := range d.rows {
		s.Rows = append(s.Rows, r)
	}
	slices.SortFunc(s.Rows, func(a, b *model.Row) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for _, r := range s.Rows {
		if m, ok := d.metas[r.ID]; ok {
			s.Metas = append(s.Metas, m)
		}
	}
	return json.MarshalIndent(&s, "", "  ")
}

// Persist saves the document if it changed since the last save.
func (d *Document) Persist(ctx context.Context, st Store) error {
	d.mu.RLock()
	if d.version == d.saved {
		d.mu.RUnlock()
		return nil
	}
	version := d.version
	data, err := d.encodeLocked()
	d.mu.RUnlock()
	if err != nil {
		return errors.Internal("encode document").Wrap(err)
	}
	if err := st.Save(ctx, data); err != nil {
		return errors.Storage("save document", err)
	}
	d.mu.Lock()
	if d.saved < version {
		d.saved = version
	}
	d.mu.Unlock()
	slog.DebugContext(ctx, "Persisted document", "database_id", d.id, "version", version)
	return nil
}

// Dirty reports whether there are unsaved changes.
func (d *Document) Dirty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version != d.saved
}

// Read runs fn with shared access. fn must not mutate.
func (d *Document) Read(fn func(s *State)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fn(&State{d: d})
}

// Write runs fn with exclusive access. The document is marked changed unless
// fn returns an error; fn must validate before mutating. fn returns
// errors.Unchanged to succeed without marking the document changed.
func (d *Document) Write(fn func(s *State) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := fn(&State{d: d, writable: true}); err != nil {
		if err == errors.Unchanged {
			return nil
		}
		return err
	}
	d.version++
	return nil
}
