// Package docstore persists encoded database documents.
//
// A backend is selected by the scheme of a DSN:
//
//	memory:                      in-process, lost on exit
//	file:/path/db.json           a JSON file, optionally versioned with git
//	jsonl:/path/db.jsonl         an append-only log of snapshots
//	sqlite:/path/db.sqlite       one row per document in SQLite
//	postgres://user@host/db      one row per document in PostgreSQL
//	mysql://user:pw@tcp(h)/db    one row per document in MySQL
//
// A DSN without a scheme is a file path.
package docstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Backend stores the encoded state of one document. It implements
// document.Store.
type Backend interface {
	// Load returns the stored state, or nil when nothing was saved yet.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored state.
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Options configures Open.
type Options struct {
	// DocumentID keys the document in SQL backends. Defaults to "default".
	DocumentID string
	// GitHistory commits every save of a file backend to a git repository
	// rooted at the file's directory.
	GitHistory bool
	// JournalKeep is the number of snapshots a jsonl backend retains.
	JournalKeep int
}

// Historian is implemented by backends that keep past snapshots.
type Historian interface {
	// History returns up to limit snapshots, most recent first. limit <= 0
	// returns all of them.
	History(limit int) ([]Revision, error)
}

// Factory opens a backend. rest is the DSN with the scheme removed.
type Factory func(ctx context.Context, rest string, opts Options) (Backend, error)

var (
	mu        sync.Mutex
	factories = map[string]Factory{}
)

// Register makes a backend available under a DSN scheme. It panics if the
// scheme is already registered.
func Register(scheme string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := factories[scheme]; ok {
		panic("docstore: scheme registered twice: " + scheme)
	}
	factories[scheme] = f
}

// Schemes returns the registered schemes.
func Schemes() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func init() {
	Register("memory", func(context.Context, string, Options) (Backend, error) {
		return NewMemory(), nil
	})
	Register("file", func(_ context.Context, rest string, opts Options) (Backend, error) {
		return NewFile(rest, opts.GitHistory)
	})
	Register("jsonl", func(_ context.Context, rest string, opts Options) (Backend, error) {
		return NewJournal(rest, opts.JournalKeep)
	})
	Register("sqlite", func(ctx context.Context, rest string, opts Options) (Backend, error) {
		return openSQL(ctx, sqliteDialect, sqliteDSN(rest), opts.DocumentID)
	})
	pg := func(ctx context.Context, rest string, opts Options) (Backend, error) {
		return openSQL(ctx, postgresDialect, "postgres:"+rest, opts.DocumentID)
	}
	Register("postgres", pg)
	Register("postgresql", pg)
	Register("mysql", func(ctx context.Context, rest string, opts Options) (Backend, error) {
		return openSQL(ctx, mysqlDialect, strings.TrimPrefix(rest, "//"), opts.DocumentID)
	})
}

// Open returns the backend named by dsn.
func Open(ctx context.Context, dsn string, opts Options) (Backend, error) {
	if opts.DocumentID == "" {
		opts.DocumentID = "default"
	}
	scheme, rest, ok := strings.Cut(dsn, ":")
	if !ok || len(scheme) < 2 || strings.ContainsAny(scheme, `/\.`) {
		// No scheme, or a Windows drive letter.
		scheme, rest = "file", dsn
	}
	mu.Lock()
	f := factories[scheme]
	mu.Unlock()
	if f == nil {
		return nil, fmt.Errorf("unknown store scheme %q", scheme)
	}
	b, err := f(ctx, rest, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", scheme, err)
	}
	return b, nil
}

// Memory keeps the document in memory.
type Memory struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Load implements Backend.
func (m *Memory) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data), nil
}

// Save implements Backend.
func (m *Memory) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = slices.Clone(data)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close implements Backend.
func (m *Memory) Close() error {
	return nil
}
