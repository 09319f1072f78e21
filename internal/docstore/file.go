// File backend with optional git history and change notifications.

package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	commitName  = "viewdb"
	commitEmail = "viewdb@localhost"
)

// File stores the document as a file. Writes are atomic: the data is
// written to a temporary file in the same directory, then renamed.
type File struct {
	path string
	repo *gogit.Repository

	mu        sync.Mutex
	lastSaved []byte
}

// NewFile returns a backend writing to path. With gitHistory, the file's
// directory is a git repository (initialized if needed) and every save that
// changes the file is committed.
func NewFile(path string, gitHistory bool) (*File, error) {
	if path == "" {
		return nil, errors.New("empty file path")
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f := &File{path: path}
	if gitHistory {
		repo, err := gogit.PlainOpen(dir)
		if err != nil {
			if repo, err = gogit.PlainInit(dir, false); err != nil {
				return nil, fmt.Errorf("failed to initialize git repo: %w", err)
			}
			cfg, err := repo.Config()
			if err != nil {
				return nil, fmt.Errorf("failed to read git config: %w", err)
			}
			cfg.User.Name = commitName
			cfg.User.Email = commitEmail
			if err := repo.SetConfig(cfg); err != nil {
				return nil, fmt.Errorf("failed to write git config: %w", err)
			}
		}
		f.repo = repo
	}
	return f, nil
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Load implements Backend.
func (f *File) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	return data, nil
}

// Save implements Backend.
func (f *File) Save(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	f.lastSaved = bytes.Clone(data)
	if f.repo != nil {
		return f.commit(ctx)
	}
	return nil
}

func (f *File) commit(ctx context.Context) error {
	w, err := f.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	name := filepath.Base(f.path)
	if _, err := w.Add(name); err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	// Other files of the directory are not ours to commit.
	if fs, ok := status[name]; !ok || fs.Staging == gogit.Unmodified {
		return nil
	}
	now := time.Now()
	sig := &object.Signature{Name: commitName, Email: commitEmail, When: now}
	h, err := w.Commit("Save "+name, &gogit.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	slog.DebugContext(ctx, "Committed snapshot", "path", f.path, "commit", h.String()[:12])
	return nil
}

// Revision is one committed snapshot.
type Revision struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// History returns up to limit snapshots, most recent first. It returns
// nothing when git history is disabled or nothing was committed.
func (f *File) History(limit int) ([]Revision, error) {
	if f.repo == nil {
		return nil, nil
	}
	head, err := f.repo.Head()
	if err != nil {
		// No commit yet.
		return nil, nil
	}
	name := filepath.Base(f.path)
	iter, err := f.repo.Log(&gogit.LogOptions{From: head.Hash(), FileName: &name})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()
	var out []Revision
	for limit <= 0 || len(out) < limit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		out = append(out, Revision{Hash: c.Hash.String(), Message: c.Message, When: c.Author.When})
	}
	return out, nil
}

// Watch calls fn whenever the file is replaced or written by another
// process, until ctx is canceled. Saves made through f are not reported.
func (f *File) Watch(ctx context.Context, fn func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: an atomic replace gives the file a new inode.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", f.path, err)
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if f.isOwnWrite() {
					continue
				}
				slog.DebugContext(ctx, "Store file changed", "path", f.path, "op", event.Op.String())
				fn()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching store file", "path", f.path, "err", err)
			}
		}
	}()
	return nil
}

// isOwnWrite reports whether the file holds what f saved last.
func (f *File) isOwnWrite() bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSaved != nil && bytes.Equal(data, f.lastSaved)
}

// Close implements Backend.
func (f *File) Close() error {
	return nil
}
