// Journal backend: an append-only JSONL log of document snapshots.

package docstore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultJournalKeep is the number of snapshots a journal retains by default.
const DefaultJournalKeep = 100

// journalEntry is one line of the journal.
type journalEntry struct {
	Seq     int64           `json:"seq"`
	SavedAt time.Time       `json:"saved_at"`
	Hash    string          `json:"hash"`
	Data    json.RawMessage `json:"data"`
}

// Journal appends every distinct save as a line of a JSONL file. The last
// line is the current state. Once the file holds twice keep snapshots, it is
// rewritten with the last keep.
type Journal struct {
	path string
	keep int

	mu      sync.Mutex
	entries []journalEntry
}

// NewJournal opens or creates the journal at path. keep <= 0 selects
// DefaultJournalKeep.
func NewJournal(path string, keep int) (*Journal, error) {
	if path == "" {
		return nil, errors.New("empty journal path")
	}
	if keep <= 0 {
		keep = DefaultJournalKeep
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	j := &Journal{path: filepath.Clean(path), keep: keep}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) load() error {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open journal %s: %w", j.path, err)
	}
	defer func() { _ = f.Close() }()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(nil, 256<<20)
	for line := 1; scanner.Scan(); line++ {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var e journalEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return fmt.Errorf("failed to decode %s:%d: %w", j.path, line, err)
		}
		j.entries = append(j.entries, e)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read journal %s: %w", j.path, err)
	}
	return nil
}

// Load implements Backend.
func (j *Journal) Load(context.Context) ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.entries) == 0 {
		return nil, nil
	}
	return slices.Clone([]byte(j.entries[len(j.entries)-1].Data)), nil
}

// Save implements Backend. A save identical to the current state is not
// recorded.
func (j *Journal) Save(_ context.Context, data []byte) error {
	if !json.Valid(data) {
		return errors.New("journal only stores JSON documents")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}
	sum := blake2b.Sum256(compact.Bytes())
	hash := hex.EncodeToString(sum[:])
	j.mu.Lock()
	defer j.mu.Unlock()
	var seq int64 = 1
	if n := len(j.entries); n != 0 {
		last := j.entries[n-1]
		if last.Hash == hash {
			return nil
		}
		seq = last.Seq + 1
	}
	e := journalEntry{Seq: seq, SavedAt: time.Now().UTC(), Hash: hash, Data: compact.Bytes()}
	if len(j.entries)+1 >= 2*j.keep {
		entries := append(slices.Clone(j.entries[len(j.entries)+1-j.keep:]), e)
		if err := j.rewrite(entries); err != nil {
			return err
		}
		j.entries = entries
		return nil
	}
	if err := j.append(e); err != nil {
		return err
	}
	j.entries = append(j.entries, e)
	return nil
}

func (j *Journal) append(e journalEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal for append: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append to %s: %w", j.path, err)
	}
	return f.Close()
}

// rewrite atomically replaces the journal with entries.
func (j *Journal) rewrite(entries []journalEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(j.path), "."+filepath.Base(j.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		_, _ = w.Write(line)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", j.path, err)
	}
	return nil
}

// History returns up to limit snapshots, most recent first.
func (j *Journal) History(limit int) ([]Revision, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Revision
	for i := len(j.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		e := j.entries[i]
		out = append(out, Revision{Hash: e.Hash, Message: "Snapshot " + strconv.FormatInt(e.Seq, 10), When: e.SavedAt})
	}
	return out, nil
}

// Close implements Backend.
func (j *Journal) Close() error {
	return nil
}
