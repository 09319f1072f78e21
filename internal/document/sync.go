package document

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maruel/viewdb/internal/model"
)

// Finalizer attaches cloud sync to a live row.
type Finalizer interface {
	Finalize(ctx context.Context, row *DatabaseRow) error
}

// CloudSync is the in-process Finalizer. It tracks which rows have an active
// sync registration.
type CloudSync struct {
	mu       sync.Mutex
	active   map[model.RowID]int
	attached int
	detached int
}

// NewCloudSync returns an empty registry.
func NewCloudSync() *CloudSync {
	return &CloudSync{active: map[model.RowID]int{}}
}

// Finalize attaches a sync plugin to the row. Finalizing an already
// synchronized row is a no-op.
func (c *CloudSync) Finalize(ctx context.Context, row *DatabaseRow) error {
	if row.HasCloudSync() {
		return nil
	}
	p := &syncPlugin{owner: c, id: row.ID()}
	c.mu.Lock()
	c.active[p.id]++
	c.attached++
	c.mu.Unlock()
	if row.AddPlugin(p) {
		slog.DebugContext(ctx, "Attached cloud sync", "row_id", p.id)
	}
	return nil
}

// Active returns how many sync registrations the row has.
func (c *CloudSync) Active(id model.RowID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[id]
}

// ActiveRows returns the number of rows with a sync registration.
func (c *CloudSync) ActiveRows() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// Stats returns the total number of attachments and detachments.
func (c *CloudSync) Stats() (attached, detached int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached, c.detached
}

type syncPlugin struct {
	owner *CloudSync
	id    model.RowID
	once  sync.Once
}

func (p *syncPlugin) Type() PluginType { return PluginCloudStorage }

func (p *syncPlugin) Close() {
	p.once.Do(func() {
		c := p.owner
		c.mu.Lock()
		defer c.mu.Unlock()
		c.detached++
		if c.active[p.id]--; c.active[p.id] <= 0 {
			delete(c.active, p.id)
		}
	})
}
