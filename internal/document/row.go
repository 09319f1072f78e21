// Live row handles and their sync plugins.

package document

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maruel/viewdb/internal/errors"
	"github.com/maruel/viewdb/internal/model"
)

// PluginType identifies a capability attached to a live row.
type PluginType string

// PluginCloudStorage keeps the row synchronized with the cloud.
const PluginCloudStorage PluginType = "cloud_storage"

// Plugin is a capability attached to a live row.
type Plugin interface {
	Type() PluginType
	// Close releases the capability. Called once when the plugin is removed.
	Close()
}

// DatabaseRow is the live handle of a materialized row. The document owns
// handles; other components reach them through LiveRow and must tolerate
// their disappearance.
type DatabaseRow struct {
	id  model.RowID
	doc *Document

	mu      sync.Mutex
	plugins map[PluginType]Plugin
}

// ID returns the row identifier.
func (r *DatabaseRow) ID() model.RowID {
	return r.id
}

// Row returns a snapshot of the row body.
func (r *DatabaseRow) Row() (*model.Row, bool) {
	var row *model.Row
	var ok bool
	r.doc.Read(func(s *State) { row, ok = s.Row(r.id) })
	return row, ok
}

// Meta returns a snapshot of the row metadata.
func (r *DatabaseRow) Meta() (*model.RowMeta, bool) {
	var meta *model.RowMeta
	var ok bool
	r.doc.Read(func(s *State) { meta, ok = s.RowMeta(r.id) })
	return meta, ok
}

// HasPlugin reports whether a plugin of the type is attached.
func (r *DatabaseRow) HasPlugin(t PluginType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.plugins[t]
	return ok
}

// AddPlugin attaches p unless a plugin of the same type is already attached.
// Returns false, and closes p, in that case.
func (r *DatabaseRow) AddPlugin(p Plugin) bool {
	r.mu.Lock()
	if _, ok := r.plugins[p.Type()]; ok {
		r.mu.Unlock()
		p.Close()
		return false
	}
	if r.plugins == nil {
		r.plugins = map[PluginType]Plugin{}
	}
	r.plugins[p.Type()] = p
	r.mu.Unlock()
	return true
}

// RemovePlugins detaches and closes the plugins of the given types.
// Returns how many were removed.
func (r *DatabaseRow) RemovePlugins(types ...PluginType) int {
	r.mu.Lock()
	var removed []Plugin
	for _, t := range types {
		if p, ok := r.plugins[t]; ok {
			removed = append(removed, p)
			delete(r.plugins, t)
		}
	}
	r.mu.Unlock()
	for _, p := range removed {
		p.Close()
	}
	return len(removed)
}

// HasCloudSync reports whether the row is synchronized with the cloud.
func (r *DatabaseRow) HasCloudSync() bool {
	return r.HasPlugin(PluginCloudStorage)
}

// DeactivateCloudSync stops cloud synchronization of the row.
func (r *DatabaseRow) DeactivateCloudSync() {
	r.RemovePlugins(PluginCloudStorage)
}

// InitRow returns the live handle of a row, materializing it from the row
// source when it is not live yet. Fails with RecordNotFound when the row
// does not exist.
func (d *Document) InitRow(ctx context.Context, id model.RowID) (*DatabaseRow, error) {
	if h, ok := d.LiveRow(id); ok {
		return h, nil
	}
	if d.source != nil {
		row, err := d.source.FetchRow(ctx, id)
		if err != nil {
			return nil, err
		}
		if row != nil {
			d.mu.Lock()
			local, ok := d.rows[id]
			if !ok || row.Modified.After(local.Modified) {
				d.rows[id] = row.Clone()
				d.version++
			}
			d.mu.Unlock()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Cancelled("init row").Wrap(err)
	}
	d.mu.RLock()
	_, ok := d.rows[id]
	d.mu.RUnlock()
	if !ok {
		return nil, errors.RecordNotFound("row", string(id))
	}
	d.handlesMu.Lock()
	defer d.handlesMu.Unlock()
	if h, ok := d.handles[id]; ok {
		return h, nil
	}
	h := &DatabaseRow{id: id, doc: d}
	d.handles[id] = h
	return h, nil
}

// LiveRow returns the handle of a row if it is currently materialized.
func (d *Document) LiveRow(id model.RowID) (*DatabaseRow, bool) {
	d.handlesMu.Lock()
	defer d.handlesMu.Unlock()
	h, ok := d.handles[id]
	return h, ok
}

// ReleaseRow drops the live handle of a row, closing its plugins. The row
// body stays in the document.
func (d *Document) ReleaseRow(id model.RowID) {
	d.dropHandles([]model.RowID{id})
}

// LiveRowCount returns the number of materialized rows.
func (d *Document) LiveRowCount() int {
	d.handlesMu.Lock()
	defer d.handlesMu.Unlock()
	return len(d.handles)
}

func (d *Document) dropHandles(ids []model.RowID) {
	d.handlesMu.Lock()
	var dropped []*DatabaseRow
	for _, id := range ids {
		if h, ok := d.handles[id]; ok {
			dropped = append(dropped, h)
			delete(d.handles, id)
		}
	}
	d.handlesMu.Unlock()
	for _, h := range dropped {
		if n := h.RemovePlugins(PluginCloudStorage); n != 0 {
			slog.Debug("Released row with active sync", "row_id", h.id)
		}
	}
}
