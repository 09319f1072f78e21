// Package notify delivers change notifications to subscribers of views,
// rows and fields. Delivery is best-effort and never blocks the producer.
package notify

import (
	"sync"
	"time"
)

// Kind names a notification.
type Kind string

const (
	DidUpdateRow                Kind = "did_update_row"
	DidUpdateFields             Kind = "did_update_fields"
	DidUpdateField              Kind = "did_update_field"
	DidUpdateFilter             Kind = "did_update_filter"
	DidUpdateSort               Kind = "did_update_sort"
	DidReorderRows              Kind = "did_reorder_rows"
	DidReorderSingleRow         Kind = "did_reorder_single_row"
	DidUpdateViewRowsVisibility Kind = "did_update_view_rows_visibility"
	DidUpdateGroups             Kind = "did_update_groups"
	DidUpdateGroupRow           Kind = "did_update_group_row"
	DidGroupByField             Kind = "did_group_by_field"
	DidUpdateCalculation        Kind = "did_update_calculation"
	DidUpdateLayoutSettings     Kind = "did_update_layout_settings"
	DidUpdateViewLayout         Kind = "did_update_view_layout"
	DidUpdateFieldSettings      Kind = "did_update_field_settings"
	DidUpdateRowMeta            Kind = "did_update_row_meta"
	DidDeleteView               Kind = "did_delete_view"
)

// Event is one notification about an object (view, row or field ID).
type Event struct {
	ObjectID string    `json:"object_id"`
	Kind     Kind      `json:"kind"`
	Payload  any       `json:"payload,omitempty"`
	At       time.Time `json:"at"`
}

// Sink receives notifications. Send must not block.
type Sink interface {
	Send(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e Event)

// Send calls f.
func (f SinkFunc) Send(e Event) { f(e) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans out to several sinks.
type Multi []Sink

// Send forwards e to every sink.
func (m Multi) Send(e Event) {
	for _, s := range m {
		s.Send(e)
	}
}

// New returns an event stamped with the current time.
func New(objectID string, kind Kind, payload any) Event {
	return Event{ObjectID: objectID, Kind: kind, Payload: payload, At: time.Now()}
}

// Recorder is a Sink that records all notifications.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	wake   chan struct{}
}

// Send records e.
func (r *Recorder) Send(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	if r.wake != nil {
		close(r.wake)
		r.wake = nil
	}
	r.mu.Unlock()
}

// Events returns the recorded notifications.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Filter returns the recorded notifications of a kind.
func (r *Recorder) Filter(kind Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets the recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// WaitFor blocks until a notification matching pred is recorded or timeout
// elapses.
func (r *Recorder) WaitFor(timeout time.Duration, pred func(Event) bool) (Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		r.mu.Lock()
		for _, e := range r.events {
			if pred(e) {
				r.mu.Unlock()
				return e, true
			}
		}
		if r.wake == nil {
			r.wake = make(chan struct{})
		}
		wake := r.wake
		r.mu.Unlock()
		select {
		case <-wake:
		case <-deadline.C:
			return Event{}, false
		}
	}
}
