package notify

import (
	"sync"
	"time"
)

// DefaultDebounce is the coalescing window used by the editor.
const DefaultDebounce = 200 * time.Millisecond

type debounceKey struct {
	objectID string
	kind     Kind
}

// Debouncer coalesces bursts of the same notification kind about the same
// object; only the latest one of a burst is forwarded, once the window
// elapses. Kinds not listed pass through immediately.
type Debouncer struct {
	next   Sink
	window time.Duration
	kinds  map[Kind]bool

	mu      sync.Mutex
	pending map[debounceKey]*pendingEvent
	closed  bool
}

type pendingEvent struct {
	e     Event
	timer *time.Timer
}

// NewDebouncer wraps next. With no kinds, every kind is debounced.
func NewDebouncer(next Sink, window time.Duration, kinds ...Kind) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	d := &Debouncer{next: next, window: window, pending: map[debounceKey]*pendingEvent{}}
	if len(kinds) != 0 {
		d.kinds = map[Kind]bool{}
		for _, k := range kinds {
			d.kinds[k] = true
		}
	}
	return d
}

// Send forwards or delays e.
func (d *Debouncer) Send(e Event) {
	if d.kinds != nil && !d.kinds[e.Kind] {
		d.next.Send(e)
		return
	}
	key := debounceKey{e.ObjectID, e.Kind}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if p, ok := d.pending[key]; ok {
		p.e = e
		return
	}
	p := &pendingEvent{e: e}
	p.timer = time.AfterFunc(d.window, func() { d.fire(key) })
	d.pending[key] = p
}

func (d *Debouncer) fire(key debounceKey) {
	d.mu.Lock()
	p, ok := d.pending[key]
	delete(d.pending, key)
	d.mu.Unlock()
	if ok {
		d.next.Send(p.e)
	}
}

// Flush forwards every pending notification now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = map[debounceKey]*pendingEvent{}
	d.mu.Unlock()
	for _, p := range pending {
		// A timer that already fired finds nothing left to send in fire.
		p.timer.Stop()
		d.next.Send(p.e)
	}
}

// Close flushes and stops accepting debounced notifications.
func (d *Debouncer) Close() {
	d.Flush()
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}
