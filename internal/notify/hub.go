package notify

import (
	"log/slog"
	"sync"
)

// Hub routes notifications to per-object subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan Event
	nextID int
	buffer int
}

// NewHub returns a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: map[string]map[int]chan Event{}, buffer: buffer}
}

// Subscribe returns the notifications about objectID. An empty objectID
// receives everything. The returned function cancels the subscription and
// closes the channel.
func (h *Hub) Subscribe(objectID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	if h.subs[objectID] == nil {
		h.subs[objectID] = map[int]chan Event{}
	}
	h.subs[objectID][id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[objectID], id)
			if len(h.subs[objectID]) == 0 {
				delete(h.subs, objectID)
			}
			close(ch)
		})
	}
}

// Send delivers e to the subscribers of its object. Full subscribers miss it.
func (h *Hub) Send(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, key := range []string{e.ObjectID, ""} {
		for _, ch := range h.subs[key] {
			select {
			case ch <- e:
			default:
				slog.Warn("Dropped notification for slow subscriber", "object_id", e.ObjectID, "kind", e.Kind)
			}
		}
		if e.ObjectID == "" {
			break
		}
	}
}
