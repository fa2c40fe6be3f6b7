// Package notify fans storage change events out to live subscribers such
// as websocket clients.
package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types.
const (
	FileCreated   = "file.created"
	FileUpdated   = "file.updated"
	FileDeleted   = "file.deleted"
	FolderCreated = "folder.created"
	FolderUpdated = "folder.updated"
	FolderDeleted = "folder.deleted"
	QuotaChanged  = "quota.changed"
)

// Event describes one committed mutation.
type Event struct {
	Type     string    `json:"type"`
	ID       int64     `json:"id,omitempty"`
	FolderID *int64    `json:"folderId,omitempty"`
	At       time.Time `json:"at"`
}

// Hub broadcasts events to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event and the drop is counted.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	next    uint64
	buffer  int
	dropped atomic.Int64
}

// NewHub creates a Hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[uint64]chan Event), buffer: buffer}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber, stamping At if unset.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
