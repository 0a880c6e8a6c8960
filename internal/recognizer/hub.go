package recognizer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Subscription receives encoded frames until it is unsubscribed or the hub closes it.
type Subscription struct {
	ID uuid.UUID
	C  <-chan []byte
}

// Hub fans frames out to stream consumers without ever blocking the publisher.
// Each subscriber has a small buffer; when it is full the oldest frame is dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]chan []byte
	buffer int
}

// NewHub creates a hub with the given per-subscriber buffer size.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = constants.DefaultStreamBuffer
	}
	return &Hub{subs: make(map[uuid.UUID]chan []byte), buffer: buffer}
}

// Subscribe registers a new consumer.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan []byte, h.buffer)
	id := uuid.New()

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return &Subscription{ID: id, C: ch}
}

// Unsubscribe removes a consumer and closes its channel. Unknown IDs are ignored.
func (h *Hub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish offers frame to every subscriber, replacing the oldest buffered frame if needed.
func (h *Hub) Publish(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- frame:
			continue
		default:
		}
		// Full: drop the oldest frame and retry once. Sends happen under h.mu.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// CloseAll closes and removes every subscription.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
