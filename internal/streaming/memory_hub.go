package streaming

import (
	"context"
	"slices"
	"sync"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 64

type subscription struct {
	ch     chan StreamEvent
	filter EventFilter
}

// offer enqueues ev. When the buffer is full the oldest queued event is
// discarded so the newest callback always reaches the consumer.
func (s *subscription) offer(ev StreamEvent) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case old := <-s.ch:
			eventsDropped.WithLabelValues(old.EventType).Inc()
		default:
		}
	}
}

// MemoryHub is an in-process EventHub. Events are fanned out to every
// matching subscription without blocking the publisher.
type MemoryHub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

// NewMemoryHub creates a MemoryHub with DefaultBuffer sized subscriptions.
func NewMemoryHub() *MemoryHub {
	return NewMemoryHubSize(DefaultBuffer)
}

// NewMemoryHubSize creates a MemoryHub whose subscriptions buffer size events.
func NewMemoryHubSize(size int) *MemoryHub {
	if size < 1 {
		size = 1
	}
	return &MemoryHub{buffer: size, subs: make(map[uint64]*subscription)}
}

// Publish fans event out to the matching subscriptions.
func (h *MemoryHub) Publish(ctx context.Context, event StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.filter.Matches(event) {
			sub.offer(event)
		}
	}
	eventsPublished.WithLabelValues(event.EventType).Inc()
	return nil
}

// Subscribe registers a subscription. The returned cancel function removes
// it and closes the channel; calling it more than once is safe.
func (h *MemoryHub) Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sub := &subscription{ch: make(chan StreamEvent, h.buffer), filter: filter}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(sub.ch)
		})
	}
	return sub.ch, cancel, nil
}

// Subscribers returns the number of live subscriptions.
func (h *MemoryHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Matches reports whether e passes the filter. Zero fields match anything.
func (f EventFilter) Matches(e StreamEvent) bool {
	if f.Surface != "" && f.Surface != e.Surface {
		return false
	}
	return len(f.EventTypes) == 0 || slices.Contains(f.EventTypes, e.EventType)
}

var _ EventHub = (*MemoryHub)(nil)
