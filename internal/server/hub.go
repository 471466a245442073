package server

import (
	"sync"

	"github.com/me/gopop/pkg/model"
)

// Hub fans scheduler events out to live subscribers (SSE clients).
// Slow subscribers lose events rather than blocking the scheduler.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[model.EventKind][]chan model.Event
	bufferSize  int
	closed      bool
}

const wildcard model.EventKind = "*"

// NewHub creates an empty hub.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Hub{
		subscribers: make(map[model.EventKind][]chan model.Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel receiving events of the given kinds, or of
// every kind when none are given. The channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe(kinds ...model.EventKind) <-chan model.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan model.Event, h.bufferSize)
	if h.closed {
		close(ch)
		return ch
	}
	if len(kinds) == 0 {
		kinds = []model.EventKind{wildcard}
	}
	for _, kind := range kinds {
		h.subscribers[kind] = append(h.subscribers[kind], ch)
	}
	return ch
}

// Unsubscribe removes ch from every kind it was subscribed to and closes it.
func (h *Hub) Unsubscribe(ch <-chan model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var found chan model.Event
	for kind, subs := range h.subscribers {
		for i, c := range subs {
			if c == ch {
				found = c
				h.subscribers[kind] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(h.subscribers[kind]) == 0 {
			delete(h.subscribers, kind)
		}
	}
	if found != nil {
		close(found)
	}
}

// Publish delivers ev to matching subscribers without blocking.
func (h *Hub) Publish(ev model.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, kind := range []model.EventKind{ev.Kind, wildcard} {
		for _, ch := range h.subscribers[kind] {
			select {
			case ch <- ev:
			default:
				// Channel full, drop.
			}
		}
	}
}

// Len returns the number of distinct subscriber channels.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[chan model.Event]struct{}{}
	for _, subs := range h.subscribers {
		for _, ch := range subs {
			seen[ch] = struct{}{}
		}
	}
	return len(seen)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := map[chan model.Event]struct{}{}
	for _, subs := range h.subscribers {
		for _, ch := range subs {
			if _, ok := closed[ch]; !ok {
				close(ch)
				closed[ch] = struct{}{}
			}
		}
	}
	h.subscribers = make(map[model.EventKind][]chan model.Event)
	h.closed = true
}
