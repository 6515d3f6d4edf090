// Package hub fans out UI events (toasts, recorder state) to subscribers.
package hub

import (
	"sync"
	"time"

	"github.com/Pr4c0w1ty/whispering/internal/metrics"
)

// EventType represents the type of UI event
type EventType string

const (
	EventConnected     EventType = "connected"
	EventToast         EventType = "toast"
	EventRecorderState EventType = "recorderState"
	EventTranscript    EventType = "transcript"
)

// Event represents a UI event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Hub manages subscriptions and event broadcasting
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int
}

// New creates a hub whose subscriber channels hold buffer events.
func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subscribers: make(map[chan Event]struct{}), buffer: buffer}
}

// Subscribe returns the event channel and an unsubscribe function.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	metrics.EventSubscribers.Inc()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			close(ch)
			h.mu.Unlock()
			metrics.EventSubscribers.Dec()
		})
	}
	return ch, unsubscribe
}

// Publish broadcasts an event. Subscribers with a full buffer miss it.
func (h *Hub) Publish(typ EventType, data any) {
	ev := Event{Type: typ, Timestamp: time.Now().UnixMilli(), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
