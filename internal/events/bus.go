// Package events carries build progress from the orchestrators to whoever
// renders it (terminal printer, JSON log).
package events

import (
	"encoding/json"
	"sync"
)

// Event types published during a run.
const (
	EventRunStarted        = "run.started"
	EventRunFinished       = "run.finished"
	EventNamespaceStarted  = "namespace.started"
	EventNamespaceFinished = "namespace.finished"
	EventVariantStarted    = "variant.started"
	EventVariantState      = "variant.state"
	EventVariantFinished   = "variant.finished"
	EventSweepTag          = "sweep.tag"

	// Wildcard subscribes to every event type.
	Wildcard = "*"
)

// Payload keys shared by publishers and subscribers.
const (
	KeyRunID     = "run_id"
	KeyNamespace = "namespace"
	KeyVariant   = "variant"
	KeyState     = "state"
	KeyStatus    = "status"
	KeyTag       = "tag"
	KeyError     = "error"
	KeyDuration  = "duration_ms"
)

const subscriberBuffer = 100

// Event represents an event in the system
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// Str returns a string payload value, or "".
func (e Event) Str(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Subscriber is a channel that receives events
type Subscriber chan Event

// Bus fans events out to subscribers. A nil *Bus accepts and drops events,
// so publishers never need to check whether anyone listens.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Subscriber
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Subscriber),
	}
}

// Subscribe registers a subscriber for eventType (or Wildcard). It returns
// the receiving channel and a function that unsubscribes and closes it.
func (b *Bus) Subscribe(eventType string) (Subscriber, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()

			subs := b.subscribers[eventType]
			for i, sub := range subs {
				if sub == ch {
					b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
					close(ch)
					break
				}
			}
		})
	}

	return ch, unsubscribe
}

// Publish delivers event to subscribers of its type and to wildcard
// subscribers. A full subscriber misses the event rather than blocking the
// build.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	deliver := func(subs []Subscriber) {
		for _, ch := range subs {
			select {
			case ch <- event:
			default:
			}
		}
	}
	deliver(b.subscribers[event.Type])
	if event.Type != Wildcard {
		deliver(b.subscribers[Wildcard])
	}
}

// Emit publishes an event built from alternating key/value pairs.
func (b *Bus) Emit(eventType string, kv ...interface{}) {
	if b == nil {
		return
	}
	payload := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			payload[key] = kv[i+1]
		}
	}
	b.Publish(Event{Type: eventType, Payload: payload})
}

// MarshalEvent converts an event to JSON
func MarshalEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}
