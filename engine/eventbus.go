package engine

import (
	"sync"
	"time"
)

// EventType discriminates the shop-floor events; the constants live in
// events.go next to their payload structs.
type EventType int

// Event is one occurrence on the bus: a log transition, a machine status
// change, an inspection, and so on. Payload holds the typed struct for
// the event's type.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// EventBus fans events out to per-type subscribers. Delivery is
// synchronous on the emitting goroutine, so audit rows and outbox
// messages land in the order the transitions committed. Subscribers
// register once at wiring time and stay for the life of the engine.
type EventBus struct {
	mu   sync.RWMutex
	subs map[EventType][]func(Event)
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[EventType][]func(Event))}
}

// SubscribeTypes registers fn for each of the given event types.
func (eb *EventBus) SubscribeTypes(fn func(Event), types ...EventType) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for _, t := range types {
		eb.subs[t] = append(eb.subs[t], fn)
	}
}

// Emit delivers evt to every subscriber of its type. The subscriber list
// is copied out so a handler emitting follow-up events never holds the
// bus lock.
func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	fns := make([]func(Event), len(eb.subs[evt.Type]))
	copy(fns, eb.subs[evt.Type])
	eb.mu.RUnlock()

	for _, fn := range fns {
		fn(evt)
	}
}
