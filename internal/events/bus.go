// Package events is a minimal in-process publish/subscribe bus carrying
// cache invalidation triggers between the HTTP layer, the workers, and the
// caches.
package events

import (
	"sync"
	"time"
)

// Topic names one event stream.
type Topic string

const (
	// TopicRefreshRequested fires when a caller asks for fresh data
	// (the pull-to-refresh analog).
	TopicRefreshRequested Topic = "refresh.requested"

	// TopicSnapshotWritten fires after a portfolio snapshot is persisted.
	TopicSnapshotWritten Topic = "snapshot.written"
)

// Event is one published occurrence.
type Event struct {
	Topic Topic
	At    time.Time
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that is not draining its channel misses events rather than stalling the
// publisher. Invalidation triggers are idempotent, so a dropped duplicate
// is harmless.
type Bus struct {
	mu   sync.Mutex
	subs map[Topic][]chan Event
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]chan Event)}
}

// Subscribe returns a channel receiving events for topic.
func (b *Bus) Subscribe(topic Topic) <-chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers an event to every subscriber of its topic.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	subs := b.subs[event.Topic]
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Emit publishes an event for topic stamped with the current time.
func (b *Bus) Emit(topic Topic) {
	b.Publish(Event{Topic: topic, At: time.Now()})
}
