// Package notify is the in-process notification bus.
package notify

import (
	"maps"
	"sync"
	"time"
)

// Event is one published notification.
type Event struct {
	Topic  string
	Action string
	Fields map[string]any
	Time   time.Time
}

// Logger is the logging surface used by the bus.
type Logger interface {
	Warn(msg string, args ...any)
}

const defaultBuffer = 64

// Bus fans events out to subscribers. Send never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	logger Logger
	now    func() time.Time

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	ch      chan Event
	topics  map[string]struct{}
	dropped int
}

// NewBus returns an empty bus.
func NewBus(logger Logger) *Bus {
	return &Bus{logger: logger, now: time.Now, subs: make(map[int]*subscription)}
}

// Send publishes an event to every subscriber interested in topic.
func (b *Bus) Send(topic, action string, fields map[string]any) {
	ev := Event{Topic: topic, Action: action, Fields: maps.Clone(fields), Time: b.now()}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		if len(sub.topics) > 0 {
			if _, ok := sub.topics[topic]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			if b.logger != nil {
				b.logger.Warn("notification dropped for slow subscriber",
					"subscriber", id, "topic", topic, "dropped", sub.dropped)
			}
		}
	}
}

// Subscribe returns a channel of events for the given topics (all topics
// when none are named) and a cancel function that closes it.
func (b *Bus) Subscribe(topics ...string) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, defaultBuffer), topics: make(map[string]struct{}, len(topics))}
	for _, t := range topics {
		sub.topics[t] = struct{}{}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
