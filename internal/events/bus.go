package events

import (
	"sync"
	"time"
)

const defaultBuffer = 32

// Bus fans events out to subscribers over buffered channels. A full
// subscriber loses its oldest pending event so producers never block, and
// delivery order is the emit order.
type Bus struct {
	mu      sync.Mutex
	subs    map[int]*subscription
	nextID  int
	dropped uint64
	now     func() time.Time
}

type subscription struct {
	ch     chan Event
	topics map[string]bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
		now:  time.Now,
	}
}

// Subscribe registers a listener for the given topics, or for every topic
// when none are named.
func (b *Bus) Subscribe(buffer int, topics ...string) (int, <-chan Event) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	sub := &subscription{ch: make(chan Event, buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub

	return id, sub.ch
}

// Unsubscribe removes the listener and closes its channel.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Emit delivers the event to every interested subscriber.
func (b *Bus) Emit(topic string, payload any) {
	ev := Event{Topic: topic, Payload: payload, At: b.now()}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.topics != nil && !sub.topics[topic] {
			continue
		}
		for {
			select {
			case sub.ch <- ev:
			default:
				select {
				case <-sub.ch:
					b.dropped++
				default:
				}
				continue
			}
			break
		}
	}
}

// Dropped returns how many events were discarded because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close unsubscribes every listener.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
