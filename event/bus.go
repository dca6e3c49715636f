// Package event provides a topic-keyed, in-process event bus. Platform code publishes samples
// (connectivity changes, RSSI readings, scan results) and event sources subscribe to them.
package event

import (
	"sync"
)

// Topic identifies a stream of events on a Bus.
type Topic string

type subscribers map[*Subscription]func(data any)

// Subscription allows unsubscribing from a topic.
type Subscription struct {
	topic Topic
}

// Topic returns the topic the subscription listens to.
func (s *Subscription) Topic() Topic { return s.topic }

// Bus manages subscriptions and publications. The zero value is not usable; use NewBus.
type Bus struct {
	subscribers map[Topic]subscribers
	order       map[Topic][]*Subscription
	last        map[Topic]any
	mu          sync.RWMutex
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[Topic]subscribers),
		order:       make(map[Topic][]*Subscription),
		last:        make(map[Topic]any),
	}
}

// Subscribe registers a callback for the given topic and returns a Subscription for later
// unsubscription. Callbacks are invoked synchronously by Publish, so they must not block.
func (b *Bus) Subscribe(topic Topic, callback func(data any)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(subscribers)
	}
	sub := &Subscription{topic: topic}
	b.subscribers[topic][sub] = callback
	b.order[topic] = append(b.order[topic], sub)
	return sub
}

// Unsubscribe removes the given subscription. Unsubscribing twice is harmless.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[sub.topic]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	order := b.order[sub.topic]
	for i, s := range order {
		if s == sub {
			b.order[sub.topic] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.subscribers, sub.topic)
		delete(b.order, sub.topic)
	}
}

// Publish records data as the latest value of topic and hands it to every subscriber, in
// subscription order, on the calling goroutine.
func (b *Bus) Publish(topic Topic, data any) {
	b.mu.Lock()
	b.last[topic] = data
	order := b.order[topic]
	callbacks := make([]func(any), 0, len(order))
	for _, sub := range order {
		callbacks = append(callbacks, b.subscribers[topic][sub])
	}
	b.mu.Unlock()

	for _, cb := range callbacks {
		cb(data)
	}
}

// Last returns the most recently published value for topic.
func (b *Bus) Last(topic Topic) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.last[topic]
	return v, ok
}

// Subscribers returns the number of subscriptions for topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}
