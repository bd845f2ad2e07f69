// Package events is the in-process change notification channel. Services
// publish on a topic and every subscriber of that topic receives the event
// synchronously, in publish order.
package events

import (
	"sync"
	"time"
)

type Topic string

const (
	TopicOfflineCartChanged  Topic = "offline_cart_changed"
	TopicSyncStateChanged    Topic = "sync_state_changed"
	TopicCartIdentityChanged Topic = "cart_identity_changed"
	TopicConnectivityChanged Topic = "connectivity_changed"
	TopicNotification        Topic = "notification"
)

// AllTopics lists every topic, for subscribers that want everything.
var AllTopics = []Topic{
	TopicOfflineCartChanged,
	TopicSyncStateChanged,
	TopicCartIdentityChanged,
	TopicConnectivityChanged,
	TopicNotification,
}

type Event struct {
	Topic     Topic       `json:"topic"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

type OfflineCartChanged struct {
	Count int `json:"count"`
	Items int `json:"items"`
}

type SyncStateChanged struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CartIdentityChanged struct {
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current,omitempty"`
}

type ConnectivityChanged struct {
	Online bool   `json:"online"`
	Mode   string `json:"mode"`
}

type Subscriber interface {
	OnEvent(Event)
}

type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(e Event) { f(e) }

type subscription struct {
	id  uint64
	sub Subscriber
}

type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Topic][]subscription
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[Topic][]subscription),
	}
}

// Subscribe registers sub for topic. The returned func removes it and is
// safe to call more than once.
func (b *Bus) Subscribe(topic Topic, sub Subscriber) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, sub: sub})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[topic]
			for i, s := range list {
				if s.id == id {
					b.subs[topic] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers e to the current subscribers of its topic. A nil bus
// drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	list := make([]subscription, len(b.subs[e.Topic]))
	copy(list, b.subs[e.Topic])
	b.mu.RUnlock()

	for _, s := range list {
		s.sub.OnEvent(e)
	}
}

func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
