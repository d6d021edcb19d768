package notify

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Common errors returned by the hub.
var (
	ErrNilHandler   = errors.New("handler is nil")
	ErrInvalidTopic = errors.New("topic is empty")
)

// Handler receives a published payload. Handlers run synchronously on
// the publisher's goroutine and must not block on cache operations
// that could publish in turn.
type Handler func(payload any)

// Subscription is a handle to an active subscription.
type Subscription struct {
	id    string
	topic Topic
}

// ID returns the subscription's unique identifier.
func (s Subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic.
func (s Subscription) Topic() Topic {
	return s.topic
}

// Hub is a synchronous, topic-keyed notification fan-out.
// It is safe for concurrent use.
type Hub struct {
	mu   sync.RWMutex
	subs map[Topic]map[string]Handler

	published atomic.Uint64
	delivered atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[Topic]map[string]Handler),
	}
}

// Subscribe registers a handler for a topic.
func (h *Hub) Subscribe(topic Topic, fn Handler) (Subscription, error) {
	if fn == nil {
		return Subscription{}, ErrNilHandler
	}
	if topic == "" {
		return Subscription{}, ErrInvalidTopic
	}

	sub := Subscription{id: uuid.NewString(), topic: topic}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[string]Handler)
	}
	h.subs[topic][sub.id] = fn
	return sub, nil
}

// Unsubscribe removes a subscription. Unknown subscriptions are a
// no-op.
func (h *Hub) Unsubscribe(sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if handlers, ok := h.subs[sub.topic]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(h.subs, sub.topic)
		}
	}
}

// Publish delivers the payload to every handler subscribed to the
// topic, synchronously, in unspecified order.
func (h *Hub) Publish(topic Topic, payload any) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[topic]))
	for _, fn := range h.subs[topic] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	h.published.Add(1)
	for _, fn := range handlers {
		fn(payload)
		h.delivered.Add(1)
	}
}

// Stats reports publish and delivery counts.
func (h *Hub) Stats() (published, delivered uint64) {
	return h.published.Load(), h.delivered.Load()
}

// SubscriberCount returns the number of handlers for a topic.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
