package server

import (
	"sync"
	"sync/atomic"

	"github.com/shellbridge/shellbridge/internal/filter"
	"github.com/shellbridge/shellbridge/internal/result"
)

// subscriber is one connection's interest in a topic, with an optional
// WHERE-clause rule narrowing which messages it receives.
type subscriber struct {
	id   int64
	rule *filter.Rule
	send func(result.Message)
}

// Hub is the reference server's topic-based publish/subscribe registry.
// Every StreamingTransport connection that issues "subscribe <topic>"
// registers a subscriber here; Publish fans a message out to every
// subscriber on that topic whose rule (if any) matches.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[int64]*subscriber
	nextID atomic.Int64
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[int64]*subscriber)}
}

// Subscribe registers send to receive messages published to topic. rule
// may be nil to receive every message on the topic unfiltered. It returns
// a subscription id scoped to topic, used later with Unsubscribe.
func (h *Hub) Subscribe(topic string, rule *filter.Rule, send func(result.Message)) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID.Add(1)
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[int64]*subscriber)
	}
	h.topics[topic][id] = &subscriber{id: id, rule: rule, send: send}
	return id
}

// Unsubscribe removes the subscription id from topic.
func (h *Hub) Unsubscribe(topic string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.topics[topic]
	if subs == nil {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// UnsubscribeAll removes every subscription recorded in ids, a
// topic-to-subscription-id map a connection accumulates over its
// lifetime, so a disconnecting connection can clean up in one call.
func (h *Hub) UnsubscribeAll(ids map[string]int64) {
	for topic, id := range ids {
		h.Unsubscribe(topic, id)
	}
}

// Publish builds a data message from source/payload and fans it out to
// every matching subscriber of topic. A subscriber's rule, when present,
// is evaluated against the same context shape FilterExpression.Matches
// builds: {type, payload, source, timestamp, metadata}.
func (h *Hub) Publish(topic, source string, payload any) {
	msg := result.DataMessage(source, payload).WithMetadata(map[string]any{"topic": topic})

	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.topics[topic]))
	for _, s := range h.topics[topic] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	for _, s := range subs {
		if s.rule != nil && !s.rule.Matches(messageContext(msg)) {
			continue
		}
		s.send(msg)
	}
}

func messageContext(msg result.Message) map[string]any {
	return map[string]any{
		"type":      string(msg.Type),
		"payload":   msg.Payload,
		"source":    msg.Source,
		"timestamp": msg.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		"metadata":  msg.Metadata,
	}
}

// TopicCount reports how many distinct topics currently have at least one
// subscriber, for status reporting.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}
