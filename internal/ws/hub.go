package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Topics clients can subscribe to.
const (
	TopicFloor    = "floor"
	TopicPrinters = "printers"
)

// ValidTopic reports whether t is a known topic.
func ValidTopic(t string) bool {
	return t == TopicFloor || t == TopicPrinters
}

// Event is one message pushed to subscribers.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type topicEvent struct {
	topic string
	event Event
}

// Hub fans events out to the clients subscribed to each topic.
type Hub struct {
	topics map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *topicEvent
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a hub with no subscribers. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		topics:     make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for topic, clients := range h.topics {
				for c := range clients {
					close(c.send)
				}
				delete(h.topics, topic)
			}
			h.mu.Unlock()
			close(h.done)
			return

		case c := <-h.register:
			h.mu.Lock()
			if h.topics[c.topic] == nil {
				h.topics[c.topic] = make(map[*Client]bool)
			}
			h.topics[c.topic][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			message, err := json.Marshal(ev.event)
			if err != nil {
				log.Error().Err(err).Str("type", ev.event.Type).Msg("ws: marshal event")
				continue
			}
			h.mu.Lock()
			for c := range h.topics[ev.topic] {
				select {
				case c.send <- message:
				default:
					// Slow consumer; it reconnects and reloads.
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes c; callers hold mu.
func (h *Hub) drop(c *Client) {
	clients, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, exists := clients[c]; !exists {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.topics, c.topic)
	}
}

// Publish queues an event for every subscriber of topic. It never blocks
// the caller; events are dropped when the queue is full.
func (h *Hub) Publish(topic, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("ws: marshal payload")
		return
	}
	select {
	case h.broadcast <- &topicEvent{topic: topic, event: Event{Type: eventType, Payload: data}}:
	default:
		log.Warn().Str("topic", topic).Str("type", eventType).Msg("ws: broadcast queue full, event dropped")
	}
}

// Subscribers returns the number of clients on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
