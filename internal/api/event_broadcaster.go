package api

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"beacon-chat/internal/chat"
	"beacon-chat/internal/watcher"
)

// GlobalTopic receives every event, whatever conversation it concerns
const GlobalTopic = ""

const clientBuffer = 10

// Event is a single server-sent event
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventBroadcaster fans events out to SSE and WebSocket subscribers by topic.
// A topic is a conversation id, or GlobalTopic.
type EventBroadcaster struct {
	mu      sync.RWMutex
	clients map[string]map[chan Event]struct{}
	logger  *zap.Logger
}

// NewEventBroadcaster creates an empty broadcaster
func NewEventBroadcaster(logger *zap.Logger) *EventBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBroadcaster{
		clients: make(map[string]map[chan Event]struct{}),
		logger:  logger.Named("events"),
	}
}

// Subscribe adds a client for topic
func (b *EventBroadcaster) Subscribe(topic string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, clientBuffer)

	if b.clients[topic] == nil {
		b.clients[topic] = make(map[chan Event]struct{})
	}
	b.clients[topic][ch] = struct{}{}

	b.logger.Debug("Client subscribed",
		zap.String("topic", topic),
		zap.Int("total_clients", len(b.clients[topic])))

	return ch
}

// Unsubscribe removes the client and closes its channel
func (b *EventBroadcaster) Unsubscribe(topic string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[topic]; ok {
		if _, ok := clients[ch]; ok {
			delete(clients, ch)
			close(ch)
		}
		if len(clients) == 0 {
			delete(b.clients, topic)
		}
	}

	b.logger.Debug("Client unsubscribed", zap.String("topic", topic))
}

// Broadcast sends event to every client of topic. Slow clients miss events
// instead of blocking the sender.
func (b *EventBroadcaster) Broadcast(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.clients[topic] {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Client channel full, skipping event",
				zap.String("topic", topic),
				zap.String("type", event.Type))
		}
	}
}

// Publish sends event to the conversation topic and to the global topic
func (b *EventBroadcaster) Publish(conversationID string, event Event) {
	if conversationID != GlobalTopic {
		b.Broadcast(conversationID, event)
	}
	b.Broadcast(GlobalTopic, event)
}

// ObserveChange forwards a store change. It is registered as a chat.Observer.
func (b *EventBroadcaster) ObserveChange(change chat.Change) {
	b.Publish(change.ConversationID, Event{Type: string(change.Kind), Data: change})
}

// ObserveHealth forwards a health check result to the global topic
func (b *EventBroadcaster) ObserveHealth(status watcher.Status) {
	b.Broadcast(GlobalTopic, Event{Type: "health", Data: status})
}

// ClientCount returns the number of clients subscribed to topic
func (b *EventBroadcaster) ClientCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[topic])
}

// TotalClientCount returns the number of clients over all topics
func (b *EventBroadcaster) TotalClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}

// FormatSSE renders event in text/event-stream framing
func FormatSSE(event Event) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte("event: " + event.Type + "\ndata: " + string(data) + "\n\n"), nil
}
