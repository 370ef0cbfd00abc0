package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"beacon-chat/internal/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is the envelope for both directions of the socket
type wsMessage struct {
	Type string `json:"type"`
	// Topic narrows the subscription to one conversation when sent by the client
	Topic     string `json:"topic,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// WebSocketHandler mirrors the SSE stream over a WebSocket.
// Clients start on the global topic and may switch with {"type":"subscribe","topic":"<conversation id>"}.
type WebSocketHandler struct {
	broadcaster *EventBroadcaster
	logger      *zap.Logger
}

// NewWebSocketHandler creates the WebSocket handler
func NewWebSocketHandler(broadcaster *EventBroadcaster, log *zap.Logger) *WebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebSocketHandler{broadcaster: broadcaster, logger: log.Named("ws")}
}

// wsClient is one connected socket
type wsClient struct {
	id     string
	conn   *websocket.Conn
	topics chan string
	done   chan struct{}
	h      *WebSocketHandler
}

// ServeWS handles GET /api/ws
func (h *WebSocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := &wsClient{
		id:     uuid.NewString(),
		conn:   conn,
		topics: make(chan string, 1),
		done:   make(chan struct{}),
		h:      h,
	}
	h.logger.Debug("Client connected", zap.String("client_id", client.id))

	logger.Go(h.logger, "ws-write", client.writePump)
	client.readPump()
}

// readPump handles client control messages until the socket closes
func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		c.conn.Close()
		c.h.logger.Debug("Client disconnected", zap.String("client_id", c.id))
	}()

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.h.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.h.logger.Debug("Ignoring malformed message", zap.Error(err))
			continue
		}

		if msg.Type == "subscribe" {
			// keep only the most recent request
			select {
			case <-c.topics:
			default:
			}
			c.topics <- msg.Topic
		}
	}
}

// writePump owns every write to the socket: events, pings and pongs
func (c *wsClient) writePump() {
	topic := GlobalTopic
	events := c.h.broadcaster.Subscribe(topic)
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.h.broadcaster.Unsubscribe(topic, events)
		c.conn.Close()
	}()

	if err := c.write(wsMessage{Type: "connected", Data: map[string]string{"client_id": c.id}}); err != nil {
		return
	}

	for {
		select {
		case <-c.done:
			return
		case next := <-c.topics:
			c.h.broadcaster.Unsubscribe(topic, events)
			topic = next
			events = c.h.broadcaster.Subscribe(topic)
			if err := c.write(wsMessage{Type: "subscribed", Topic: topic}); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := c.write(wsMessage{Type: event.Type, Topic: topic, Data: event.Data}); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) write(msg wsMessage) error {
	msg.Timestamp = time.Now().Unix()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.h.logger.Debug("WebSocket write failed", zap.String("client_id", c.id), zap.Error(err))
		return err
	}
	return nil
}
