package api

import (
	"net/http"

	"go.uber.org/zap"

	"beacon-chat/internal/chat"
)

// EventsHandler streams store changes as Server-Sent Events
type EventsHandler struct {
	broadcaster *EventBroadcaster
	store       *chat.Store
	logger      *zap.Logger
}

// NewEventsHandler creates the SSE handler
func NewEventsHandler(broadcaster *EventBroadcaster, store *chat.Store, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		broadcaster: broadcaster,
		store:       store,
		logger:      logger.Named("sse"),
	}
}

// HandleGlobal handles GET /api/events
func (h *EventsHandler) HandleGlobal(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, GlobalTopic)
}

// HandleConversation handles GET /api/conversations/{id}/events
func (h *EventsHandler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.store.Get(id); !ok {
		h.logger.Debug("Events requested for unknown conversation", zap.String("conversation_id", id))
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	h.serve(w, r, id)
}

func (h *EventsHandler) serve(w http.ResponseWriter, r *http.Request, topic string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("Streaming not supported")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	eventCh := h.broadcaster.Subscribe(topic)
	defer h.broadcaster.Unsubscribe(topic, eventCh)

	if _, err := w.Write([]byte("event: connected\ndata: {}\n\n")); err != nil {
		h.logger.Warn("Failed to send connected event", zap.Error(err))
		return
	}
	flusher.Flush()

	h.logger.Debug("Client connected", zap.String("topic", topic))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Client disconnected", zap.String("topic", topic))
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := FormatSSE(event)
			if err != nil {
				h.logger.Error("Failed to format event", zap.Error(err))
				continue
			}
			if _, err := w.Write(data); err != nil {
				h.logger.Debug("Failed to write event", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}
