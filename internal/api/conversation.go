package api

import (
	"net/http"

	"go.uber.org/zap"

	"beacon-chat/internal/chat"
	"beacon-chat/internal/models"
)

// ConversationHandler handles conversation collection requests
type ConversationHandler struct {
	controller *chat.Controller
	logger     *zap.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(controller *chat.Controller, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{controller: controller, logger: logger}
}

// ConversationListResponse is the reply of GET /api/conversations
type ConversationListResponse struct {
	Conversations []models.ConversationSummary `json:"conversations"`
	CurrentID     string                       `json:"current_id"`
}

// ConversationResponse is a conversation with its messages
type ConversationResponse struct {
	models.Conversation
	IsCurrent bool `json:"is_current"`
}

// UpdateConversationRequest is the body of PATCH /api/conversations/{id}.
// Absent fields are left unchanged.
type UpdateConversationRequest struct {
	Title  *string `json:"title,omitempty"`
	Pinned *bool   `json:"pinned,omitempty"`
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	store := h.controller.Store()
	convs := store.List()
	if convs == nil {
		convs = []models.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, ConversationListResponse{
		Conversations: convs,
		CurrentID:     store.CurrentID(),
	})
}

// Create handles POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	conv := h.controller.CreateConversation()
	writeJSON(w, http.StatusCreated, ConversationResponse{Conversation: conv, IsCurrent: true})
}

// Get handles GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	store := h.controller.Store()

	conv, ok := store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, ConversationResponse{Conversation: conv, IsCurrent: store.CurrentID() == id})
}

// Select handles PUT /api/conversations/{id}/current
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.controller.SelectConversation(id); err != nil {
		writeControllerError(w, err)
		return
	}
	h.Get(w, r)
}

// Update handles PATCH /api/conversations/{id}
func (h *ConversationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateConversationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == nil && req.Pinned == nil {
		writeError(w, http.StatusBadRequest, "Title or pinned is required")
		return
	}

	if req.Title != nil {
		if err := h.controller.RenameConversation(id, *req.Title); err != nil {
			writeControllerError(w, err)
			return
		}
	}
	if req.Pinned != nil {
		if err := h.controller.PinConversation(id, *req.Pinned); err != nil {
			writeControllerError(w, err)
			return
		}
	}

	h.logger.Info("Conversation updated", zap.String("conversation_id", id))
	h.Get(w, r)
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.DeleteConversation(r.PathValue("id")); err != nil {
		writeControllerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
