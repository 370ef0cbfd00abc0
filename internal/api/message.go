package api

import (
	"net/http"

	"go.uber.org/zap"

	"beacon-chat/internal/chat"
	"beacon-chat/internal/logic"
	"beacon-chat/internal/models"
)

// MessageHandler handles the message lifecycle requests
type MessageHandler struct {
	controller *chat.Controller
	logger     *zap.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(controller *chat.Controller, logger *zap.Logger) *MessageHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageHandler{controller: controller, logger: logger}
}

// ContentRequest carries message text for send and save-edit
type ContentRequest struct {
	Content string `json:"content"`
}

// FeedbackRequest is the body of like and dislike
type FeedbackRequest struct {
	Reason  models.DislikeReason `json:"reason,omitempty"`
	Comment string               `json:"comment,omitempty"`
}

// MessageResponse returns a single message
type MessageResponse struct {
	ConversationID string         `json:"conversation_id"`
	Message        models.Message `json:"message"`
	CanUndo        bool           `json:"can_undo"`
}

// EditResponse is the reply of POST /api/messages/{mid}/edit
type EditResponse struct {
	MessageID string `json:"message_id"`
	Draft     string `json:"draft"`
}

// CopyResponse is the reply of GET /api/messages/{mid}/copy
type CopyResponse struct {
	Text string `json:"text"`
}

// FeedbackHistoryResponse lists the feedback given on one message
type FeedbackHistoryResponse struct {
	MessageID string            `json:"message_id"`
	Feedback  []models.Feedback `json:"feedback"`
}

// ActionResponse is the reply of POST /api/actions. Exchange is set for sends only.
type ActionResponse struct {
	Draft    string         `json:"draft"`
	Exchange *chat.Exchange `json:"exchange,omitempty"`
}

// Send handles POST /api/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ex, err := h.controller.Send(r.Context(), req.Content)
	if err != nil {
		h.logger.Info("Send rejected", zap.Error(err))
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ex)
}

// BeginEdit handles POST /api/messages/{mid}/edit
func (h *MessageHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("mid")
	draft, err := h.controller.BeginEdit(id)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EditResponse{MessageID: id, Draft: draft})
}

// CancelEdit handles DELETE /api/messages/{mid}/edit
func (h *MessageHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	if h.controller.EditingID() == r.PathValue("mid") {
		h.controller.CancelEdit()
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveEdit handles PUT /api/messages/{mid}
func (h *MessageHandler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	var req ContentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ex, err := h.controller.SaveEdit(r.Context(), r.PathValue("mid"), req.Content)
	if err != nil {
		h.logger.Info("SaveEdit rejected", zap.String("message_id", r.PathValue("mid")), zap.Error(err))
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ex)
}

// Undo handles POST /api/messages/{mid}/undo
func (h *MessageHandler) Undo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("mid")
	if err := h.controller.UndoEdit(id); err != nil {
		writeControllerError(w, err)
		return
	}
	h.writeMessage(w, id)
}

// Regenerate handles POST /api/messages/{mid}/regenerate
func (h *MessageHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	ex, err := h.controller.Regenerate(r.Context(), r.PathValue("mid"))
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ex)
}

// Like handles POST /api/messages/{mid}/like
func (h *MessageHandler) Like(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("mid")
	if err := h.controller.Like(id); err != nil {
		writeControllerError(w, err)
		return
	}
	h.writeMessage(w, id)
}

// Dislike handles POST /api/messages/{mid}/dislike
func (h *MessageHandler) Dislike(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := r.PathValue("mid")
	if err := h.controller.Dislike(id, req.Reason, req.Comment); err != nil {
		writeControllerError(w, err)
		return
	}
	h.writeMessage(w, id)
}

// Copy handles GET /api/messages/{mid}/copy
func (h *MessageHandler) Copy(w http.ResponseWriter, r *http.Request) {
	text, err := h.controller.Copy(r.PathValue("mid"))
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CopyResponse{Text: text})
}

// FeedbackHistory handles GET /api/messages/{mid}/feedback
func (h *MessageHandler) FeedbackHistory(w http.ResponseWriter, r *http.Request) {
	msgID := r.PathValue("mid")
	history, err := h.controller.FeedbackHistory(msgID)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	if history == nil {
		history = []models.Feedback{}
	}
	writeJSON(w, http.StatusOK, FeedbackHistoryResponse{MessageID: msgID, Feedback: history})
}

// Stop handles POST /api/stop
func (h *MessageHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.controller.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// Action handles POST /api/actions
func (h *MessageHandler) Action(w http.ResponseWriter, r *http.Request) {
	var action logic.Action
	if err := decodeBody(r, &action); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := action.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ex, err := h.controller.Dispatch(r.Context(), action)
	if err != nil {
		writeControllerError(w, err)
		return
	}

	status := http.StatusOK
	if ex != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, ActionResponse{Draft: h.controller.Draft(), Exchange: ex})
}

// Notifications handles GET /api/notifications
func (h *MessageHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	list := h.controller.Notifications()
	if list == nil {
		list = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *MessageHandler) writeMessage(w http.ResponseWriter, id string) {
	convID, msg, ok := h.controller.Store().FindMessage(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{
		ConversationID: convID,
		Message:        msg,
		CanUndo:        h.controller.CanUndo(id),
	})
}
