package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/chat"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps controller errors to HTTP status codes
func statusFor(err error) int {
	var apiErr *assistant.APIError
	switch {
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, chat.ErrConversationNotFound),
		errors.Is(err, chat.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrNoCurrentConversation),
		errors.Is(err, chat.ErrStreamInProgress),
		errors.Is(err, chat.ErrAlreadyRegenerating),
		errors.Is(err, chat.ErrMessageStreaming),
		errors.Is(err, chat.ErrNothingToUndo):
		return http.StatusConflict
	case errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, chat.ErrNotAssistantMessage),
		errors.Is(err, chat.ErrNotUserMessage),
		errors.Is(err, chat.ErrInvalidReason):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeControllerError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
