package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"beacon-chat/internal/chat"
	"beacon-chat/internal/watcher"
)

// HealthHandler handles GET /health
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// StatusResponse is the reply of GET /api/status
type StatusResponse struct {
	Backend       watcher.Status `json:"backend"`
	Streaming     bool           `json:"streaming"`
	Simulator     bool           `json:"simulator"`
	Clients       int            `json:"clients"`
	Conversations int            `json:"conversations"`
}

// StatusHandler reports backend connectivity and the streaming indicator
type StatusHandler struct {
	controller  *chat.Controller
	health      *watcher.HealthWatcher
	broadcaster *EventBroadcaster
	simulator   bool
}

// Status handles GET /api/status. ?refresh=true runs a health check first.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Streaming:     h.controller.IsStreaming(),
		Simulator:     h.simulator,
		Clients:       h.broadcaster.TotalClientCount(),
		Conversations: h.controller.Store().Len(),
	}
	switch {
	case h.health == nil:
		resp.Backend = watcher.Status{Status: watcher.StatusUnknown}
	case r.URL.Query().Get("refresh") == "true":
		resp.Backend = h.health.Check(r.Context())
	default:
		resp.Backend = h.health.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Admin is the backend maintenance surface
type Admin interface {
	ClearHistory(ctx context.Context) (map[string]any, error)
	History(ctx context.Context) (map[string]any, error)
	CacheStats(ctx context.Context) (map[string]any, error)
	ClearCache(ctx context.Context) (map[string]any, error)
}

const adminTimeout = 15 * time.Second

// AdminHandler forwards maintenance calls to the backend
type AdminHandler struct {
	admin  Admin
	logger *zap.Logger
}

// ClearHistory handles POST /api/admin/clear
func (h *AdminHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, "clear_history", h.admin.ClearHistory)
}

// History handles GET /api/admin/history
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, "history", h.admin.History)
}

// CacheStats handles GET /api/admin/cache
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, "cache_stats", h.admin.CacheStats)
}

// ClearCache handles POST /api/admin/cache/clear
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, "clear_cache", h.admin.ClearCache)
}

func (h *AdminHandler) forward(w http.ResponseWriter, r *http.Request, op string, call func(context.Context) (map[string]any, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
	defer cancel()

	result, err := call(ctx)
	if err != nil {
		h.logger.Warn("Admin call failed", zap.String("op", op), zap.Error(err))
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.logger.Info("Admin call completed", zap.String("op", op))
	writeJSON(w, http.StatusOK, result)
}
