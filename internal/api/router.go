package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"beacon-chat/internal/chat"
	"beacon-chat/internal/metrics"
	"beacon-chat/internal/watcher"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher interface for SSE support
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker for WebSocket upgrades
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Dependencies are the collaborators the HTTP layer serves
type Dependencies struct {
	Controller *chat.Controller
	// Health may be nil, the status endpoint then reports unknown
	Health *watcher.HealthWatcher
	// Admin is nil when no real backend is configured
	Admin     Admin
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	StaticDir string
	Simulator bool
}

// Router holds the HTTP multiplexer and dependencies
type Router struct {
	mux                 *http.ServeMux
	conversationHandler *ConversationHandler
	messageHandler      *MessageHandler
	uploadHandler       *UploadHandler
	eventsHandler       *EventsHandler
	wsHandler           *WebSocketHandler
	statusHandler       *StatusHandler
	adminHandler        *AdminHandler
	broadcaster         *EventBroadcaster
	metrics             *metrics.Metrics
	logger              *zap.Logger
	staticDir           string
}

// NewRouter creates a new router with all routes configured. Store changes
// and health results are bridged to the event broadcaster.
func NewRouter(deps Dependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	broadcaster := NewEventBroadcaster(logger)
	store := deps.Controller.Store()
	store.Subscribe(broadcaster.ObserveChange)
	if deps.Health != nil {
		deps.Health.Subscribe(broadcaster.ObserveHealth)
	}

	r := &Router{
		mux:                 http.NewServeMux(),
		conversationHandler: NewConversationHandler(deps.Controller, logger),
		messageHandler:      NewMessageHandler(deps.Controller, logger),
		uploadHandler:       NewUploadHandler(deps.Controller, logger),
		eventsHandler:       NewEventsHandler(broadcaster, store, logger),
		wsHandler:           NewWebSocketHandler(broadcaster, logger),
		statusHandler: &StatusHandler{
			controller:  deps.Controller,
			health:      deps.Health,
			broadcaster: broadcaster,
			simulator:   deps.Simulator,
		},
		broadcaster: broadcaster,
		metrics:     deps.Metrics,
		logger:      logger,
		staticDir:   deps.StaticDir,
	}
	if deps.Admin != nil {
		r.adminHandler = &AdminHandler{admin: deps.Admin, logger: logger}
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes
func (r *Router) setupRoutes() {
	r.mux.HandleFunc("GET /health", HealthHandler)
	r.mux.HandleFunc("GET /api/status", r.statusHandler.Status)

	// Conversation routes
	r.mux.HandleFunc("GET /api/conversations", r.conversationHandler.List)
	r.mux.HandleFunc("POST /api/conversations", r.conversationHandler.Create)
	r.mux.HandleFunc("GET /api/conversations/{id}", r.conversationHandler.Get)
	r.mux.HandleFunc("PATCH /api/conversations/{id}", r.conversationHandler.Update)
	r.mux.HandleFunc("DELETE /api/conversations/{id}", r.conversationHandler.Delete)
	r.mux.HandleFunc("PUT /api/conversations/{id}/current", r.conversationHandler.Select)

	// Message routes
	r.mux.HandleFunc("POST /api/messages", r.messageHandler.Send)
	r.mux.HandleFunc("PUT /api/messages/{mid}", r.messageHandler.SaveEdit)
	r.mux.HandleFunc("POST /api/messages/{mid}/edit", r.messageHandler.BeginEdit)
	r.mux.HandleFunc("DELETE /api/messages/{mid}/edit", r.messageHandler.CancelEdit)
	r.mux.HandleFunc("POST /api/messages/{mid}/undo", r.messageHandler.Undo)
	r.mux.HandleFunc("POST /api/messages/{mid}/regenerate", r.messageHandler.Regenerate)
	r.mux.HandleFunc("POST /api/messages/{mid}/like", r.messageHandler.Like)
	r.mux.HandleFunc("POST /api/messages/{mid}/dislike", r.messageHandler.Dislike)
	r.mux.HandleFunc("GET /api/messages/{mid}/feedback", r.messageHandler.FeedbackHistory)
	r.mux.HandleFunc("GET /api/messages/{mid}/copy", r.messageHandler.Copy)
	r.mux.HandleFunc("POST /api/stop", r.messageHandler.Stop)
	r.mux.HandleFunc("POST /api/actions", r.messageHandler.Action)
	r.mux.HandleFunc("GET /api/notifications", r.messageHandler.Notifications)

	// Upload routes
	r.mux.HandleFunc("POST /api/uploads", r.uploadHandler.Upload)
	r.mux.HandleFunc("GET /api/uploads", r.uploadHandler.Pending)
	r.mux.HandleFunc("DELETE /api/uploads/{id}", r.uploadHandler.Remove)

	// Event streams
	r.mux.HandleFunc("GET /api/events", r.eventsHandler.HandleGlobal)
	r.mux.HandleFunc("GET /api/conversations/{id}/events", r.eventsHandler.HandleConversation)
	r.mux.HandleFunc("GET /api/ws", r.wsHandler.ServeWS)

	// Backend maintenance
	if r.adminHandler != nil {
		r.mux.HandleFunc("POST /api/admin/clear", r.adminHandler.ClearHistory)
		r.mux.HandleFunc("GET /api/admin/history", r.adminHandler.History)
		r.mux.HandleFunc("GET /api/admin/cache", r.adminHandler.CacheStats)
		r.mux.HandleFunc("POST /api/admin/cache/clear", r.adminHandler.ClearCache)
	} else {
		r.mux.HandleFunc("GET /api/admin/", adminUnavailable)
		r.mux.HandleFunc("POST /api/admin/", adminUnavailable)
	}

	if r.metrics != nil {
		r.mux.Handle("GET /metrics", r.metrics.Handler())
	}

	// Static file serving (for frontend)
	if r.staticDir != "" {
		r.mux.HandleFunc("GET /", r.serveStatic)
	}
}

func adminUnavailable(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusServiceUnavailable, "Backend administration is not available in simulator mode")
}

// serveStatic serves static files from the static directory
func (r *Router) serveStatic(w http.ResponseWriter, req *http.Request) {
	path := req.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	filePath := filepath.Join(r.staticDir, filepath.Clean("/"+path))

	// Unknown paths fall back to index.html for SPA routing
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		filePath = filepath.Join(r.staticDir, "index.html")
	}

	http.ServeFile(w, req, filePath)
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()

	// Add CORS headers for development
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Long-lived streams are logged by their handlers
	shouldLog := strings.HasPrefix(req.URL.Path, "/api/") &&
		!strings.HasSuffix(req.URL.Path, "/events") &&
		req.URL.Path != "/api/ws"

	if shouldLog {
		r.logger.Debug("Request started",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path))
	}

	wrapped := newResponseWriter(w)
	r.mux.ServeHTTP(wrapped, req)

	if shouldLog {
		duration := time.Since(start)
		r.metrics.ObserveHTTP(req.Method, wrapped.statusCode, duration)
		r.logger.Info("Request completed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", duration))
	}
}

// Broadcaster returns the event broadcaster
func (r *Router) Broadcaster() *EventBroadcaster {
	return r.broadcaster
}
