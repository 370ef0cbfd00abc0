// Package chat implements the conversation store and the message lifecycle controller.
package chat

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/logger"
	"beacon-chat/internal/logic"
	"beacon-chat/internal/metrics"
	"beacon-chat/internal/models"
)

const (
	defaultUploadConcurrency = 3
	maxNotifications         = 50
)

// Producer turns a user prompt into assistant content, optionally incrementally
type Producer interface {
	SendMessage(ctx context.Context, ask assistant.AskRequest, sink assistant.StreamSink) (*assistant.AskResponse, error)
	RegenerateMessage(ctx context.Context, regen assistant.RegenerateRequest, sink assistant.StreamSink) (*assistant.AskResponse, error)
}

// Backend is every external collaborator the controller talks to
type Backend interface {
	Producer
	EditMessage(ctx context.Context, conversationID, messageID, content string) error
	UploadFile(ctx context.Context, name string, r io.Reader, size int64, onProgress func(percent int)) (*assistant.UploadResult, error)
	SubmitFeedback(ctx context.Context, fb models.Feedback) error
}

// FeedbackRecorder keeps a local copy of submitted feedback
type FeedbackRecorder interface {
	SaveFeedback(fb models.Feedback) error
	GetFeedback(messageID string) ([]models.Feedback, error)
}

// editSnapshot is the pre-edit state restored by UndoEdit
type editSnapshot struct {
	conversationID string
	message        models.Message
}

// Controller runs the message lifecycle on top of a Store
type Controller struct {
	store    *Store
	backend  Backend
	recorder FeedbackRecorder
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	uploadConcurrency int

	// producers run on ctx so a finished HTTP request does not cancel them
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	streaming     bool
	streamToken   uint64
	regenerating  map[string]bool
	undo          map[string]editSnapshot
	pending       []models.FileAttachment
	draft         string
	editingID     string
	notifications []models.Notification
}

// Option configures a Controller
type Option func(*Controller)

// WithMetrics records prometheus metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger sets the controller logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithFeedbackRecorder keeps a local copy of every like and dislike
func WithFeedbackRecorder(r FeedbackRecorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithUploadConcurrency bounds how many files of a batch upload at once
func WithUploadConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.uploadConcurrency = n
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a controller over store talking to backend
func NewController(store *Store, backend Backend, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		store:             store,
		backend:           backend,
		logger:            zap.NewNop(),
		now:               time.Now,
		uploadConcurrency: defaultUploadConcurrency,
		ctx:               ctx,
		cancel:            cancel,
		regenerating:      make(map[string]bool),
		undo:              make(map[string]editSnapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("chat")

	c.metrics.SetConversations(store.Len())
	store.Subscribe(func(ch Change) {
		switch ch.Kind {
		case ChangeConversationCreated:
			c.metrics.AddConversations(1)
		case ChangeConversationDeleted:
			c.metrics.AddConversations(-1)
		}
	})
	return c
}

// Store returns the underlying store
func (c *Controller) Store() *Store {
	return c.store
}

// Shutdown cancels in-flight producer calls and waits for them to finish or ctx to expire
func (c *Controller) Shutdown(ctx context.Context) error {
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Exchange tracks one producer run started by Send or Regenerate
type Exchange struct {
	ConversationID     string `json:"conversation_id"`
	UserMessageID      string `json:"user_message_id,omitempty"`
	AssistantMessageID string `json:"assistant_message_id"`

	done chan struct{}
	err  error
}

func newExchange(convID, userID, assistantID string) *Exchange {
	return &Exchange{
		ConversationID:     convID,
		UserMessageID:      userID,
		AssistantMessageID: assistantID,
		done:               make(chan struct{}),
	}
}

// Done is closed once the producer finished and its result was applied
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the exchange finished and returns the producer error, if any
func (e *Exchange) Wait() error {
	<-e.done
	return e.err
}

func (e *Exchange) finish(err error) {
	e.err = err
	close(e.done)
}

// run starts fn on a tracked, panic-safe goroutine
func (c *Controller) run(name string, fn func(ctx context.Context)) {
	c.wg.Add(1)
	logger.Go(c.logger, name, func() {
		defer c.wg.Done()
		fn(c.ctx)
	})
}

// Conversation collection operations

// CreateConversation inserts an empty conversation and makes it current
func (c *Controller) CreateConversation() models.Conversation {
	conv := c.store.Create()
	c.logger.Info("CreateConversation completed", zap.String("conversation_id", conv.ID))
	return conv
}

// SelectConversation makes id current
func (c *Controller) SelectConversation(id string) error {
	return c.store.Select(id)
}

// RenameConversation replaces the title of id
func (c *Controller) RenameConversation(id, title string) error {
	return c.store.Rename(id, title)
}

// PinConversation sets or clears the pin of id
func (c *Controller) PinConversation(id string, pinned bool) error {
	return c.store.SetPinned(id, pinned)
}

// DeleteConversation removes id. In-flight work for its messages completes as a no-op.
func (c *Controller) DeleteConversation(id string) error {
	if err := c.store.Delete(id); err != nil {
		return err
	}

	c.mu.Lock()
	for msgID, snap := range c.undo {
		if snap.conversationID == id {
			delete(c.undo, msgID)
		}
	}
	c.mu.Unlock()

	c.logger.Info("DeleteConversation completed", zap.String("conversation_id", id))
	return nil
}

// Copy returns the clipboard text of a message
func (c *Controller) Copy(msgID string) (string, error) {
	_, msg, ok := c.store.FindMessage(msgID)
	if !ok {
		return "", ErrMessageNotFound
	}
	return logic.FormatForClipboard(msg), nil
}

// IsStreaming reports the page-level streaming indicator that guards the composer
func (c *Controller) IsStreaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

// Stop turns the streaming indicator off. The producer keeps running and its
// remaining chunks are still applied.
func (c *Controller) Stop() {
	c.mu.Lock()
	was := c.streaming
	c.streaming = false
	c.mu.Unlock()

	if was {
		c.logger.Info("Stop requested")
		c.store.Publish(Change{Kind: ChangeStreaming, Active: false})
	}
}

// IsRegenerating reports whether msgID has a regeneration in flight
func (c *Controller) IsRegenerating(msgID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regenerating[msgID]
}

// beginStreaming sets the indicator and returns the token that may clear it
func (c *Controller) beginStreaming() uint64 {
	c.mu.Lock()
	c.streaming = true
	c.streamToken++
	token := c.streamToken
	c.mu.Unlock()

	c.store.Publish(Change{Kind: ChangeStreaming, Active: true})
	return token
}

// endStreaming clears the indicator unless a newer exchange owns it
func (c *Controller) endStreaming(token uint64) {
	c.mu.Lock()
	owned := c.streamToken == token && c.streaming
	if owned {
		c.streaming = false
	}
	c.mu.Unlock()

	if owned {
		c.store.Publish(Change{Kind: ChangeStreaming, Active: false})
	}
}

func (c *Controller) newID() string {
	return uuid.NewString()
}
