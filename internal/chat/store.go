package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beacon-chat/internal/logic"
	"beacon-chat/internal/models"
)

// Persister receives committed conversation state. Errors are logged, never surfaced.
type Persister interface {
	SaveConversation(conv models.Conversation) error
	DeleteConversation(id string) error
}

// Store owns the conversation collection and the current conversation id.
// Every mutation looks its target up by id under the lock and is dropped when the target is gone.
type Store struct {
	mu            sync.Mutex
	conversations []*models.Conversation
	currentID     string
	observers     []Observer
	persister     Persister
	logger        *zap.Logger
	now           func() time.Time
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithPersister writes committed state through to p
func WithPersister(p Persister) StoreOption {
	return func(s *Store) {
		s.persister = p
	}
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		logger: logger.Named("store"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the collection with conversations ordered newest first.
// The first one becomes current. Interrupted answers are marked as errors.
func (s *Store) Load(conversations []models.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]*models.Conversation, 0, len(conversations))
	for _, conv := range conversations {
		c := conv.Clone()
		if c.Messages == nil {
			c.Messages = []models.Message{}
		}
		// An answer still streaming at shutdown can never complete
		for i := range c.Messages {
			if c.Messages[i].IsStreaming || c.Messages[i].Status == models.StatusStreaming {
				c.Messages[i].IsStreaming = false
				c.Messages[i].Status = models.StatusError
			}
		}
		s.conversations = append(s.conversations, &c)
	}
	s.currentID = ""
	if len(s.conversations) > 0 {
		s.currentID = s.conversations[0].ID
	}
	s.logger.Info("Load completed", zap.Int("conversations", len(s.conversations)), zap.String("current_id", s.currentID))
}

// Subscribe registers an observer for all future changes
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Publish delivers a change that did not come from a store mutation
func (s *Store) Publish(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(change)
}

// Create inserts a new empty conversation at the front and makes it current
func (s *Store) Create() models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		Title:     models.DefaultConversationTitle,
		Messages:  []models.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations = append([]*models.Conversation{conv}, s.conversations...)
	s.currentID = conv.ID

	s.persist(conv)
	summary := conv.Summary()
	s.emit(Change{Kind: ChangeConversationCreated, ConversationID: conv.ID, Conversation: &summary})
	s.emit(Change{Kind: ChangeCurrentChanged, ConversationID: conv.ID})
	return conv.Clone()
}

// Select makes an existing conversation current
func (s *Store) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.find(id) == nil {
		return ErrConversationNotFound
	}
	if s.currentID != id {
		s.currentID = id
		s.emit(Change{Kind: ChangeCurrentChanged, ConversationID: id})
	}
	return nil
}

// Rename replaces the title; any string is accepted
func (s *Store) Rename(id, title string) error {
	if !s.UpdateConversation(id, func(c *models.Conversation) {
		c.Title = title
		c.IsRenamed = true
	}) {
		return ErrConversationNotFound
	}
	return nil
}

// SetPinned sets isPinned without reordering the collection
func (s *Store) SetPinned(id string, pinned bool) error {
	if !s.UpdateConversation(id, func(c *models.Conversation) {
		c.IsPinned = pinned
	}) {
		return ErrConversationNotFound
	}
	return nil
}

// Delete removes a conversation. When it was current, the first remaining
// conversation becomes current, or none when the collection is empty.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrConversationNotFound
	}
	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if s.persister != nil {
		if err := s.persister.DeleteConversation(id); err != nil {
			s.logger.Warn("Persist delete failed", zap.String("conversation_id", id), zap.Error(err))
		}
	}
	s.emit(Change{Kind: ChangeConversationDeleted, ConversationID: id})

	if s.currentID == id {
		s.currentID = ""
		if len(s.conversations) > 0 {
			s.currentID = s.conversations[0].ID
		}
		s.emit(Change{Kind: ChangeCurrentChanged, ConversationID: s.currentID})
	}
	return nil
}

// List returns conversation summaries in collection order
func (s *Store) List() []models.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ConversationSummary, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c.Summary())
	}
	return out
}

// Len returns the number of conversations
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Get returns a copy of the conversation
func (s *Store) Get(id string) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(id)
	if c == nil {
		return models.Conversation{}, false
	}
	return c.Clone(), true
}

// CurrentID returns the current conversation id, or "" when none
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Current returns a copy of the current conversation
func (s *Store) Current() (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(s.currentID)
	if c == nil {
		return models.Conversation{}, false
	}
	return c.Clone(), true
}

// FindMessage locates a message by id across all conversations
func (s *Store) FindMessage(msgID string) (convID string, msg models.Message, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if i := logic.IndexOfMessage(c.Messages, msgID); i >= 0 {
			return c.ID, c.Messages[i].Clone(), true
		}
	}
	return "", models.Message{}, false
}

// AppendMessages appends msgs to a conversation in one step. Unless the conversation
// was renamed, its title is derived from the first user message it receives.
// Returns false when the conversation no longer exists.
func (s *Store) AppendMessages(convID string, msgs ...models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(convID)
	if c == nil {
		return false
	}

	if !c.IsRenamed && !logic.HasUserMessages(c.Messages) {
		for _, m := range msgs {
			if m.Role == models.RoleUser {
				c.Title = logic.DeriveTitle(m.Content)
				break
			}
		}
	}

	for _, m := range msgs {
		m.ConversationID = convID
		c.Messages = append(c.Messages, m)
	}
	c.UpdatedAt = s.now()

	s.persist(c)
	for i := len(c.Messages) - len(msgs); i < len(c.Messages); i++ {
		added := c.Messages[i].Clone()
		s.emit(Change{Kind: ChangeMessageAdded, ConversationID: convID, MessageID: added.ID, Message: &added})
	}
	summary := c.Summary()
	s.emit(Change{Kind: ChangeConversationUpdated, ConversationID: convID, Conversation: &summary})
	return true
}

// UpdateMessage applies fn to the message in place. Returns false, without
// calling fn, when the conversation or message no longer exists.
// Messages still streaming are not written to the persister.
func (s *Store) UpdateMessage(convID, msgID string, fn func(*models.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(convID)
	if c == nil {
		return false
	}
	i := logic.IndexOfMessage(c.Messages, msgID)
	if i < 0 {
		return false
	}

	fn(&c.Messages[i])
	c.UpdatedAt = s.now()

	if !c.Messages[i].IsStreaming {
		s.persist(c)
	}
	updated := c.Messages[i].Clone()
	s.emit(Change{Kind: ChangeMessageUpdated, ConversationID: convID, MessageID: msgID, Message: &updated})
	return true
}

// UpdateConversation applies fn to the conversation metadata.
// Returns false when the conversation no longer exists.
func (s *Store) UpdateConversation(convID string, fn func(*models.Conversation)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.find(convID)
	if c == nil {
		return false
	}

	fn(c)
	c.UpdatedAt = s.now()

	s.persist(c)
	summary := c.Summary()
	s.emit(Change{Kind: ChangeConversationUpdated, ConversationID: convID, Conversation: &summary})
	return true
}

func (s *Store) find(id string) *models.Conversation {
	if i := s.indexOf(id); i >= 0 {
		return s.conversations[i]
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, c := range s.conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with mu held
func (s *Store) persist(c *models.Conversation) {
	if s.persister == nil {
		return
	}
	if err := s.persister.SaveConversation(c.Clone()); err != nil {
		s.logger.Warn("Persist conversation failed", zap.String("conversation_id", c.ID), zap.Error(err))
	}
}

// emit must be called with mu held
func (s *Store) emit(change Change) {
	for _, o := range s.observers {
		o(change)
	}
}
