package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"beacon-chat/internal/logic"
	"beacon-chat/internal/models"
)

// Draft returns the composer text
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the composer text
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Dispatch performs a composer action. Only ActionSend returns an exchange.
func (c *Controller) Dispatch(ctx context.Context, action logic.Action) (*Exchange, error) {
	if err := action.Validate(); err != nil {
		return nil, err
	}

	switch action.Kind {
	case logic.ActionPrefill:
		c.SetDraft(action.Payload)
		return nil, nil
	case logic.ActionTemplatedReply:
		return nil, c.templatedReply(action.Payload, action.Reply)
	default:
		return c.Send(ctx, action.Payload)
	}
}

// templatedReply records a question and its canned answer without the producer
func (c *Controller) templatedReply(question, reply string) error {
	convID := c.store.CurrentID()
	if convID == "" {
		return ErrNoCurrentConversation
	}
	if strings.TrimSpace(question) == "" {
		return ErrEmptyContent
	}

	now := c.now()
	tables, charts := logic.Extract(reply)
	user := models.Message{
		ID:        c.newID(),
		Role:      models.RoleUser,
		Content:   question,
		Status:    models.StatusComplete,
		Timestamp: now,
	}
	answer := models.Message{
		ID:              c.newID(),
		Role:            models.RoleAssistant,
		Content:         reply,
		StreamedContent: reply,
		Status:          models.StatusComplete,
		Timestamp:       now,
		Tables:          tables,
		Charts:          charts,
	}
	if !c.store.AppendMessages(convID, user, answer) {
		return ErrConversationNotFound
	}

	c.SetDraft("")
	c.logger.Info("TemplatedReply completed", zap.String("conversation_id", convID))
	return nil
}
