package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"beacon-chat/internal/logic"
	"beacon-chat/internal/metrics"
	"beacon-chat/internal/models"
)

// BeginEdit pre-fills the composer with the content of a user message
func (c *Controller) BeginEdit(msgID string) (string, error) {
	_, msg, ok := c.store.FindMessage(msgID)
	if !ok {
		return "", ErrMessageNotFound
	}
	if msg.Role != models.RoleUser {
		return "", ErrNotUserMessage
	}

	c.mu.Lock()
	c.editingID = msgID
	c.draft = msg.Content
	c.mu.Unlock()
	return msg.Content, nil
}

// CancelEdit leaves edit mode and clears the draft
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.editingID = ""
	c.draft = ""
}

// EditingID returns the message being edited, or ""
func (c *Controller) EditingID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editingID
}

// SaveEdit persists new content for a user message, then regenerates the next
// assistant message or, when there is none, sends the content as a fresh turn.
// Nothing changes locally when the backend rejects the edit.
func (c *Controller) SaveEdit(ctx context.Context, msgID, content string) (*Exchange, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	convID, original, ok := c.store.FindMessage(msgID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	if original.Role != models.RoleUser {
		return nil, ErrNotUserMessage
	}

	// Snapshot the regenerate target before anything changes
	conv, ok := c.store.Get(convID)
	if !ok {
		return nil, ErrConversationNotFound
	}
	targetID, hasTarget := logic.NextAssistantMessageID(conv.Messages, msgID)

	// Claim the target first so a busy answer rejects the edit before anything changes
	var target models.Message
	if hasTarget {
		var err error
		if _, target, err = c.reserveRegenerate(targetID); err != nil {
			return nil, err
		}
	}
	committed := false
	defer func() {
		if hasTarget && !committed {
			c.releaseRegenerate(targetID)
		}
	}()

	c.logger.Info("SaveEdit started",
		zap.String("conversation_id", convID),
		zap.String("message_id", msgID),
		zap.String("regenerate_id", targetID))

	if err := c.backend.EditMessage(ctx, convID, msgID, content); err != nil {
		c.logger.Warn("SaveEdit failed: backend rejected edit", zap.String("message_id", msgID), zap.Error(err))
		c.metrics.EditFinished(metrics.OutcomeError)
		c.notify(models.Notification{
			Level:          models.NotificationError,
			Title:          "Failed to edit message",
			Message:        err.Error(),
			ConversationID: convID,
			MessageID:      msgID,
		})
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}

	applied := c.store.UpdateMessage(convID, msgID, func(m *models.Message) {
		m.EditHistory = append(m.EditHistory, m.Content)
		m.Content = content
		m.IsEdited = true
	})
	if !applied {
		c.metrics.EditFinished(metrics.OutcomeStale)
		return nil, ErrMessageNotFound
	}
	c.metrics.EditFinished(metrics.OutcomeComplete)

	c.mu.Lock()
	c.undo[msgID] = editSnapshot{conversationID: convID, message: original}
	if c.editingID == msgID {
		c.editingID = ""
		c.draft = ""
	}
	c.mu.Unlock()

	committed = true
	if hasTarget {
		return c.startRegenerate(convID, target), nil
	}
	return c.sendTo(convID, content, nil)
}

// UndoEdit restores a message to its state before the last saved edit.
// Regenerations triggered by that edit are left as they are.
func (c *Controller) UndoEdit(msgID string) error {
	c.mu.Lock()
	snap, ok := c.undo[msgID]
	if ok {
		delete(c.undo, msgID)
	}
	c.mu.Unlock()
	if !ok {
		return ErrNothingToUndo
	}

	restored := snap.message.Clone()
	if !c.store.UpdateMessage(snap.conversationID, msgID, func(m *models.Message) {
		*m = restored
	}) {
		return ErrMessageNotFound
	}

	c.logger.Info("UndoEdit completed", zap.String("message_id", msgID))
	return nil
}

// CanUndo reports whether msgID has an edit to undo
func (c *Controller) CanUndo(msgID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.undo[msgID]
	return ok
}
