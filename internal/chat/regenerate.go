package chat

import (
	"context"

	"go.uber.org/zap"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/logic"
	"beacon-chat/internal/metrics"
	"beacon-chat/internal/models"
)

// Regenerate re-runs the producer for an existing assistant message, replacing
// its content in place. On failure the previous answer is restored.
func (c *Controller) Regenerate(ctx context.Context, msgID string) (*Exchange, error) {
	convID, msg, err := c.reserveRegenerate(msgID)
	if err != nil {
		return nil, err
	}
	return c.startRegenerate(convID, msg), nil
}

// reserveRegenerate claims the regenerating slot for msgID. Messages whose
// answer is still streaming cannot be regenerated.
func (c *Controller) reserveRegenerate(msgID string) (string, models.Message, error) {
	convID, msg, ok := c.store.FindMessage(msgID)
	if !ok {
		return "", models.Message{}, ErrMessageNotFound
	}
	if msg.Role != models.RoleAssistant {
		return "", models.Message{}, ErrNotAssistantMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.regenerating[msgID] {
		return "", models.Message{}, ErrAlreadyRegenerating
	}
	// Without a regeneration running, only a send can be streaming into msg
	if msg.IsStreaming || msg.Status == models.StatusStreaming {
		return "", models.Message{}, ErrMessageStreaming
	}
	c.regenerating[msgID] = true
	return convID, msg, nil
}

func (c *Controller) releaseRegenerate(msgID string) {
	c.mu.Lock()
	delete(c.regenerating, msgID)
	c.mu.Unlock()
}

func (c *Controller) startRegenerate(convID string, msg models.Message) *Exchange {
	msgID := msg.ID
	c.store.Publish(Change{Kind: ChangeRegenerating, ConversationID: convID, MessageID: msgID, Active: true})
	c.logger.Info("Regenerate started", zap.String("conversation_id", convID), zap.String("message_id", msgID))

	ex := newExchange(convID, "", msgID)
	c.run("regenerate:"+msgID, func(ctx context.Context) {
		var err error
		defer func() {
			c.releaseRegenerate(msgID)
			c.store.Publish(Change{Kind: ChangeRegenerating, ConversationID: convID, MessageID: msgID, Active: false})
			ex.finish(err)
		}()
		err = c.regenerate(ctx, convID, msg)
	})
	return ex
}

// regenerate calls the producer for prior and applies the outcome
func (c *Controller) regenerate(ctx context.Context, convID string, prior models.Message) error {
	msgID := prior.ID
	start := c.now()
	sink := &messageSink{c: c, convID: convID, msgID: msgID}

	answer, err := c.backend.RegenerateMessage(ctx, assistant.RegenerateRequest{
		ConversationID: convID,
		MessageID:      msgID,
	}, sink)
	elapsed := c.now().Sub(start)

	if err != nil {
		// Only undo what this regeneration's own chunks wrote
		wrote := sink.last()
		applied := c.store.UpdateMessage(convID, msgID, func(m *models.Message) {
			if wrote != "" && m.Content == wrote {
				m.Content = prior.Content
				m.StreamedContent = prior.StreamedContent
			}
			m.IsStreaming = false
		})
		if !applied {
			c.logger.Info("Regenerate result dropped: message gone", zap.String("message_id", msgID))
			c.metrics.ObserveExchange("regenerate", metrics.OutcomeStale, elapsed)
			return err
		}
		c.logger.Warn("Regenerate failed", zap.String("message_id", msgID), zap.Error(err))
		c.metrics.ObserveExchange("regenerate", metrics.OutcomeError, elapsed)
		c.notify(models.Notification{
			Level:          models.NotificationError,
			Title:          "Failed to regenerate the response",
			Message:        err.Error(),
			ConversationID: convID,
			MessageID:      msgID,
		})
		return err
	}

	sources := answer.Sources
	if len(sources) == 0 {
		sources = sink.collected()
	}

	applied := c.store.UpdateMessage(convID, msgID, func(m *models.Message) {
		if answer.Answer != "" {
			m.Content = answer.Answer
			m.StreamedContent = answer.Answer
		}
		m.Status = models.StatusComplete
		m.IsStreaming = false
		m.IsRegeneratedFrom = msgID
		if len(sources) > 0 {
			m.Sources = sources
		}
		m.Tables, m.Charts = logic.Extract(m.Content)

		if m.Metadata == nil {
			m.Metadata = &models.ResponseMetadata{
				Confidence:    logic.Confidence(answer.Confidence, len(m.Sources)),
				CitationCount: len(m.Sources),
			}
		}
		m.Metadata.ResponseTime = elapsed.Milliseconds()
	})
	if !applied {
		c.logger.Info("Regenerate result dropped: message gone", zap.String("message_id", msgID))
		c.metrics.ObserveExchange("regenerate", metrics.OutcomeStale, elapsed)
		return nil
	}

	c.logger.Info("Regenerate completed", zap.String("message_id", msgID), zap.Duration("duration", elapsed))
	c.metrics.ObserveExchange("regenerate", metrics.OutcomeComplete, elapsed)
	return nil
}
