package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"beacon-chat/internal/metrics"
	"beacon-chat/internal/models"
)

// Like marks an assistant message as liked and clears a dislike.
// Submission happens in the background and never rolls the flags back.
func (c *Controller) Like(msgID string) error {
	return c.feedback(msgID, models.Feedback{Type: models.FeedbackLike})
}

// Dislike marks an assistant message as disliked with a reason and optional comment
func (c *Controller) Dislike(msgID string, reason models.DislikeReason, comment string) error {
	if !reason.Valid() {
		return ErrInvalidReason
	}
	return c.feedback(msgID, models.Feedback{Type: models.FeedbackDislike, Reason: reason, Comment: comment})
}

func (c *Controller) feedback(msgID string, fb models.Feedback) error {
	convID, msg, ok := c.store.FindMessage(msgID)
	if !ok {
		return ErrMessageNotFound
	}
	if msg.Role != models.RoleAssistant {
		return ErrNotAssistantMessage
	}

	fb.MessageID = msgID
	fb.Timestamp = c.now()

	if !c.store.UpdateMessage(convID, msgID, func(m *models.Message) {
		liked := fb.Type == models.FeedbackLike
		m.IsLiked = liked
		m.IsDisliked = !liked
		stored := fb
		m.Feedback = &stored
	}) {
		return ErrMessageNotFound
	}

	c.run("feedback:"+msgID, func(ctx context.Context) {
		c.submitFeedback(ctx, fb)
	})
	return nil
}

// FeedbackHistory lists the feedback given on a message, oldest first. Without a
// recorder only the latest feedback held on the message is known.
func (c *Controller) FeedbackHistory(msgID string) ([]models.Feedback, error) {
	_, msg, ok := c.store.FindMessage(msgID)
	if !ok {
		return nil, ErrMessageNotFound
	}
	if c.recorder != nil {
		history, err := c.recorder.GetFeedback(msgID)
		if err != nil {
			return nil, fmt.Errorf("failed to load feedback: %w", err)
		}
		return history, nil
	}
	if msg.Feedback == nil {
		return nil, nil
	}
	return []models.Feedback{*msg.Feedback}, nil
}

// submitFeedback is fire-and-forget: failures are logged and counted only
func (c *Controller) submitFeedback(ctx context.Context, fb models.Feedback) {
	if c.recorder != nil {
		if err := c.recorder.SaveFeedback(fb); err != nil {
			c.logger.Warn("Feedback record failed", zap.String("message_id", fb.MessageID), zap.Error(err))
		}
	}

	if err := c.backend.SubmitFeedback(ctx, fb); err != nil {
		c.logger.Warn("SubmitFeedback failed",
			zap.String("message_id", fb.MessageID),
			zap.String("type", string(fb.Type)),
			zap.Error(err))
		c.metrics.FeedbackSubmitted(string(fb.Type), metrics.OutcomeError)
		return
	}

	c.logger.Debug("SubmitFeedback completed", zap.String("message_id", fb.MessageID), zap.String("type", string(fb.Type)))
	c.metrics.FeedbackSubmitted(string(fb.Type), metrics.OutcomeComplete)
}
