package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/logic"
	"beacon-chat/internal/metrics"
	"beacon-chat/internal/models"
)

// messageSink applies producer output to one assistant message, addressed by id
type messageSink struct {
	c      *Controller
	convID string
	msgID  string

	mu      sync.Mutex
	sources []models.Source
	latest  string
}

func (s *messageSink) OnChunk(cumulative string) {
	applied := s.c.store.UpdateMessage(s.convID, s.msgID, func(m *models.Message) {
		m.Content = cumulative
		m.StreamedContent = cumulative
		m.IsStreaming = true
	})
	if applied {
		s.c.metrics.ChunkApplied()
		s.mu.Lock()
		s.latest = cumulative
		s.mu.Unlock()
	}
}

// last returns the most recent chunk this sink applied
func (s *messageSink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *messageSink) OnSources(sources []models.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sources == nil {
		s.sources = append([]models.Source(nil), sources...)
	}
}

func (s *messageSink) collected() []models.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources
}

// Send appends a user message and an assistant placeholder to the current
// conversation and starts the producer. Pending attachments go with the message.
// The returned exchange completes once the answer was applied.
func (c *Controller) Send(ctx context.Context, content string) (*Exchange, error) {
	convID := c.store.CurrentID()
	if convID == "" {
		return nil, ErrNoCurrentConversation
	}

	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return nil, ErrStreamInProgress
	}
	attachments := c.pending
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		c.mu.Unlock()
		return nil, ErrEmptyContent
	}
	c.pending = nil
	c.draft = ""
	c.mu.Unlock()

	ex, err := c.sendTo(convID, content, attachments)
	if err != nil {
		// Give the attachments back so a retry can use them
		c.mu.Lock()
		c.pending = append(attachments, c.pending...)
		c.mu.Unlock()
		return nil, err
	}
	return ex, nil
}

// sendTo runs the send flow against a specific conversation
func (c *Controller) sendTo(convID, content string, attachments []models.FileAttachment) (*Exchange, error) {
	now := c.now()
	user := models.Message{
		ID:          c.newID(),
		Role:        models.RoleUser,
		Content:     content,
		Status:      models.StatusComplete,
		Timestamp:   now,
		Attachments: attachments,
	}
	placeholder := models.Message{
		ID:          c.newID(),
		Role:        models.RoleAssistant,
		Status:      models.StatusStreaming,
		Timestamp:   now,
		IsStreaming: true,
	}

	// User message and placeholder land together before the producer is invoked
	if !c.store.AppendMessages(convID, user, placeholder) {
		return nil, ErrConversationNotFound
	}

	c.logger.Info("Send started",
		zap.String("conversation_id", convID),
		zap.String("message_id", placeholder.ID),
		zap.String("content", logic.Preview(content, 80)),
		zap.Int("attachments", len(attachments)))

	token := c.beginStreaming()
	ex := newExchange(convID, user.ID, placeholder.ID)

	ask := assistant.AskRequest{
		Question:       content,
		ConversationID: convID,
	}
	for _, a := range attachments {
		ask.AttachmentIDs = append(ask.AttachmentIDs, a.ID)
	}

	c.run("send:"+placeholder.ID, func(ctx context.Context) {
		var err error
		defer func() {
			c.endStreaming(token)
			ex.finish(err)
		}()
		err = c.produce(ctx, convID, placeholder.ID, ask)
	})

	return ex, nil
}

// produce calls the producer and applies its outcome to the placeholder
func (c *Controller) produce(ctx context.Context, convID, msgID string, ask assistant.AskRequest) error {
	start := c.now()
	sink := &messageSink{c: c, convID: convID, msgID: msgID}

	answer, err := c.backend.SendMessage(ctx, ask, sink)
	elapsed := c.now().Sub(start)

	if err != nil {
		applied := c.store.UpdateMessage(convID, msgID, func(m *models.Message) {
			m.Status = models.StatusError
			m.IsStreaming = false
		})
		if !applied {
			c.logger.Info("Send result dropped: conversation gone", zap.String("message_id", msgID))
			c.metrics.ObserveExchange("send", metrics.OutcomeStale, elapsed)
			return err
		}
		c.logger.Warn("Send failed", zap.String("conversation_id", convID), zap.String("message_id", msgID), zap.Error(err))
		c.metrics.ObserveExchange("send", metrics.OutcomeError, elapsed)
		c.notify(models.Notification{
			Level:          models.NotificationError,
			Title:          "Failed to get a response",
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
		c.completeAnswer(m, answer, sources, elapsed)
	})
	if !applied {
		c.logger.Info("Send result dropped: conversation gone", zap.String("message_id", msgID))
		c.metrics.ObserveExchange("send", metrics.OutcomeStale, elapsed)
		return nil
	}

	c.logger.Info("Send completed",
		zap.String("conversation_id", convID),
		zap.String("message_id", msgID),
		zap.Int("sources", len(sources)),
		zap.Duration("duration", elapsed))
	c.metrics.ObserveExchange("send", metrics.OutcomeComplete, elapsed)
	return nil
}

// completeAnswer writes the final state of a successful answer onto m
func (c *Controller) completeAnswer(m *models.Message, answer *assistant.AskResponse, sources []models.Source, elapsed time.Duration) {
	if answer.Answer != "" {
		m.Content = answer.Answer
		m.StreamedContent = answer.Answer
	}
	m.Status = models.StatusComplete
	m.IsStreaming = false
	if len(sources) > 0 {
		m.Sources = sources
	}
	tables, charts := logic.Extract(m.Content)
	if len(tables) > 0 {
		m.Tables = tables
	}
	if len(charts) > 0 {
		m.Charts = charts
	}
	m.Metadata = &models.ResponseMetadata{
		ResponseTime:  elapsed.Milliseconds(),
		Confidence:    logic.Confidence(answer.Confidence, len(sources)),
		CitationCount: len(sources),
	}
}
