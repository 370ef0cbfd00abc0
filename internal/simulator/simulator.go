// Package simulator answers questions locally, streaming canned replies word by word.
package simulator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/models"
)

const defaultChunkInterval = 50 * time.Millisecond

// Simulator implements the backend collaborators without any network access
type Simulator struct {
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	feedback  []models.Feedback
	edits     map[string]string
	lastAsked map[string]string
}

// New creates a simulator that emits one word per interval
func New(interval time.Duration, logger *zap.Logger) *Simulator {
	if interval <= 0 {
		interval = defaultChunkInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		interval:  interval,
		logger:    logger.Named("simulator"),
		edits:     make(map[string]string),
		lastAsked: make(map[string]string),
	}
}

// SendMessage streams a canned answer to ask.Question
func (s *Simulator) SendMessage(ctx context.Context, ask assistant.AskRequest, sink assistant.StreamSink) (*assistant.AskResponse, error) {
	s.mu.Lock()
	s.lastAsked[ask.ConversationID] = ask.Question
	s.mu.Unlock()

	return s.stream(ctx, Answer(ask.Question, len(ask.AttachmentIDs)), sink)
}

// RegenerateMessage streams a fresh answer to the last question of the conversation
func (s *Simulator) RegenerateMessage(ctx context.Context, regen assistant.RegenerateRequest, sink assistant.StreamSink) (*assistant.AskResponse, error) {
	s.mu.Lock()
	question := s.lastAsked[regen.ConversationID]
	s.mu.Unlock()

	return s.stream(ctx, "Let me try that again. "+Answer(question, 0), sink)
}

// EditMessage records the edit locally
func (s *Simulator) EditMessage(ctx context.Context, conversationID, messageID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits[messageID] = content
	s.lastAsked[conversationID] = content
	return nil
}

// UploadFile drains r, reporting progress, and returns a local attachment
func (s *Simulator) UploadFile(ctx context.Context, name string, r io.Reader, size int64, onProgress func(percent int)) (*assistant.UploadResult, error) {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(100)
	}
	return &assistant.UploadResult{
		Attachment: models.FileAttachment{
			ID:   uuid.NewString(),
			Name: name,
			Type: contentType(name),
			Size: n,
		},
		AnalysisStarted: true,
	}, nil
}

// SubmitFeedback keeps the feedback in memory
func (s *Simulator) SubmitFeedback(ctx context.Context, fb models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, fb)
	return nil
}

// Feedback returns everything submitted so far
func (s *Simulator) Feedback() []models.Feedback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Feedback(nil), s.feedback...)
}

// Health always reports healthy
func (s *Simulator) Health(ctx context.Context) (*assistant.HealthStatus, error) {
	return &assistant.HealthStatus{Status: "healthy", LLM: "simulator"}, nil
}

// stream emits text one word per tick as cumulative chunks
func (s *Simulator) stream(ctx context.Context, text string, sink assistant.StreamSink) (*assistant.AskResponse, error) {
	words := strings.SplitAfter(text, " ")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var b strings.Builder
	for _, w := range words {
		select {
		case <-ctx.Done():
			s.logger.Debug("Stream cancelled", zap.Int("emitted", b.Len()))
			return nil, ctx.Err()
		case <-ticker.C:
		}
		b.WriteString(w)
		sink.OnChunk(b.String())
	}

	sources := []models.Source{{
		Filename:   "Power BI Guide.pdf",
		Path:       "simulated/Power BI Guide.pdf",
		Type:       "pdf",
		ChunksUsed: 1,
	}}
	sink.OnSources(sources)

	return &assistant.AskResponse{
		Answer:     text,
		Sources:    sources,
		HasTables:  strings.Contains(text, "|---"),
		NumSources: len(sources),
		DocCount:   len(sources),
	}, nil
}

// Answer builds the canned reply for a question
func Answer(question string, attachments int) string {
	q := strings.TrimSpace(question)
	if q == "" {
		return "I don't have a question to answer yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is what I found about %q.", q)
	if attachments > 0 {
		fmt.Fprintf(&b, " I also looked at %d attached file(s).", attachments)
	}

	lower := strings.ToLower(q)
	if strings.Contains(lower, "table") || strings.Contains(lower, "sales") {
		b.WriteString("\n\n| Region | Sales |\n|---|---|\n| North | 120 |\n| South | 95 |\n")
	}
	if strings.Contains(lower, "chart") {
		b.WriteString("\n\n```chart\n{\"type\": \"bar\", \"title\": \"Sales\", \"labels\": [\"North\", \"South\"], \"series\": [{\"name\": \"Sales\", \"data\": [120, 95]}]}\n```\n")
	}
	return b.String()
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(strings.ToLower(name), ".csv"):
		return "text/csv"
	case strings.HasSuffix(strings.ToLower(name), ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case strings.HasSuffix(strings.ToLower(name), ".pbix"):
		return "application/vnd.ms-powerbi"
	}
	return "application/octet-stream"
}
