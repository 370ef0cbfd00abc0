package simulator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/models"
)

func TestSendMessage_StreamsCumulativeWords(t *testing.T) {
	sim := New(time.Millisecond, nil)
	var chunks []string
	var sources []models.Source
	sink := assistant.SinkFuncs{
		Chunk:   func(s string) { chunks = append(chunks, s) },
		Sources: func(s []models.Source) { sources = s },
	}

	answer, err := sim.SendMessage(context.Background(), assistant.AskRequest{Question: "hello", ConversationID: "c1"}, sink)
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	assert.Equal(t, answer.Answer, chunks[len(chunks)-1])
	for i := 1; i < len(chunks); i++ {
		assert.True(t, strings.HasPrefix(chunks[i], chunks[i-1]), "chunk %d is not cumulative", i)
	}
	assert.Len(t, sources, 1)
	assert.Equal(t, 1, answer.NumSources)
}

func TestSendMessage_Cancelled(t *testing.T) {
	sim := New(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.SendMessage(ctx, assistant.AskRequest{Question: "hello"}, assistant.SinkFuncs{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegenerate_UsesLastQuestion(t *testing.T) {
	sim := New(time.Millisecond, nil)
	ctx := context.Background()

	require.NoError(t, sim.EditMessage(ctx, "c1", "m1", "show sales table"))

	answer, err := sim.RegenerateMessage(ctx, assistant.RegenerateRequest{ConversationID: "c1", MessageID: "m2"}, assistant.SinkFuncs{})
	require.NoError(t, err)
	assert.Contains(t, answer.Answer, "show sales table")
	assert.True(t, answer.HasTables)
}

func TestAnswer(t *testing.T) {
	assert.Contains(t, Answer("plot a chart", 0), "```chart")
	assert.Contains(t, Answer("q", 2), "2 attached file(s)")
	assert.NotContains(t, Answer("hello", 0), "|---")
}

func TestUploadFile(t *testing.T) {
	sim := New(0, nil)
	var progress []int

	result, err := sim.UploadFile(context.Background(), "report.pdf", strings.NewReader("%PDF"), 4, func(p int) {
		progress = append(progress, p)
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Attachment.ID)
	assert.Equal(t, "application/pdf", result.Attachment.Type)
	assert.Equal(t, int64(4), result.Attachment.Size)
	assert.Equal(t, []int{100}, progress)
}

func TestSubmitFeedbackAndHealth(t *testing.T) {
	sim := New(0, nil)
	ctx := context.Background()

	require.NoError(t, sim.SubmitFeedback(ctx, models.Feedback{MessageID: "m1", Type: models.FeedbackLike}))
	assert.Len(t, sim.Feedback(), 1)

	status, err := sim.Health(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy())
}
