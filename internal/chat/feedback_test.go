package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-chat/internal/models"
)

type recorderStub struct {
	mu   sync.Mutex
	seen []models.Feedback
}

func (r *recorderStub) SaveFeedback(fb models.Feedback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, fb)
	return nil
}

func (r *recorderStub) GetFeedback(messageID string) ([]models.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Feedback
	for _, fb := range r.seen {
		if fb.MessageID == messageID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (r *recorderStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestLikeDislike_MutuallyExclusive(t *testing.T) {
	backend := newFakeBackend()
	ctrl := newTestController(t, backend)
	seedConversation(t, ctrl, userMessage("A", "q"), assistantMessage("B", "a"))

	require.NoError(t, ctrl.Dislike("B", models.ReasonIncorrect, "wrong totals"))
	msg, _ := findMessage(ctrl, "B")
	assert.True(t, msg.IsDisliked)
	assert.False(t, msg.IsLiked)
	require.NotNil(t, msg.Feedback)
	assert.Equal(t, "wrong totals", msg.Feedback.Comment)

	require.NoError(t, ctrl.Like("B"))
	msg, _ = findMessage(ctrl, "B")
	assert.True(t, msg.IsLiked)
	assert.False(t, msg.IsDisliked)

	assert.Eventually(t, func() bool { return len(backend.feedbackCalls()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestFeedback_SubmissionFailureKeepsFlags(t *testing.T) {
	backend := newFakeBackend()
	backend.feedbackFn = func(models.Feedback) error { return errBackend }
	recorder := &recorderStub{}
	ctrl := newTestController(t, backend, WithFeedbackRecorder(recorder))
	seedConversation(t, ctrl, userMessage("A", "q"), assistantMessage("B", "a"))

	require.NoError(t, ctrl.Like("B"))
	require.NoError(t, ctrl.Shutdown(context.Background()))

	msg, _ := findMessage(ctrl, "B")
	assert.True(t, msg.IsLiked)
	assert.Len(t, backend.feedbackCalls(), 1)
	assert.Equal(t, 1, recorder.count())
	assert.Empty(t, ctrl.Notifications())
}

func TestFeedbackHistory(t *testing.T) {
	backend := newFakeBackend()
	recorder := &recorderStub{}
	ctrl := newTestController(t, backend, WithFeedbackRecorder(recorder))
	seedConversation(t, ctrl, userMessage("A", "q"), assistantMessage("B", "a"))

	require.NoError(t, ctrl.Like("B"))
	require.NoError(t, ctrl.Dislike("B", models.ReasonOther, "changed my mind"))
	assert.Eventually(t, func() bool { return recorder.count() == 2 }, time.Second, 5*time.Millisecond)

	history, err := ctrl.FeedbackHistory("B")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.ElementsMatch(t,
		[]models.FeedbackType{models.FeedbackLike, models.FeedbackDislike},
		[]models.FeedbackType{history[0].Type, history[1].Type})

	_, err = ctrl.FeedbackHistory("missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestFeedbackHistory_WithoutRecorder(t *testing.T) {
	ctrl := newTestController(t, newFakeBackend())
	seedConversation(t, ctrl, userMessage("A", "q"), assistantMessage("B", "a"))

	history, err := ctrl.FeedbackHistory("B")
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, ctrl.Dislike("B", models.ReasonIncorrect, ""))
	history, err = ctrl.FeedbackHistory("B")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ReasonIncorrect, history[0].Reason)
}

func TestFeedback_Rejections(t *testing.T) {
	ctrl := newTestController(t, newFakeBackend())
	seedConversation(t, ctrl, userMessage("A", "q"), assistantMessage("B", "a"))

	assert.ErrorIs(t, ctrl.Like("A"), ErrNotAssistantMessage)
	assert.ErrorIs(t, ctrl.Like("missing"), ErrMessageNotFound)
	assert.ErrorIs(t, ctrl.Dislike("B", "rude", ""), ErrInvalidReason)
}
