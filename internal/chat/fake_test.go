package chat

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"beacon-chat/internal/assistant"
	"beacon-chat/internal/models"
)

type sendFunc func(ctx context.Context, ask assistant.AskRequest, sink assistant.StreamSink) (*assistant.AskResponse, error)
type regenFunc func(ctx context.Context, regen assistant.RegenerateRequest, sink assistant.StreamSink) (*assistant.AskResponse, error)

// fakeBackend records calls and lets tests script every collaborator
type fakeBackend struct {
	mu sync.Mutex

	send       sendFunc
	regen      regenFunc
	editErr    error
	uploadErrs map[string]error
	feedbackFn func(fb models.Feedback) error

	asks      []assistant.AskRequest
	regens    []assistant.RegenerateRequest
	edits     []string
	uploads   []string
	feedbacks []models.Feedback
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{uploadErrs: make(map[string]error)}
}

func (f *fakeBackend) SendMessage(ctx context.Context, ask assistant.AskRequest, sink assistant.StreamSink) (*assistant.AskResponse, error) {
	f.mu.Lock()
	f.asks = append(f.asks, ask)
	fn := f.send
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, ask, sink)
	}
	answer := "answer: " + ask.Question
	sink.OnChunk(answer)
	return &assistant.AskResponse{Answer: answer}, nil
}

func (f *fakeBackend) RegenerateMessage(ctx context.Context, regen assistant.RegenerateRequest, sink assistant.StreamSink) (*assistant.AskResponse, error) {
	f.mu.Lock()
	f.regens = append(f.regens, regen)
	fn := f.regen
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, regen, sink)
	}
	sink.OnChunk("regenerated")
	return &assistant.AskResponse{Answer: "regenerated"}, nil
}

func (f *fakeBackend) EditMessage(ctx context.Context, conversationID, messageID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, messageID)
	return nil
}

func (f *fakeBackend) UploadFile(ctx context.Context, name string, r io.Reader, size int64, onProgress func(percent int)) (*assistant.UploadResult, error) {
	f.mu.Lock()
	err := f.uploadErrs[name]
	f.uploads = append(f.uploads, name)
	f.mu.Unlock()

	if _, copyErr := io.Copy(io.Discard, r); copyErr != nil {
		return nil, copyErr
	}
	if err != nil {
		return nil, err
	}
	onProgress(50)
	onProgress(100)
	return &assistant.UploadResult{
		Attachment: models.FileAttachment{ID: "att-" + name, Name: name, Size: size},
	}, nil
}

func (f *fakeBackend) SubmitFeedback(ctx context.Context, fb models.Feedback) error {
	f.mu.Lock()
	f.feedbacks = append(f.feedbacks, fb)
	fn := f.feedbackFn
	f.mu.Unlock()
	if fn != nil {
		return fn(fb)
	}
	return nil
}

func (f *fakeBackend) regenCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.regens))
	for _, r := range f.regens {
		ids = append(ids, r.MessageID)
	}
	return ids
}

func (f *fakeBackend) askCalls() []assistant.AskRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]assistant.AskRequest(nil), f.asks...)
}

func (f *fakeBackend) feedbackCalls() []models.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Feedback(nil), f.feedbacks...)
}

var errBackend = errors.New("backend unavailable")

func newTestController(t *testing.T, backend *fakeBackend, opts ...Option) *Controller {
	t.Helper()
	store := NewStore(zaptest.NewLogger(t))
	ctrl := NewController(store, backend, append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
	t.Cleanup(func() {
		ctrl.Shutdown(context.Background())
	})
	return ctrl
}

// memoryPersister records what the store writes through
type memoryPersister struct {
	mu      sync.Mutex
	saved   map[string]models.Conversation
	saves   int
	deleted []string
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{saved: make(map[string]models.Conversation)}
}

func (p *memoryPersister) SaveConversation(conv models.Conversation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved[conv.ID] = conv
	p.saves++
	return nil
}

func (p *memoryPersister) DeleteConversation(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.saved, id)
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *memoryPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
