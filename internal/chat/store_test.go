package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"beacon-chat/internal/models"
)

func userMessage(id, content string) models.Message {
	return models.Message{ID: id, Role: models.RoleUser, Content: content, Status: models.StatusComplete}
}

func assistantMessage(id, content string) models.Message {
	return models.Message{ID: id, Role: models.RoleAssistant, Content: content, Status: models.StatusComplete}
}

func TestStore_CreateInsertsAtFrontAndSelects(t *testing.T) {
	store := NewStore(zaptest.NewLogger(t))

	first := store.Create()
	second := store.Create()

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, second.ID, store.CurrentID())
	assert.Equal(t, models.DefaultConversationTitle, second.Title)
	assert.Empty(t, second.Messages)
}

func TestStore_SelectMissing(t *testing.T) {
	store := NewStore(nil)
	conv := store.Create()

	assert.ErrorIs(t, store.Select("missing"), ErrConversationNotFound)
	assert.Equal(t, conv.ID, store.CurrentID())
}

func TestStore_DeleteCurrentPromotesFirst(t *testing.T) {
	store := NewStore(nil)
	y := store.Create()
	x := store.Create() // collection is [X(current), Y]

	require.NoError(t, store.Delete(x.ID))
	assert.Equal(t, y.ID, store.CurrentID())

	require.NoError(t, store.Delete(y.ID))
	assert.Equal(t, "", store.CurrentID())
	_, ok := store.Current()
	assert.False(t, ok)
}

func TestStore_DeleteNonCurrentKeepsCurrent(t *testing.T) {
	store := NewStore(nil)
	y := store.Create()
	x := store.Create()

	require.NoError(t, store.Delete(y.ID))
	assert.Equal(t, x.ID, store.CurrentID())
	assert.ErrorIs(t, store.Delete(y.ID), ErrConversationNotFound)
}

func TestStore_RenameAndPin(t *testing.T) {
	store := NewStore(nil)
	a := store.Create()
	b := store.Create()

	require.NoError(t, store.Rename(a.ID, ""))
	require.NoError(t, store.SetPinned(a.ID, true))

	list := store.List()
	// Pinning never reorders
	assert.Equal(t, b.ID, list[0].ID)
	assert.True(t, list[1].IsPinned)
	assert.Equal(t, "", list[1].Title)

	assert.ErrorIs(t, store.Rename("missing", "x"), ErrConversationNotFound)
	assert.ErrorIs(t, store.SetPinned("missing", true), ErrConversationNotFound)
}

func TestStore_AppendDerivesTitleOnce(t *testing.T) {
	store := NewStore(nil)
	conv := store.Create()

	long := strings.Repeat("a", 60)
	require.True(t, store.AppendMessages(conv.ID, userMessage("u1", long), assistantMessage("a1", "")))
	require.True(t, store.AppendMessages(conv.ID, userMessage("u2", "second question")))

	got, _ := store.Get(conv.ID)
	assert.Equal(t, strings.Repeat("a", 50)+"...", got.Title)
	assert.Equal(t, conv.ID, got.Messages[0].ConversationID)
}

func TestStore_TitleFromFirstUserMessageAfterSystem(t *testing.T) {
	store := NewStore(nil)
	conv := store.Create()

	require.True(t, store.AppendMessages(conv.ID, models.Message{ID: "s1", Role: models.RoleSystem, Content: "Connected to dataset"}))
	got, _ := store.Get(conv.ID)
	assert.Equal(t, models.DefaultConversationTitle, got.Title)

	require.True(t, store.AppendMessages(conv.ID, userMessage("u1", "revenue by month")))
	got, _ = store.Get(conv.ID)
	assert.Equal(t, "revenue by month", got.Title)
}

func TestStore_RenamedTitleIsKept(t *testing.T) {
	store := NewStore(nil)
	conv := store.Create()
	require.NoError(t, store.Rename(conv.ID, "Quarterly review"))

	store.AppendMessages(conv.ID, userMessage("u1", "hello"))

	got, _ := store.Get(conv.ID)
	assert.Equal(t, "Quarterly review", got.Title)
}

func TestStore_UpdateMissingTargetIsNoop(t *testing.T) {
	store := NewStore(nil)
	conv := store.Create()
	store.AppendMessages(conv.ID, userMessage("u1", "hello"))

	called := false
	assert.False(t, store.UpdateMessage(conv.ID, "missing", func(*models.Message) { called = true }))
	assert.False(t, store.UpdateMessage("missing", "u1", func(*models.Message) { called = true }))
	assert.False(t, store.AppendMessages("missing", userMessage("u2", "x")))
	assert.False(t, called)
	assert.Equal(t, 1, store.Len())
}

func TestStore_UpdateTouchesOnlyTarget(t *testing.T) {
	store := NewStore(nil)
	x := store.Create()
	y := store.Create()
	store.AppendMessages(x.ID, userMessage("ux", "in x"))
	store.AppendMessages(y.ID, userMessage("uy", "in y"))

	require.NoError(t, store.Rename(x.ID, "X"))
	store.UpdateMessage(y.ID, "uy", func(m *models.Message) { m.Content = "changed" })

	gotX, _ := store.Get(x.ID)
	gotY, _ := store.Get(y.ID)
	assert.Equal(t, "X", gotX.Title)
	assert.Equal(t, "in x", gotX.Messages[0].Content)
	assert.Equal(t, "changed", gotY.Messages[0].Content)
}

func TestStore_ReadsAreCopies(t *testing.T) {
	store := NewStore(nil)
	conv := store.Create()
	store.AppendMessages(conv.ID, userMessage("u1", "hello"))

	got, _ := store.Get(conv.ID)
	got.Messages[0].Content = "mutated"

	again, _ := store.Get(conv.ID)
	assert.Equal(t, "hello", again.Messages[0].Content)
}

func TestStore_ObserversSeeChangesInOrder(t *testing.T) {
	store := NewStore(nil)
	var kinds []ChangeKind
	store.Subscribe(func(c Change) { kinds = append(kinds, c.Kind) })

	conv := store.Create()
	store.AppendMessages(conv.ID, userMessage("u1", "hi"), assistantMessage("a1", ""))
	store.UpdateMessage(conv.ID, "a1", func(m *models.Message) { m.Content = "x" })
	require.NoError(t, store.Delete(conv.ID))

	assert.Equal(t, []ChangeKind{
		ChangeConversationCreated,
		ChangeCurrentChanged,
		ChangeMessageAdded,
		ChangeMessageAdded,
		ChangeConversationUpdated,
		ChangeMessageUpdated,
		ChangeConversationDeleted,
		ChangeCurrentChanged,
	}, kinds)
}

func TestStore_PersistSkipsStreamingChunks(t *testing.T) {
	p := newMemoryPersister()
	store := NewStore(nil, WithPersister(p))

	conv := store.Create()
	placeholder := assistantMessage("a1", "")
	placeholder.IsStreaming = true
	placeholder.Status = models.StatusStreaming
	store.AppendMessages(conv.ID, userMessage("u1", "hi"), placeholder)
	before := p.saveCount()

	store.UpdateMessage(conv.ID, "a1", func(m *models.Message) { m.Content = "H" })
	store.UpdateMessage(conv.ID, "a1", func(m *models.Message) { m.Content = "He" })
	assert.Equal(t, before, p.saveCount())

	store.UpdateMessage(conv.ID, "a1", func(m *models.Message) {
		m.Content = "Hello"
		m.IsStreaming = false
		m.Status = models.StatusComplete
	})
	assert.Equal(t, before+1, p.saveCount())
	assert.Equal(t, "Hello", p.saved[conv.ID].Messages[1].Content)

	require.NoError(t, store.Delete(conv.ID))
	assert.Equal(t, []string{conv.ID}, p.deleted)
}

func TestStore_LoadSelectsFirstAndFailsInterrupted(t *testing.T) {
	store := NewStore(nil)
	now := time.Now()
	interrupted := assistantMessage("a1", "Par")
	interrupted.IsStreaming = true
	interrupted.Status = models.StatusStreaming

	store.Load([]models.Conversation{
		{ID: "newest", Title: "N", CreatedAt: now, Messages: []models.Message{userMessage("u1", "q"), interrupted}},
		{ID: "older", Title: "O", CreatedAt: now.Add(-time.Hour)},
	})

	assert.Equal(t, "newest", store.CurrentID())
	got, _ := store.Get("newest")
	assert.Equal(t, models.StatusError, got.Messages[1].Status)
	assert.False(t, got.Messages[1].IsStreaming)
	older, _ := store.Get("older")
	assert.NotNil(t, older.Messages)
}

func TestStore_FindMessage(t *testing.T) {
	store := NewStore(nil)
	conv := store.Create()
	store.AppendMessages(conv.ID, userMessage("u1", "hello"))

	convID, msg, ok := store.FindMessage("u1")
	require.True(t, ok)
	assert.Equal(t, conv.ID, convID)
	assert.Equal(t, "hello", msg.Content)

	_, _, ok = store.FindMessage("missing")
	assert.False(t, ok)
}
