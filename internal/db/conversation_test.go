package db

import (
	"database/sql"
	"testing"
	"time"

	"beacon-chat/internal/models"
)

func sampleConversation(id string, created time.Time) models.Conversation {
	return models.Conversation{
		ID:        id,
		Title:     "Sales by region",
		CreatedAt: created,
		UpdatedAt: created,
		Messages: []models.Message{
			{
				ID:             id + "-u",
				ConversationID: id,
				Role:           models.RoleUser,
				Content:        "Show sales by region",
				Status:         models.StatusSent,
				Timestamp:      created,
			},
			{
				ID:             id + "-a",
				ConversationID: id,
				Role:           models.RoleAssistant,
				Content:        "| Region | Sales |\n|---|---|\n| EU | 10 |",
				Status:         models.StatusComplete,
				Timestamp:      created,
				Sources:        []models.Source{{Filename: "sales.pdf", Path: "/docs/sales.pdf", Type: "pdf"}},
				Tables:         []models.Table{{Headers: []string{"Region", "Sales"}, Rows: [][]string{{"EU", "10"}}}},
				Metadata:       &models.ResponseMetadata{ResponseTime: 120, Confidence: 0.67, CitationCount: 1},
			},
		},
	}
}

func TestSaveAndLoadConversation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	conv := sampleConversation("c1", time.Now().UTC())
	if err := db.SaveConversation(conv); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	loaded, err := db.LoadConversations()
	if err != nil {
		t.Fatalf("failed to load conversations: %v", err)
	}

	if len(loaded) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(loaded))
	}
	got := loaded[0]
	if got.Title != "Sales by region" {
		t.Errorf("expected title 'Sales by region', got '%s'", got.Title)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != models.RoleUser || got.Messages[1].Role != models.RoleAssistant {
		t.Errorf("messages out of order: %+v", got.Messages)
	}
	if len(got.Messages[1].Sources) != 1 || got.Messages[1].Metadata == nil {
		t.Errorf("expected sources and metadata to round trip, got %+v", got.Messages[1])
	}
}

func TestSaveConversation_ReplacesMessages(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	conv := sampleConversation("c1", time.Now().UTC())
	if err := db.SaveConversation(conv); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	conv.Title = "Renamed"
	conv.IsRenamed = true
	conv.Messages = conv.Messages[:1]
	if err := db.SaveConversation(conv); err != nil {
		t.Fatalf("failed to update conversation: %v", err)
	}

	loaded, err := db.LoadConversations()
	if err != nil {
		t.Fatalf("failed to load conversations: %v", err)
	}

	if loaded[0].Title != "Renamed" || !loaded[0].IsRenamed {
		t.Errorf("expected renamed conversation, got %+v", loaded[0].Summary())
	}
	if len(loaded[0].Messages) != 1 {
		t.Errorf("expected 1 message after replace, got %d", len(loaded[0].Messages))
	}
}

func TestLoadConversations_NewestFirst(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	base := time.Now().UTC()
	if err := db.SaveConversation(sampleConversation("old", base.Add(-time.Hour))); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := db.SaveConversation(sampleConversation("new", base)); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := db.LoadConversations()
	if err != nil {
		t.Fatalf("failed to load conversations: %v", err)
	}

	if len(loaded) != 2 || loaded[0].ID != "new" || loaded[1].ID != "old" {
		t.Errorf("expected newest first, got %v", loaded)
	}
}

func TestDeleteConversation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.SaveConversation(sampleConversation("c1", time.Now().UTC())); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	if err := db.DeleteConversation("c1"); err != nil {
		t.Fatalf("failed to delete conversation: %v", err)
	}

	loaded, err := db.LoadConversations()
	if err != nil {
		t.Fatalf("failed to load conversations: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected no conversations, got %d", len(loaded))
	}

	var count int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		t.Fatalf("failed to count messages: %v", err)
	}
	if count != 0 {
		t.Errorf("expected messages to cascade, got %d", count)
	}
}

func TestDeleteConversation_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	if err := db.DeleteConversation("missing"); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSaveFeedback(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC()
	if err := db.SaveFeedback(models.Feedback{MessageID: "m1", Type: models.FeedbackLike, Timestamp: now}); err != nil {
		t.Fatalf("failed to save feedback: %v", err)
	}
	err := db.SaveFeedback(models.Feedback{
		MessageID: "m1",
		Type:      models.FeedbackDislike,
		Reason:    models.ReasonIncorrect,
		Comment:   "wrong totals",
		Timestamp: now,
	})
	if err != nil {
		t.Fatalf("failed to save feedback: %v", err)
	}

	got, err := db.GetFeedback("m1")
	if err != nil {
		t.Fatalf("failed to get feedback: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 feedback rows, got %d", len(got))
	}
	if got[1].Reason != models.ReasonIncorrect || got[1].Comment != "wrong totals" {
		t.Errorf("unexpected dislike feedback %+v", got[1])
	}
}
