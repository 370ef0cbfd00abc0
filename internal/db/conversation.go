package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"beacon-chat/internal/models"
)

// SaveConversation upserts a conversation and replaces its stored messages
func (d *DB) SaveConversation(conv models.Conversation) error {
	return d.WithLock(func() error {
		tx, err := d.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO conversations (id, title, is_pinned, is_renamed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				is_pinned = excluded.is_pinned,
				is_renamed = excluded.is_renamed,
				updated_at = excluded.updated_at
		`, conv.ID, conv.Title, conv.IsPinned, conv.IsRenamed, conv.CreatedAt, conv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save conversation: %w", err)
		}

		if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
			return fmt.Errorf("failed to clear messages: %w", err)
		}

		for i, msg := range conv.Messages {
			body, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("failed to encode message %s: %w", msg.ID, err)
			}
			_, err = tx.Exec(
				`INSERT INTO messages (id, conversation_id, position, role, status, body) VALUES (?, ?, ?, ?, ?, ?)`,
				msg.ID, conv.ID, i, string(msg.Role), string(msg.Status), string(body),
			)
			if err != nil {
				return fmt.Errorf("failed to save message %s: %w", msg.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit conversation: %w", err)
		}

		d.logger.Debug("SaveConversation completed",
			zap.String("conversation_id", conv.ID),
			zap.Int("messages", len(conv.Messages)))
		return nil
	})
}

// DeleteConversation deletes a conversation and its messages.
// Returns sql.ErrNoRows when the conversation was never stored.
func (d *DB) DeleteConversation(id string) error {
	return d.WithLock(func() error {
		result, err := d.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
		if err != nil {
			return err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if rows == 0 {
			return sql.ErrNoRows
		}

		return nil
	})
}

// LoadConversations returns every stored conversation, most recently created first
func (d *DB) LoadConversations() ([]models.Conversation, error) {
	return WithLockResult(d, func() ([]models.Conversation, error) {
		rows, err := d.db.Query(`
			SELECT id, title, is_pinned, is_renamed, created_at, updated_at
			FROM conversations
			ORDER BY created_at DESC
		`)
		if err != nil {
			return nil, err
		}

		var conversations []models.Conversation
		index := make(map[string]int)
		for rows.Next() {
			var conv models.Conversation
			if err := rows.Scan(&conv.ID, &conv.Title, &conv.IsPinned, &conv.IsRenamed, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
				rows.Close()
				return nil, err
			}
			conv.Messages = []models.Message{}
			index[conv.ID] = len(conversations)
			conversations = append(conversations, conv)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		msgRows, err := d.db.Query(`SELECT conversation_id, body FROM messages ORDER BY conversation_id, position`)
		if err != nil {
			return nil, err
		}
		defer msgRows.Close()

		for msgRows.Next() {
			var convID, body string
			if err := msgRows.Scan(&convID, &body); err != nil {
				return nil, err
			}
			i, ok := index[convID]
			if !ok {
				continue
			}
			var msg models.Message
			if err := json.Unmarshal([]byte(body), &msg); err != nil {
				d.logger.Warn("LoadConversations skipped message: decode error",
					zap.String("conversation_id", convID), zap.Error(err))
				continue
			}
			conversations[i].Messages = append(conversations[i].Messages, msg)
		}

		return conversations, msgRows.Err()
	})
}

// SaveFeedback records a like or dislike submitted for a message
func (d *DB) SaveFeedback(fb models.Feedback) error {
	return d.WithLock(func() error {
		_, err := d.db.Exec(
			`INSERT INTO feedback (message_id, type, reason, comment, created_at) VALUES (?, ?, ?, ?, ?)`,
			fb.MessageID, string(fb.Type), string(fb.Reason), fb.Comment, fb.Timestamp,
		)
		return err
	})
}

// GetFeedback returns the feedback recorded for a message, oldest first
func (d *DB) GetFeedback(messageID string) ([]models.Feedback, error) {
	return WithLockResult(d, func() ([]models.Feedback, error) {
		rows, err := d.db.Query(
			`SELECT message_id, type, reason, comment, created_at FROM feedback WHERE message_id = ? ORDER BY id`,
			messageID,
		)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []models.Feedback
		for rows.Next() {
			var fb models.Feedback
			var fbType string
			var reason, comment sql.NullString
			if err := rows.Scan(&fb.MessageID, &fbType, &reason, &comment, &fb.Timestamp); err != nil {
				return nil, err
			}
			fb.Type = models.FeedbackType(fbType)
			fb.Reason = models.DislikeReason(reason.String)
			fb.Comment = comment.String
			out = append(out, fb)
		}
		return out, rows.Err()
	})
}
