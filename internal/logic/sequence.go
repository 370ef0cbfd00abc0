package logic

import "beacon-chat/internal/models"

// IndexOfMessage returns the position of the message with the given id, or -1
func IndexOfMessage(messages []models.Message, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

// NextAssistantMessageID scans forward from the message with the given id and
// returns the id of the first assistant message after it.
// The second return value is false when there is none.
func NextAssistantMessageID(messages []models.Message, fromID string) (string, bool) {
	idx := IndexOfMessage(messages, fromID)
	if idx < 0 {
		return "", false
	}
	for _, m := range messages[idx+1:] {
		if m.Role == models.RoleAssistant {
			return m.ID, true
		}
	}
	return "", false
}

// HasUserMessages reports whether any user message exists yet
func HasUserMessages(messages []models.Message) bool {
	for _, m := range messages {
		if m.Role == models.RoleUser {
			return true
		}
	}
	return false
}
