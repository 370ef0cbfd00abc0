package chat

import "beacon-chat/internal/models"

// ChangeKind names what happened in a Change
type ChangeKind string

const (
	ChangeConversationCreated ChangeKind = "conversation_created"
	ChangeConversationUpdated ChangeKind = "conversation_updated"
	ChangeConversationDeleted ChangeKind = "conversation_deleted"
	ChangeCurrentChanged      ChangeKind = "current_changed"
	ChangeMessageAdded        ChangeKind = "message_added"
	ChangeMessageUpdated      ChangeKind = "message_updated"
	ChangeRegenerating        ChangeKind = "regenerating"
	ChangeStreaming           ChangeKind = "streaming"
	ChangeUploadProgress      ChangeKind = "upload_progress"
	ChangeNotification        ChangeKind = "notification"
)

// Change is published to observers after every store mutation.
// Fields not relevant to Kind are left empty.
type Change struct {
	Kind           ChangeKind                  `json:"kind"`
	ConversationID string                      `json:"conversation_id,omitempty"`
	MessageID      string                      `json:"message_id,omitempty"`
	Conversation   *models.ConversationSummary `json:"conversation,omitempty"`
	Message        *models.Message             `json:"message,omitempty"`
	Notification   *models.Notification        `json:"notification,omitempty"`
	Active         bool                        `json:"active,omitempty"`
	FileName       string                      `json:"file_name,omitempty"`
	Percent        int                         `json:"percent,omitempty"`
}

// Observer receives changes in the order they were applied.
// Observers run while the store is locked: they must not block or call back into the store.
type Observer func(Change)
