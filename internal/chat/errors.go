package chat

import "errors"

var (
	ErrNoCurrentConversation = errors.New("no current conversation")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrNotAssistantMessage   = errors.New("message is not an assistant message")
	ErrNotUserMessage        = errors.New("only user messages can be edited")
	ErrNothingToUndo         = errors.New("nothing to undo")
	ErrEmptyContent          = errors.New("message content is empty")
	ErrStreamInProgress      = errors.New("a response is still streaming")
	ErrAlreadyRegenerating   = errors.New("message is already regenerating")
	ErrMessageStreaming      = errors.New("message is still streaming")
	ErrInvalidReason         = errors.New("invalid dislike reason")
)
