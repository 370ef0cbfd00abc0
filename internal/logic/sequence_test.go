package logic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"beacon-chat/internal/models"
)

func exchange() []models.Message {
	return []models.Message{
		{ID: "a", Role: models.RoleUser},
		{ID: "b", Role: models.RoleAssistant},
		{ID: "c", Role: models.RoleUser},
		{ID: "d", Role: models.RoleAssistant},
	}
}

func TestNextAssistantMessageID_PicksNearestFollowing(t *testing.T) {
	id, ok := NextAssistantMessageID(exchange(), "a")
	assert.True(t, ok)
	assert.Equal(t, "b", id)

	id, ok = NextAssistantMessageID(exchange(), "c")
	assert.True(t, ok)
	assert.Equal(t, "d", id)
}

func TestNextAssistantMessageID_NoneFollowing(t *testing.T) {
	_, ok := NextAssistantMessageID([]models.Message{{ID: "a", Role: models.RoleUser}}, "a")
	assert.False(t, ok)

	_, ok = NextAssistantMessageID(exchange(), "d")
	assert.False(t, ok)
}

func TestNextAssistantMessageID_UnknownID(t *testing.T) {
	_, ok := NextAssistantMessageID(exchange(), "missing")
	assert.False(t, ok)
}

func TestIndexOfMessage(t *testing.T) {
	assert.Equal(t, 2, IndexOfMessage(exchange(), "c"))
	assert.Equal(t, -1, IndexOfMessage(exchange(), "z"))
}

func TestHasUserMessages(t *testing.T) {
	assert.False(t, HasUserMessages(nil))
	assert.False(t, HasUserMessages([]models.Message{{Role: models.RoleSystem}}))
	assert.True(t, HasUserMessages(exchange()))
}
