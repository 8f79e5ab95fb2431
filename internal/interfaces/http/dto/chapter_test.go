package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-api/internal/domain/entity"
)

func TestNewGenerationResultCarriesHistory(t *testing.T) {
	ch := &entity.Chapter{
		ID:          "c1",
		StoryID:     "s1",
		SeqNum:      2,
		Title:       "Second",
		ContentText: "body",
		CreatedAt:   time.Now(),
	}
	history := []entity.HistoryEntry{
		{Role: entity.HistoryRoleAssistant, Content: "<chapter seq=\"1\" title=\"First\">one</chapter>"},
		{Role: entity.HistoryRoleAssistant, Content: "<chapter seq=\"2\" title=\"Second\">body</chapter>"},
	}

	result := NewGenerationResult(ch, history)
	require.NotNil(t, result.Chapter)
	assert.Equal(t, 2, result.Chapter.SeqNum)
	require.Len(t, result.ConversationHistory, 2)
	assert.Equal(t, "assistant", result.ConversationHistory[0].Role)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"conversation_history"`)
	assert.Contains(t, string(raw), `"role":"assistant"`)
}

func TestNewGenerationResultEmptyHistory(t *testing.T) {
	ch := &entity.Chapter{ID: "c1", StoryID: "s1", SeqNum: 1, CreatedAt: time.Now()}

	result := NewGenerationResult(ch, nil)
	assert.NotNil(t, result.ConversationHistory)
	assert.Empty(t, result.ConversationHistory)
}
