package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-api/internal/domain/entity"
)

func TestWrapChapter(t *testing.T) {
	got := WrapChapter(3, "The Door", "He knocked twice.")

	assert.Equal(t, "<chapter seq=\"3\" title=\"The Door\">\nHe knocked twice.\n</chapter>", got)
}

func TestBuildConversationHistoryOrdersBySeq(t *testing.T) {
	chapters := []*entity.Chapter{
		{SeqNum: 3, Title: "C", ContentText: "three"},
		{SeqNum: 1, Title: "A", ContentText: "one"},
		{SeqNum: 2, Title: "B", ContentText: "two"},
	}

	history := BuildConversationHistory(chapters)

	require.Len(t, history, 3)
	assert.Contains(t, history[0].Content, `seq="1"`)
	assert.Contains(t, history[1].Content, `seq="2"`)
	assert.Contains(t, history[2].Content, `seq="3"`)
	for _, entry := range history {
		assert.Equal(t, entity.HistoryRoleAssistant, entry.Role)
	}

	// 输入切片不被重排
	assert.Equal(t, 3, chapters[0].SeqNum)
}

func TestBuildConversationHistoryIdempotent(t *testing.T) {
	chapters := []*entity.Chapter{
		{SeqNum: 2, Title: "B", ContentText: "two"},
		{SeqNum: 1, Title: "A", ContentText: "one"},
	}

	first := BuildConversationHistory(chapters)
	second := BuildConversationHistory(chapters)

	assert.Equal(t, first, second)
}

func TestBuildConversationHistoryMatchesIncrementalAppend(t *testing.T) {
	ch := &entity.Chapter{SeqNum: 1, Title: "A", ContentText: "one"}

	// 重建路径与追加路径产出的条目必须字节级一致
	rebuilt := BuildConversationHistory([]*entity.Chapter{ch})
	appended := HistoryEntryForChapter(ch)

	require.Len(t, rebuilt, 1)
	assert.Equal(t, appended, rebuilt[0])
}

func TestBuildConversationHistoryEmpty(t *testing.T) {
	history := BuildConversationHistory(nil)

	assert.NotNil(t, history)
	assert.Empty(t, history)
}
