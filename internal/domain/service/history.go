// Package service 提供领域服务
package service

import (
	"fmt"
	"sort"

	"storyloom-api/internal/domain/entity"
)

// WrapChapter 将章节包装为带定界标签的会话历史文本
// 重建路径与增量追加路径共用该格式，保证两者字节级一致
func WrapChapter(seqNum int, title, body string) string {
	return fmt.Sprintf("<chapter seq=%q title=%q>\n%s\n</chapter>", fmt.Sprint(seqNum), title, body)
}

// HistoryEntryForChapter 由章节合成单条会话历史条目
func HistoryEntryForChapter(ch *entity.Chapter) entity.HistoryEntry {
	return entity.HistoryEntry{
		Role:    entity.HistoryRoleAssistant,
		Content: WrapChapter(ch.SeqNum, ch.Title, ch.ContentText),
	}
}

// BuildConversationHistory 从章节集合重建会话历史
// 纯函数：无副作用，输入章节以任意顺序给出，输出始终按章节序号升序
func BuildConversationHistory(chapters []*entity.Chapter) []entity.HistoryEntry {
	if len(chapters) == 0 {
		return []entity.HistoryEntry{}
	}

	ordered := make([]*entity.Chapter, len(chapters))
	copy(ordered, chapters)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SeqNum < ordered[j].SeqNum
	})

	entries := make([]entity.HistoryEntry, 0, len(ordered))
	for _, ch := range ordered {
		entries = append(entries, HistoryEntryForChapter(ch))
	}
	return entries
}
