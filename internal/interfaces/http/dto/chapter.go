package dto

import (
	"time"

	"storyloom-api/internal/domain/entity"
)

// ChapterResponse 章节响应
type ChapterResponse struct {
	ID             string `json:"id"`
	StoryID        string `json:"story_id"`
	SeqNum         int    `json:"seq_num"`
	Title          string `json:"title,omitempty"`
	ContentText    string `json:"content_text"`
	WordCount      int    `json:"word_count"`
	ReadingTimeMin int    `json:"reading_time_min"`
	CreatedAt      string `json:"created_at"`
}

// NewChapterResponse 由实体构建章节响应
func NewChapterResponse(ch *entity.Chapter) *ChapterResponse {
	return &ChapterResponse{
		ID:             ch.ID,
		StoryID:        ch.StoryID,
		SeqNum:         ch.SeqNum,
		Title:          ch.Title,
		ContentText:    ch.ContentText,
		WordCount:      ch.WordCount,
		ReadingTimeMin: ch.ReadingTimeMin,
		CreatedAt:      ch.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ChapterSummary 章节列表条目（不含正文）
type ChapterSummary struct {
	ID             string `json:"id"`
	SeqNum         int    `json:"seq_num"`
	Title          string `json:"title,omitempty"`
	WordCount      int    `json:"word_count"`
	ReadingTimeMin int    `json:"reading_time_min"`
	CreatedAt      string `json:"created_at"`
}

// NewChapterSummaries 由实体集合构建章节列表
func NewChapterSummaries(chapters []*entity.Chapter) []*ChapterSummary {
	out := make([]*ChapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		out = append(out, &ChapterSummary{
			ID:             ch.ID,
			SeqNum:         ch.SeqNum,
			Title:          ch.Title,
			WordCount:      ch.WordCount,
			ReadingTimeMin: ch.ReadingTimeMin,
			CreatedAt:      ch.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// HistoryEntryPayload 会话历史条目
type HistoryEntryPayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationResult 生成结果，带更新后的会话历史
type GenerationResult struct {
	Chapter             *ChapterResponse      `json:"chapter"`
	ConversationHistory []HistoryEntryPayload `json:"conversation_history"`
}

// NewGenerationResult 由章节和会话历史构建生成结果
func NewGenerationResult(ch *entity.Chapter, history []entity.HistoryEntry) *GenerationResult {
	entries := make([]HistoryEntryPayload, 0, len(history))
	for _, e := range history {
		entries = append(entries, HistoryEntryPayload{
			Role:    string(e.Role),
			Content: e.Content,
		})
	}
	return &GenerationResult{
		Chapter:             NewChapterResponse(ch),
		ConversationHistory: entries,
	}
}

// GenerateChapterRequest 首章生成请求
type GenerateChapterRequest struct {
	Premise string `json:"premise" binding:"required"`
}

// ContinueStoryRequest 续写请求
type ContinueStoryRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}
