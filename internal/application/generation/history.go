package generation

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
	"storyloom-api/internal/domain/service"
	"storyloom-api/pkg/logger"
	"storyloom-api/pkg/metrics"
)

var tracer = otel.Tracer("generation")

// HistoryManager 维护故事的会话历史
// 历史是章节集合的派生数据，缺失时从已持久化章节重建
type HistoryManager struct {
	stories  repository.StoryRepository
	chapters repository.ChapterRepository
}

// NewHistoryManager 创建会话历史管理器
func NewHistoryManager(stories repository.StoryRepository, chapters repository.ChapterRepository) *HistoryManager {
	return &HistoryManager{
		stories:  stories,
		chapters: chapters,
	}
}

// EnsureHistory 返回故事的会话历史，缺失时从章节重建
// 重建只读不写，重建结果随本次生成一起落库
func (m *HistoryManager) EnsureHistory(ctx context.Context, story *entity.Story) ([]entity.HistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "HistoryManager.EnsureHistory",
		trace.WithAttributes(attribute.String("story.id", story.ID)))
	defer span.End()

	if story.HasHistory() {
		return story.ConversationHistory, nil
	}

	chapters, err := m.chapters.ListByStory(ctx, story.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters for history rebuild: %w", err)
	}
	if len(chapters) == 0 {
		return nil, nil
	}

	history := service.BuildConversationHistory(chapters)
	metrics.HistoryRebuildTotal.Inc()
	logger.Info(ctx, "conversation history rebuilt from chapters",
		"story_id", story.ID,
		"chapter_count", len(chapters),
	)

	story.ConversationHistory = history
	return history, nil
}
