// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"storyloom-api/internal/domain/entity"
)

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// Create 创建章节（章节创建后不可变）
	Create(ctx context.Context, chapter *entity.Chapter) error

	// GetByStoryAndSeq 根据故事和序号获取章节，不存在时返回 (nil, nil)
	GetByStoryAndSeq(ctx context.Context, storyID string, seqNum int) (*entity.Chapter, error)

	// ListByStory 获取故事全部章节（按序号升序）
	ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error)

	// CountByStory 统计故事章节数
	CountByStory(ctx context.Context, storyID string) (int64, error)
}
