package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
)

// ChapterRepo 章节仓储的 PostgreSQL 实现
type ChapterRepo struct {
	client *Client
}

// NewChapterRepo 创建章节仓储
func NewChapterRepo(client *Client) repository.ChapterRepository {
	return &ChapterRepo{client: client}
}

// Create 创建章节
func (r *ChapterRepo) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "ChapterRepo.Create")
	defer span.End()

	if err := r.client.DB().WithContext(ctx).Create(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// GetByStoryAndSeq 根据故事和序号获取章节
func (r *ChapterRepo) GetByStoryAndSeq(ctx context.Context, storyID string, seqNum int) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "ChapterRepo.GetByStoryAndSeq")
	defer span.End()

	var chapter entity.Chapter
	err := r.client.DB().WithContext(ctx).
		Where("story_id = ? AND seq_num = ?", storyID, seqNum).
		First(&chapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// ListByStory 获取故事全部章节（按序号升序）
func (r *ChapterRepo) ListByStory(ctx context.Context, storyID string) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "ChapterRepo.ListByStory")
	defer span.End()

	var chapters []*entity.Chapter
	err := r.client.DB().WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("seq_num ASC").
		Find(&chapters).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// CountByStory 统计故事章节数
func (r *ChapterRepo) CountByStory(ctx context.Context, storyID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "ChapterRepo.CountByStory")
	defer span.End()

	var count int64
	err := r.client.DB().WithContext(ctx).
		Model(&entity.Chapter{}).
		Where("story_id = ?", storyID).
		Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count chapters: %w", err)
	}
	return count, nil
}
