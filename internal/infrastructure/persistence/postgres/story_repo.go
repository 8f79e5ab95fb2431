package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
)

// StoryRepo 故事仓储的 PostgreSQL 实现
type StoryRepo struct {
	client *Client
}

// NewStoryRepo 创建故事仓储
func NewStoryRepo(client *Client) repository.StoryRepository {
	return &StoryRepo{client: client}
}

// Create 创建故事
func (r *StoryRepo) Create(ctx context.Context, story *entity.Story) error {
	ctx, span := tracer.Start(ctx, "StoryRepo.Create")
	defer span.End()

	if err := r.client.DB().WithContext(ctx).Create(story).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create story: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取故事
func (r *StoryRepo) GetByID(ctx context.Context, id string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "StoryRepo.GetByID")
	defer span.End()

	var story entity.Story
	err := r.client.DB().WithContext(ctx).Where("id = ?", id).First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

// ListByOwner 获取所有者的故事列表
func (r *StoryRepo) ListByOwner(ctx context.Context, ownerID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Story], error) {
	ctx, span := tracer.Start(ctx, "StoryRepo.ListByOwner")
	defer span.End()

	query := r.client.DB().WithContext(ctx).Model(&entity.Story{}).Where("owner_id = ?", ownerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}

	var stories []*entity.Story
	err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&stories).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	return repository.NewPagedResult(stories, total, pagination), nil
}

// UpdateConversationHistory 持久化会话历史
func (r *StoryRepo) UpdateConversationHistory(ctx context.Context, storyID string, history []entity.HistoryEntry) error {
	ctx, span := tracer.Start(ctx, "StoryRepo.UpdateConversationHistory")
	defer span.End()

	err := r.client.DB().WithContext(ctx).
		Model(&entity.Story{}).
		Where("id = ?", storyID).
		Update("conversation_history", history).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update conversation history: %w", err)
	}
	return nil
}
