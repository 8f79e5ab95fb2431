// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"storyloom-api/internal/domain/entity"
)

// StoryRepository 故事仓储接口
type StoryRepository interface {
	// Create 创建故事
	Create(ctx context.Context, story *entity.Story) error

	// GetByID 根据 ID 获取故事，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Story, error)

	// ListByOwner 获取所有者的故事列表
	ListByOwner(ctx context.Context, ownerID string, pagination Pagination) (*PagedResult[*entity.Story], error)

	// UpdateConversationHistory 持久化重建/追加后的会话历史
	UpdateConversationHistory(ctx context.Context, storyID string, history []entity.HistoryEntry) error
}
