// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"storyloom-api/internal/domain/entity"
)

// TranslationRequestRepository 翻译请求仓储接口
type TranslationRequestRepository interface {
	// CreateIfAbsent 在不存在非终态同键请求时插入
	// 存在冲突（并发或已有非终态记录）时返回 CodeDuplicateRequest 错误
	CreateIfAbsent(ctx context.Context, req *entity.TranslationRequest) error

	// GetByID 根据 ID 获取请求，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.TranslationRequest, error)

	// GetLatestByKey 获取复合键下最近的请求，不存在时返回 (nil, nil)
	GetLatestByKey(ctx context.Context, key entity.TranslationKey) (*entity.TranslationRequest, error)

	// GetActiveByKey 获取复合键下的非终态请求，不存在时返回 (nil, nil)
	GetActiveByKey(ctx context.Context, key entity.TranslationKey) (*entity.TranslationRequest, error)

	// Update 更新请求状态
	Update(ctx context.Context, req *entity.TranslationRequest) error
}

// TranslationRepository 翻译结果仓储接口
type TranslationRepository interface {
	// Save 写入翻译结果（同键重复写入时以后写为准）
	Save(ctx context.Context, translation *entity.Translation) error

	// GetByKey 根据复合键获取翻译，不存在时返回 (nil, nil)
	GetByKey(ctx context.Context, key entity.TranslationKey) (*entity.Translation, error)

	// IncrementUsage 每次对外提供翻译时累加使用计数
	IncrementUsage(ctx context.Context, id string) error

	// DeleteOlderThan 删除早于给定时刻的翻译并返回删除数量
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
