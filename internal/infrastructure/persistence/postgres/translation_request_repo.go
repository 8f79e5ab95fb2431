package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
	apperrors "storyloom-api/pkg/errors"
)

// TranslationRequestRepo 翻译请求仓储的 PostgreSQL 实现
type TranslationRequestRepo struct {
	client *Client
}

// NewTranslationRequestRepo 创建翻译请求仓储
func NewTranslationRequestRepo(client *Client) repository.TranslationRequestRepository {
	return &TranslationRequestRepo{client: client}
}

// CreateIfAbsent 在不存在非终态同键请求时插入
// 并发安全性由部分唯一索引兜底，违反约束统一映射为重复请求错误
func (r *TranslationRequestRepo) CreateIfAbsent(ctx context.Context, req *entity.TranslationRequest) error {
	ctx, span := tracer.Start(ctx, "TranslationRequestRepo.CreateIfAbsent")
	defer span.End()

	active, err := r.GetActiveByKey(ctx, req.Key())
	if err != nil {
		return err
	}
	if active != nil {
		return apperrors.ErrDuplicateRequest
	}

	if err := r.client.DB().WithContext(ctx).Create(req).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.ErrDuplicateRequest
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create translation request: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取请求
func (r *TranslationRequestRepo) GetByID(ctx context.Context, id string) (*entity.TranslationRequest, error) {
	ctx, span := tracer.Start(ctx, "TranslationRequestRepo.GetByID")
	defer span.End()

	var req entity.TranslationRequest
	err := r.client.DB().WithContext(ctx).Where("id = ?", id).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get translation request: %w", err)
	}
	return &req, nil
}

// GetLatestByKey 获取复合键下最近的请求
func (r *TranslationRequestRepo) GetLatestByKey(ctx context.Context, key entity.TranslationKey) (*entity.TranslationRequest, error) {
	ctx, span := tracer.Start(ctx, "TranslationRequestRepo.GetLatestByKey")
	defer span.End()

	var req entity.TranslationRequest
	err := r.client.DB().WithContext(ctx).
		Where("story_id = ? AND chapter_num = ? AND target_language = ?", key.StoryID, key.ChapterNum, key.TargetLanguage).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get latest translation request: %w", err)
	}
	return &req, nil
}

// GetActiveByKey 获取复合键下的非终态请求
func (r *TranslationRequestRepo) GetActiveByKey(ctx context.Context, key entity.TranslationKey) (*entity.TranslationRequest, error) {
	ctx, span := tracer.Start(ctx, "TranslationRequestRepo.GetActiveByKey")
	defer span.End()

	var req entity.TranslationRequest
	err := r.client.DB().WithContext(ctx).
		Where("story_id = ? AND chapter_num = ? AND target_language = ?", key.StoryID, key.ChapterNum, key.TargetLanguage).
		Where("status IN ?", []entity.TranslationStatus{entity.TranslationStatusPending, entity.TranslationStatusProcessing}).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get active translation request: %w", err)
	}
	return &req, nil
}

// Update 更新请求状态
func (r *TranslationRequestRepo) Update(ctx context.Context, req *entity.TranslationRequest) error {
	ctx, span := tracer.Start(ctx, "TranslationRequestRepo.Update")
	defer span.End()

	if err := r.client.DB().WithContext(ctx).Save(req).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update translation request: %w", err)
	}
	return nil
}
