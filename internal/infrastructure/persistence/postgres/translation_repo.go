package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
)

// TranslationRepo 翻译结果仓储的 PostgreSQL 实现
type TranslationRepo struct {
	client *Client
}

// NewTranslationRepo 创建翻译结果仓储
func NewTranslationRepo(client *Client) repository.TranslationRepository {
	return &TranslationRepo{client: client}
}

// Save 写入翻译结果，同键重复写入时以后写为准
func (r *TranslationRepo) Save(ctx context.Context, translation *entity.Translation) error {
	ctx, span := tracer.Start(ctx, "TranslationRepo.Save")
	defer span.End()

	err := r.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "story_id"},
				{Name: "chapter_num"},
				{Name: "target_language"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"translated_title", "translated_content", "translation_notes", "quality_score",
			}),
		}).
		Create(translation).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save translation: %w", err)
	}
	return nil
}

// GetByKey 根据复合键获取翻译
func (r *TranslationRepo) GetByKey(ctx context.Context, key entity.TranslationKey) (*entity.Translation, error) {
	ctx, span := tracer.Start(ctx, "TranslationRepo.GetByKey")
	defer span.End()

	var translation entity.Translation
	err := r.client.DB().WithContext(ctx).
		Where("story_id = ? AND chapter_num = ? AND target_language = ?", key.StoryID, key.ChapterNum, key.TargetLanguage).
		First(&translation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get translation: %w", err)
	}
	return &translation, nil
}

// IncrementUsage 累加使用计数
func (r *TranslationRepo) IncrementUsage(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TranslationRepo.IncrementUsage")
	defer span.End()

	err := r.client.DB().WithContext(ctx).
		Model(&entity.Translation{}).
		Where("id = ?", id).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to increment translation usage: %w", err)
	}
	return nil
}

// DeleteOlderThan 删除早于给定时刻的翻译
func (r *TranslationRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, span := tracer.Start(ctx, "TranslationRepo.DeleteOlderThan")
	defer span.End()

	result := r.client.DB().WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&entity.Translation{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete expired translations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
