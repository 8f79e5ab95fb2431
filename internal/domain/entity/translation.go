// Package entity 定义领域实体
package entity

import (
	"time"
)

// TranslationStatus 翻译请求状态
type TranslationStatus string

const (
	TranslationStatusNotRequested TranslationStatus = "not_requested"
	TranslationStatusPending      TranslationStatus = "pending"
	TranslationStatusProcessing   TranslationStatus = "processing"
	TranslationStatusCompleted    TranslationStatus = "completed"
	TranslationStatusFailed       TranslationStatus = "failed"
)

// IsTerminal 检查是否为终态
func (s TranslationStatus) IsTerminal() bool {
	return s == TranslationStatusCompleted || s == TranslationStatusFailed
}

// TranslationKey 翻译工作单元的复合键
type TranslationKey struct {
	StoryID        string `json:"story_id"`
	ChapterNum     int    `json:"chapter_num"`
	TargetLanguage string `json:"target_language"`
}

// TranslationRequest 翻译请求
// 同一复合键同时最多存在一个非终态请求（pending/processing）
type TranslationRequest struct {
	ID             string            `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID        string            `json:"story_id" gorm:"type:uuid;index;not null"`
	ChapterNum     int               `json:"chapter_num" gorm:"not null"`
	TargetLanguage string            `json:"target_language" gorm:"type:varchar(16);not null"`
	Status         TranslationStatus `json:"status" gorm:"type:varchar(32);default:'pending'"`
	ErrorMessage   string            `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt      time.Time         `json:"created_at" gorm:"autoCreateTime"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (TranslationRequest) TableName() string {
	return "translation_requests"
}

// NewTranslationRequest 创建处于 pending 状态的翻译请求
func NewTranslationRequest(key TranslationKey) *TranslationRequest {
	return &TranslationRequest{
		StoryID:        key.StoryID,
		ChapterNum:     key.ChapterNum,
		TargetLanguage: key.TargetLanguage,
		Status:         TranslationStatusPending,
		CreatedAt:      time.Now(),
	}
}

// Key 返回复合键
func (r *TranslationRequest) Key() TranslationKey {
	return TranslationKey{
		StoryID:        r.StoryID,
		ChapterNum:     r.ChapterNum,
		TargetLanguage: r.TargetLanguage,
	}
}

// Start 进入 processing 状态
func (r *TranslationRequest) Start() {
	now := time.Now()
	r.Status = TranslationStatusProcessing
	r.StartedAt = &now
}

// Complete 完成请求
func (r *TranslationRequest) Complete() {
	now := time.Now()
	r.Status = TranslationStatusCompleted
	r.CompletedAt = &now
}

// Fail 请求失败，错误信息随请求记录持久化
func (r *TranslationRequest) Fail(errMsg string) {
	now := time.Now()
	r.Status = TranslationStatusFailed
	r.ErrorMessage = errMsg
	r.CompletedAt = &now
}

// Translation 翻译结果
// 一旦写入即为该复合键的权威记录，历史请求仅供审计
type Translation struct {
	ID                string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID           string    `json:"story_id" gorm:"type:uuid;uniqueIndex:idx_translations_key;not null"`
	ChapterNum        int       `json:"chapter_num" gorm:"uniqueIndex:idx_translations_key;not null"`
	TargetLanguage    string    `json:"target_language" gorm:"type:varchar(16);uniqueIndex:idx_translations_key;not null"`
	TranslatedTitle   string    `json:"translated_title" gorm:"type:varchar(512)"`
	TranslatedContent string    `json:"translated_content" gorm:"type:text;not null"`
	TranslationNotes  string    `json:"translation_notes,omitempty" gorm:"type:text"`
	QualityScore      float64   `json:"quality_score" gorm:"default:0"`
	UsageCount        int64     `json:"usage_count" gorm:"default:0"`
	CreatedAt         time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Translation) TableName() string {
	return "translations"
}

// NewTranslation 创建翻译结果
func NewTranslation(key TranslationKey, title, content, notes string, quality float64) *Translation {
	return &Translation{
		StoryID:           key.StoryID,
		ChapterNum:        key.ChapterNum,
		TargetLanguage:    key.TargetLanguage,
		TranslatedTitle:   title,
		TranslatedContent: content,
		TranslationNotes:  notes,
		QualityScore:      quality,
		CreatedAt:         time.Now(),
	}
}

// Key 返回复合键
func (t *Translation) Key() TranslationKey {
	return TranslationKey{
		StoryID:        t.StoryID,
		ChapterNum:     t.ChapterNum,
		TargetLanguage: t.TargetLanguage,
	}
}
