package dto

import (
	"time"

	"storyloom-api/internal/domain/entity"
)

// TranslationRequestBody 翻译受理请求
type TranslationRequestBody struct {
	StoryID        string `json:"story_id" binding:"required,uuid"`
	ChapterNum     int    `json:"chapter_num" binding:"required,min=1"`
	TargetLanguage string `json:"target_language" binding:"required,max=16"`
}

// Key 转换为复合键
func (r *TranslationRequestBody) Key() entity.TranslationKey {
	return entity.TranslationKey{
		StoryID:        r.StoryID,
		ChapterNum:     r.ChapterNum,
		TargetLanguage: r.TargetLanguage,
	}
}

// TranslateContentRequest 原文同步翻译请求
// story_id/chapter_number 同时给出时结果会持久化
type TranslateContentRequest struct {
	Title          string `json:"title"`
	Content        string `json:"content" binding:"required"`
	TargetLanguage string `json:"target_language" binding:"required,max=16"`
	LanguageInfo   string `json:"language_info"`
	StoryID        string `json:"story_id"`
	ChapterNumber  int    `json:"chapter_number"`
}

// TranslationAcceptedResponse 翻译受理响应
type TranslationAcceptedResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

// TranslationStatusResponse 翻译状态响应
type TranslationStatusResponse struct {
	Status       string              `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Translation  *TranslationPayload `json:"translation,omitempty"`
}

// TranslationPayload 翻译内容
type TranslationPayload struct {
	StoryID           string  `json:"story_id"`
	ChapterNum        int     `json:"chapter_num"`
	TargetLanguage    string  `json:"target_language"`
	TranslatedTitle   string  `json:"translated_title,omitempty"`
	TranslatedContent string  `json:"translated_content"`
	TranslationNotes  string  `json:"translation_notes,omitempty"`
	QualityScore      float64 `json:"quality_score"`
	CreatedAt         string  `json:"created_at"`
}

// NewTranslationPayload 由实体构建翻译内容
func NewTranslationPayload(t *entity.Translation) *TranslationPayload {
	return &TranslationPayload{
		StoryID:           t.StoryID,
		ChapterNum:        t.ChapterNum,
		TargetLanguage:    t.TargetLanguage,
		TranslatedTitle:   t.TranslatedTitle,
		TranslatedContent: t.TranslatedContent,
		TranslationNotes:  t.TranslationNotes,
		QualityScore:      t.QualityScore,
		CreatedAt:         t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SweepResponse 过期翻译清理响应
type SweepResponse struct {
	Removed int64 `json:"removed"`
}
