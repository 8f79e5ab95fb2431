package dto

import (
	"time"

	"storyloom-api/internal/domain/entity"
)

// CreateStoryRequest 创建故事请求
type CreateStoryRequest struct {
	Title           string   `json:"title" binding:"required,max=255"`
	Fandom          string   `json:"fandom,omitempty" binding:"max=255"`
	Genre           string   `json:"genre,omitempty" binding:"max=128"`
	Characters      []string `json:"characters,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	Theme           string   `json:"theme,omitempty"`
	ContentWarnings []string `json:"content_warnings,omitempty"`
	AgeRating       string   `json:"age_rating,omitempty" binding:"max=16"`
	IsPrivate       bool     `json:"is_private,omitempty"`
	Premise         string   `json:"premise" binding:"required"`
}

// ToEntity 转换为故事实体
func (r *CreateStoryRequest) ToEntity(ownerID string) *entity.Story {
	story := entity.NewStory(ownerID, r.Title)
	story.Fandom = r.Fandom
	story.Genre = r.Genre
	story.Characters = r.Characters
	story.Topics = r.Topics
	story.Theme = r.Theme
	story.ContentWarnings = r.ContentWarnings
	story.AgeRating = r.AgeRating
	story.IsPrivate = r.IsPrivate
	story.DeriveNSFW()
	return story
}

// StoryResponse 故事响应
type StoryResponse struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id,omitempty"`
	Title           string   `json:"title"`
	Fandom          string   `json:"fandom,omitempty"`
	Genre           string   `json:"genre,omitempty"`
	Characters      []string `json:"characters,omitempty"`
	Topics          []string `json:"topics,omitempty"`
	Theme           string   `json:"theme,omitempty"`
	ContentWarnings []string `json:"content_warnings,omitempty"`
	AgeRating       string   `json:"age_rating,omitempty"`
	IsNSFW          bool     `json:"is_nsfw"`
	IsPrivate       bool     `json:"is_private"`
	ChapterCount    int64    `json:"chapter_count"`
	CreatedAt       string   `json:"created_at"`
	JobID           string   `json:"job_id,omitempty"`
}

// NewStoryResponse 由实体构建故事响应
func NewStoryResponse(story *entity.Story, chapterCount int64) *StoryResponse {
	return &StoryResponse{
		ID:              story.ID,
		OwnerID:         story.OwnerID,
		Title:           story.Title,
		Fandom:          story.Fandom,
		Genre:           story.Genre,
		Characters:      story.Characters,
		Topics:          story.Topics,
		Theme:           story.Theme,
		ContentWarnings: story.ContentWarnings,
		AgeRating:       story.AgeRating,
		IsNSFW:          story.IsNSFW,
		IsPrivate:       story.IsPrivate,
		ChapterCount:    chapterCount,
		CreatedAt:       story.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// RateChapterRequest 章节评分请求
type RateChapterRequest struct {
	Score   int      `json:"score" binding:"required,min=1,max=5"`
	Reasons []string `json:"reasons,omitempty"`
	Comment string   `json:"comment,omitempty" binding:"max=2000"`
}
