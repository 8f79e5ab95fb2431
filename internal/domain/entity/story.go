// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// HistoryRole 会话历史条目角色
type HistoryRole string

const (
	HistoryRoleAssistant HistoryRole = "assistant"
	HistoryRoleUser      HistoryRole = "user"
)

// HistoryEntry 会话历史条目
// 派生数据：始终可以从已持久化的章节集合重建，章节序号升序且与章节一一对应
type HistoryEntry struct {
	Role    HistoryRole `json:"role"`
	Content string      `json:"content"`
}

// 成人内容判定使用的年龄分级
const AgeRatingAdult = "18+"

// Story 故事实体
type Story struct {
	ID                  string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID             string         `json:"owner_id" gorm:"type:varchar(128);index"`
	Title               string         `json:"title" gorm:"type:varchar(255);not null"`
	Fandom              string         `json:"fandom,omitempty" gorm:"type:varchar(255)"`
	Genre               string         `json:"genre,omitempty" gorm:"type:varchar(128)"`
	Characters          []string       `json:"characters,omitempty" gorm:"type:jsonb;serializer:json"`
	Topics              []string       `json:"topics,omitempty" gorm:"type:jsonb;serializer:json"`
	Theme               string         `json:"theme,omitempty" gorm:"type:text"`
	ContentWarnings     []string       `json:"content_warnings,omitempty" gorm:"type:jsonb;serializer:json"`
	AgeRating           string         `json:"age_rating,omitempty" gorm:"type:varchar(16)"`
	IsNSFW              bool           `json:"is_nsfw" gorm:"default:false"`
	IsPrivate           bool           `json:"is_private" gorm:"default:false"`
	ConversationHistory []HistoryEntry `json:"conversation_history,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt           time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Story) TableName() string {
	return "stories"
}

// NewStory 创建新故事
func NewStory(ownerID, title string) *Story {
	now := time.Now()
	return &Story{
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DeriveNSFW 根据年龄分级与内容警告推导成人标记
func (s *Story) DeriveNSFW() {
	if strings.TrimSpace(s.AgeRating) == AgeRatingAdult || len(s.ContentWarnings) > 0 {
		s.IsNSFW = true
	}
}

// HasHistory 检查是否已有会话历史
func (s *Story) HasHistory() bool {
	return len(s.ConversationHistory) > 0
}

// AppendHistory 追加会话历史条目
func (s *Story) AppendHistory(entries ...HistoryEntry) {
	s.ConversationHistory = append(s.ConversationHistory, entries...)
	s.UpdatedAt = time.Now()
}
