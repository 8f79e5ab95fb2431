// Package entity 定义领域实体
package entity

import (
	"strings"
	"time"
)

// 阅读速度估算基准（词/分钟）
const readingWordsPerMinute = 200

// GenerationMetadata 生成元数据
type GenerationMetadata struct {
	Provider         string  `json:"provider,omitempty"`
	Model            string  `json:"model,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	GeneratedAt      string  `json:"generated_at,omitempty"`
}

// Chapter 章节实体
// 创建后不可变：修正只能通过新章节或核心之外的编辑路径完成
type Chapter struct {
	ID                 string              `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoryID            string              `json:"story_id" gorm:"type:uuid;index:idx_chapters_story_seq,unique;not null"`
	SeqNum             int                 `json:"seq_num" gorm:"index:idx_chapters_story_seq,unique;not null"`
	Title              string              `json:"title,omitempty" gorm:"type:varchar(255)"`
	ContentText        string              `json:"content_text" gorm:"type:text;not null"`
	WordCount          int                 `json:"word_count" gorm:"default:0"`
	ReadingTimeMin     int                 `json:"reading_time_min" gorm:"default:0"`
	GenerationMetadata *GenerationMetadata `json:"generation_metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt          time.Time           `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建新章节，字数与阅读时长随内容一次性计算
func NewChapter(storyID string, seqNum int, title, content string) *Chapter {
	words := CountWords(content)
	readingTime := words / readingWordsPerMinute
	if words > 0 && readingTime == 0 {
		readingTime = 1
	}
	return &Chapter{
		StoryID:        storyID,
		SeqNum:         seqNum,
		Title:          title,
		ContentText:    content,
		WordCount:      words,
		ReadingTimeMin: readingTime,
		CreatedAt:      time.Now(),
	}
}

// CountWords 统计空白分隔的词数
func CountWords(s string) int {
	return len(strings.Fields(s))
}
