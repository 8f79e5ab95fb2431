package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storyloom-api/internal/infrastructure/messaging"
	"storyloom-api/pkg/logger"
)

// JobPublisher 任务发布端口
type JobPublisher interface {
	PublishChapterJob(ctx context.Context, msgType string, job *messaging.ChapterJobMessage) (string, error)
	QueueHealth(ctx context.Context) ([]messaging.StreamHealth, error)
}

// RatingFeedback 读者对章节的评分反馈
type RatingFeedback struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
	Comment string   `json:"comment,omitempty"`
}

// Scheduler 生成任务调度器
// 触发即忘：入队成功与否不影响触发方的主流程结果
type Scheduler struct {
	publisher JobPublisher
}

// NewScheduler 创建任务调度器
func NewScheduler(publisher JobPublisher) *Scheduler {
	return &Scheduler{publisher: publisher}
}

// TriggerFirstChapter 触发首章生成任务
func (s *Scheduler) TriggerFirstChapter(ctx context.Context, storyID, premise string) string {
	jobID := uuid.NewString()
	_, err := s.publisher.PublishChapterJob(ctx, messaging.MsgTypeFirstChapter, &messaging.ChapterJobMessage{
		JobID:     jobID,
		StoryID:   storyID,
		Directive: premise,
	})
	if err != nil {
		logger.Error(ctx, "failed to enqueue first chapter job", err, "story_id", storyID, "job_id", jobID)
		return ""
	}

	logger.Info(ctx, "first chapter job enqueued", "story_id", storyID, "job_id", jobID)
	return jobID
}

// TriggerNextChapterOnRating 评分落地后触发续写任务
// 评分与理由折叠进续写指令，作为下一章的读者反馈
func (s *Scheduler) TriggerNextChapterOnRating(ctx context.Context, storyID string, fb RatingFeedback) string {
	jobID := uuid.NewString()
	_, err := s.publisher.PublishChapterJob(ctx, messaging.MsgTypeNextChapter, &messaging.ChapterJobMessage{
		JobID:     jobID,
		StoryID:   storyID,
		Directive: BuildContinuationDirective(fb),
	})
	if err != nil {
		logger.Error(ctx, "failed to enqueue next chapter job", err, "story_id", storyID, "job_id", jobID)
		return ""
	}

	logger.Info(ctx, "next chapter job enqueued", "story_id", storyID, "job_id", jobID)
	return jobID
}

// QueueHealth 查询任务流积压情况
func (s *Scheduler) QueueHealth(ctx context.Context) ([]messaging.StreamHealth, error) {
	return s.publisher.QueueHealth(ctx)
}

// BuildContinuationDirective 将评分反馈拼装为续写指令
func BuildContinuationDirective(fb RatingFeedback) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The reader rated the previous chapter %d out of 5.", fb.Score)
	if len(fb.Reasons) > 0 {
		fmt.Fprintf(&sb, " They highlighted: %s.", strings.Join(fb.Reasons, "; "))
	}
	if strings.TrimSpace(fb.Comment) != "" {
		fmt.Fprintf(&sb, " Their comment: %q.", strings.TrimSpace(fb.Comment))
	}
	sb.WriteString(" Write the next chapter, taking this feedback into account while keeping the story consistent.")
	return sb.String()
}
