package generation

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-api/internal/config"
	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
	"storyloom-api/internal/domain/service"
	"storyloom-api/internal/infrastructure/llm"
	apperrors "storyloom-api/pkg/errors"
	"storyloom-api/pkg/logger"
	"storyloom-api/pkg/metrics"
)

// 进度阶段
const (
	StepPlanning   = "planning"
	StepWriting    = "writing"
	StepFinalizing = "finalizing"
)

// ProgressFunc 进度回调，percent 单调不减
type ProgressFunc func(percent int, step string)

// ChapterGenerator 章节生成端口
type ChapterGenerator interface {
	Generate(ctx context.Context, in *llm.ChapterInput, onWords func(words int)) (*llm.ChapterOutput, error)
}

// Orchestrator 章节生成编排器
// 持久化顺序约定：先写章节再写会话历史，崩溃后历史总能从章节重建
type Orchestrator struct {
	stories   repository.StoryRepository
	chapters  repository.ChapterRepository
	history   *HistoryManager
	generator ChapterGenerator
	cfg       *config.GenerationConfig
}

// NewOrchestrator 创建生成编排器
func NewOrchestrator(
	stories repository.StoryRepository,
	chapters repository.ChapterRepository,
	history *HistoryManager,
	generator ChapterGenerator,
	cfg *config.GenerationConfig,
) *Orchestrator {
	return &Orchestrator{
		stories:   stories,
		chapters:  chapters,
		history:   history,
		generator: generator,
		cfg:       cfg,
	}
}

// GenerateFirstChapter 从开篇引导生成第一章
// 故事已有章节时拒绝，避免并发触发产生重复首章
// 返回新章节和更新后的会话历史，持有连接的调用方无需回查
func (o *Orchestrator) GenerateFirstChapter(ctx context.Context, storyID, premise string, onProgress ProgressFunc) (*entity.Chapter, []entity.HistoryEntry, error) {
	return o.generate(ctx, storyID, premise, "first", onProgress)
}

// ContinueStory 结合读者反馈续写下一章
func (o *Orchestrator) ContinueStory(ctx context.Context, storyID, feedback string, onProgress ProgressFunc) (*entity.Chapter, []entity.HistoryEntry, error) {
	return o.generate(ctx, storyID, feedback, "continue", onProgress)
}

func (o *Orchestrator) generate(ctx context.Context, storyID, directive, kind string, onProgress ProgressFunc) (*entity.Chapter, []entity.HistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "Orchestrator.generate",
		trace.WithAttributes(
			attribute.String("story.id", storyID),
			attribute.String("generation.kind", kind),
		))
	defer span.End()

	ctx = logger.WithContext(ctx, logger.StoryIDKey, storyID)
	start := time.Now()

	report := newProgressReporter(onProgress)
	report(2, StepPlanning)

	story, err := o.stories.GetByID(ctx, storyID)
	if err != nil {
		metrics.ChapterGenerationTotal.WithLabelValues(kind, "error").Inc()
		return nil, nil, err
	}
	if story == nil {
		return nil, nil, apperrors.ErrStoryNotFound
	}

	count, err := o.chapters.CountByStory(ctx, storyID)
	if err != nil {
		metrics.ChapterGenerationTotal.WithLabelValues(kind, "error").Inc()
		return nil, nil, err
	}
	if kind == "first" && count > 0 {
		return nil, nil, apperrors.New(apperrors.CodeConflict, "story already has chapters")
	}
	if kind == "continue" && count == 0 {
		return nil, nil, apperrors.New(apperrors.CodeInvalidParam, "story has no chapters to continue")
	}
	seqNum := int(count) + 1
	ctx = logger.WithContext(ctx, logger.ChapterKey, seqNum)

	report(10, StepPlanning)

	history, err := o.history.EnsureHistory(ctx, story)
	if err != nil {
		metrics.ChapterGenerationTotal.WithLabelValues(kind, "error").Inc()
		return nil, nil, err
	}

	report(40, StepPlanning)

	target := o.cfg.TargetWordCount
	out, err := o.generator.Generate(ctx, &llm.ChapterInput{
		Story:           story,
		History:         history,
		Directive:       directive,
		TargetWordCount: target,
	}, func(words int) {
		// 写作阶段按已生成词数映射进度，封顶 99
		pct := 50 + words*49/target
		if pct > 99 {
			pct = 99
		}
		report(pct, StepWriting)
	})
	if err != nil {
		span.RecordError(err)
		metrics.ChapterGenerationTotal.WithLabelValues(kind, "error").Inc()
		return nil, nil, apperrors.Wrap(err, apperrors.CodeGenerationFailed, "chapter generation failed")
	}

	report(99, StepWriting)

	parsed := ParseChapterMarkup(out.Raw)
	if utf8.RuneCountInString(parsed.Body) < o.cfg.MinChapterRunes {
		logger.Warn(ctx, "generated chapter below minimum length",
			"rune_count", utf8.RuneCountInString(parsed.Body),
			"min_runes", o.cfg.MinChapterRunes,
		)
		metrics.ChapterGenerationTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, nil, apperrors.ErrContentTooShort.WithDetail(
			fmt.Sprintf("chapter %d produced %d runes", seqNum, utf8.RuneCountInString(parsed.Body)),
		)
	}

	title := parsed.Title
	if title == "" {
		title = fmt.Sprintf("Chapter %d", seqNum)
	}

	chapter := entity.NewChapter(storyID, seqNum, title, parsed.Body)
	chapter.GenerationMetadata = &entity.GenerationMetadata{
		PromptTokens:     out.PromptTokens,
		CompletionTokens: out.CompletionTokens,
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	// 历史条目与章节 1:1，指令只进生成调用，不进历史
	story.AppendHistory(service.HistoryEntryForChapter(chapter))

	// 私密故事只返回结果，不落库
	if !story.IsPrivate {
		if err := o.persist(ctx, story, chapter); err != nil {
			metrics.ChapterGenerationTotal.WithLabelValues(kind, "error").Inc()
			return nil, nil, err
		}
	}

	metrics.ChapterGenerationTotal.WithLabelValues(kind, "success").Inc()
	metrics.ChapterGenerationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	metrics.ChapterWordCount.Observe(float64(chapter.WordCount))

	logger.Info(ctx, "chapter generated",
		"seq_num", chapter.SeqNum,
		"word_count", chapter.WordCount,
		"persisted", !story.IsPrivate,
	)

	report(100, StepFinalizing)
	return chapter, story.ConversationHistory, nil
}

// persist 先写章节再写历史
// 两次写之间崩溃会留下过期历史，下次生成前的重建路径会纠正
func (o *Orchestrator) persist(ctx context.Context, story *entity.Story, chapter *entity.Chapter) error {
	if err := o.chapters.Create(ctx, chapter); err != nil {
		return fmt.Errorf("failed to persist chapter: %w", err)
	}
	if err := o.stories.UpdateConversationHistory(ctx, story.ID, story.ConversationHistory); err != nil {
		return fmt.Errorf("failed to persist conversation history: %w", err)
	}
	return nil
}

// newProgressReporter 包装回调并强制单调不减
func newProgressReporter(onProgress ProgressFunc) ProgressFunc {
	last := -1
	return func(percent int, step string) {
		if onProgress == nil {
			return
		}
		if percent <= last {
			return
		}
		last = percent
		onProgress(percent, step)
	}
}
