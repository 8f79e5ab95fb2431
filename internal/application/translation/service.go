package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-api/internal/config"
	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
	"storyloom-api/internal/infrastructure/llm"
	"storyloom-api/internal/infrastructure/persistence/localcache"
	"storyloom-api/internal/infrastructure/messaging"
	apperrors "storyloom-api/pkg/errors"
	"storyloom-api/pkg/logger"
	"storyloom-api/pkg/metrics"
)

var tracer = otel.Tracer("translation")

// Translator 翻译端口
type Translator interface {
	Translate(ctx context.Context, in *llm.TranslateInput) (*llm.TranslateOutput, error)
}

// JobPublisher 翻译任务发布端口
type JobPublisher interface {
	PublishTranslationJob(ctx context.Context, job *messaging.TranslationJobMessage) (string, error)
}

// StatusResult 翻译状态查询结果
type StatusResult struct {
	Status      entity.TranslationStatus
	Request     *entity.TranslationRequest
	Translation *entity.Translation
}

// Service 翻译服务
// 请求状态机：pending -> processing -> completed/failed
// 缓存两层：进程内 TTL 缓存在前，持久层翻译表在后
type Service struct {
	requests     repository.TranslationRequestRepository
	translations repository.TranslationRepository
	stories      repository.StoryRepository
	chapters     repository.ChapterRepository
	translator   Translator
	publisher    JobPublisher
	local        *localcache.Cache
	cfg          *config.TranslationConfig
	now          func() time.Time
}

// NewService 创建翻译服务
func NewService(
	requests repository.TranslationRequestRepository,
	translations repository.TranslationRepository,
	stories repository.StoryRepository,
	chapters repository.ChapterRepository,
	translator Translator,
	publisher JobPublisher,
	local *localcache.Cache,
	cfg *config.TranslationConfig,
) *Service {
	return &Service{
		requests:     requests,
		translations: translations,
		stories:      stories,
		chapters:     chapters,
		translator:   translator,
		publisher:    publisher,
		local:        local,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Request 受理异步翻译请求
// 同一复合键的非终态请求只允许一个，已有成品译文的键也不再受理
func (s *Service) Request(ctx context.Context, key entity.TranslationKey) (*entity.TranslationRequest, error) {
	ctx, span := tracer.Start(ctx, "translation.Request",
		trace.WithAttributes(
			attribute.String("story.id", key.StoryID),
			attribute.Int("chapter.num", key.ChapterNum),
			attribute.String("translation.target_language", key.TargetLanguage),
		))
	defer span.End()

	if _, err := s.loadChapter(ctx, key); err != nil {
		return nil, err
	}

	existing, err := s.translations.GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing translation: %w", err)
	}
	if existing != nil {
		return nil, apperrors.ErrDuplicateRequest.WithDetail("translation already completed for this chapter and language")
	}

	req := entity.NewTranslationRequest(key)
	if err := s.requests.CreateIfAbsent(ctx, req); err != nil {
		return nil, err
	}

	// 触发即忘：入队失败由消费侧的待处理扫描兜底，不影响受理结果
	if _, err := s.publisher.PublishTranslationJob(ctx, &messaging.TranslationJobMessage{
		RequestID:      req.ID,
		StoryID:        key.StoryID,
		ChapterNum:     key.ChapterNum,
		TargetLanguage: key.TargetLanguage,
	}); err != nil {
		logger.Error(ctx, "failed to enqueue translation job", err, "request_id", req.ID)
	}

	logger.Info(ctx, "translation request accepted",
		"request_id", req.ID,
		"story_id", key.StoryID,
		"chapter_num", key.ChapterNum,
		"target_language", key.TargetLanguage,
	)
	return req, nil
}

// Process 执行一条翻译请求（worker 路径）
// 翻译调用受固定超时约束，超时请求进入 failed 终态
func (s *Service) Process(ctx context.Context, requestID string) error {
	ctx, span := tracer.Start(ctx, "translation.Process",
		trace.WithAttributes(attribute.String("translation.request_id", requestID)))
	defer span.End()

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return apperrors.New(apperrors.CodeRequestNotFound, "translation request not found")
	}
	if req.Status.IsTerminal() {
		logger.Info(ctx, "translation request already terminal", "request_id", requestID, "status", req.Status)
		return nil
	}

	req.Start()
	if err := s.requests.Update(ctx, req); err != nil {
		return err
	}

	translation, err := s.translate(ctx, req.Key())
	if err != nil {
		span.RecordError(err)
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || apperrors.IsCode(err, apperrors.CodeTranslationTimeout) {
			msg = apperrors.ErrTranslationTimeout.Message
			metrics.TranslationTotal.WithLabelValues(req.TargetLanguage, "timeout").Inc()
		} else {
			metrics.TranslationTotal.WithLabelValues(req.TargetLanguage, "error").Inc()
		}
		req.Fail(msg)
		if updateErr := s.requests.Update(ctx, req); updateErr != nil {
			logger.Error(ctx, "failed to record translation failure", updateErr, "request_id", requestID)
		}
		return err
	}

	req.Complete()
	if err := s.requests.Update(ctx, req); err != nil {
		return err
	}

	metrics.TranslationTotal.WithLabelValues(req.TargetLanguage, "success").Inc()
	logger.Info(ctx, "translation completed",
		"request_id", requestID,
		"quality_score", translation.QualityScore,
	)
	return nil
}

// Status 查询复合键的翻译状态
// 优先级：已有持久化翻译 > 非终态请求 > 最近一次请求 > not_requested
func (s *Service) Status(ctx context.Context, key entity.TranslationKey) (*StatusResult, error) {
	ctx, span := tracer.Start(ctx, "translation.Status")
	defer span.End()

	translation, err := s.translations.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if translation != nil {
		return &StatusResult{
			Status:      entity.TranslationStatusCompleted,
			Translation: translation,
		}, nil
	}

	active, err := s.requests.GetActiveByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return &StatusResult{Status: active.Status, Request: active}, nil
	}

	latest, err := s.requests.GetLatestByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return &StatusResult{Status: latest.Status, Request: latest}, nil
	}

	return &StatusResult{Status: entity.TranslationStatusNotRequested}, nil
}

// Get 获取复合键的翻译，走两层缓存
// 本地命中直接返回，持久层命中回填本地并累加使用计数
func (s *Service) Get(ctx context.Context, key entity.TranslationKey) (*entity.Translation, error) {
	ctx, span := tracer.Start(ctx, "translation.Get")
	defer span.End()

	cacheKey := s.cacheKey(key)
	if raw, ok := s.local.Get(cacheKey); ok {
		metrics.TranslationCacheHits.WithLabelValues("local", "hit").Inc()
		var translation entity.Translation
		if err := json.Unmarshal([]byte(raw), &translation); err == nil {
			return &translation, nil
		}
		// 本地条目损坏，淘汰后走持久层
		s.local.Evict(cacheKey)
	}
	metrics.TranslationCacheHits.WithLabelValues("local", "miss").Inc()

	translation, err := s.translations.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if translation == nil {
		metrics.TranslationCacheHits.WithLabelValues("durable", "miss").Inc()
		return nil, nil
	}
	metrics.TranslationCacheHits.WithLabelValues("durable", "hit").Inc()

	if err := s.translations.IncrementUsage(ctx, translation.ID); err != nil {
		logger.Warn(ctx, "failed to increment translation usage", "translation_id", translation.ID, "error", err)
	}
	s.cacheLocal(cacheKey, translation)
	return translation, nil
}

// TranslateNow 同步翻译路径
// 命中任一缓存层直接返回，未命中时内联翻译并写入两层
func (s *Service) TranslateNow(ctx context.Context, key entity.TranslationKey) (*entity.Translation, error) {
	ctx, span := tracer.Start(ctx, "translation.TranslateNow")
	defer span.End()

	cached, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	return s.translate(ctx, key)
}

// ContentInput 原文同步翻译输入
// 携带复合键时结果会落持久层，否则只进本地缓存
type ContentInput struct {
	Title          string
	Content        string
	TargetLanguage string
	LanguageInfo   string
	StoryID        string
	ChapterNum     int
}

// TranslateContent 按原文同步翻译
// 异步处理器和内部调用方使用，不要求内容已作为章节持久化
func (s *Service) TranslateContent(ctx context.Context, in ContentInput) (*entity.Translation, error) {
	ctx, span := tracer.Start(ctx, "translation.TranslateContent",
		trace.WithAttributes(attribute.String("translation.target_language", in.TargetLanguage)))
	defer span.End()

	if in.StoryID != "" && in.ChapterNum > 0 {
		return s.TranslateNow(ctx, entity.TranslationKey{
			StoryID:        in.StoryID,
			ChapterNum:     in.ChapterNum,
			TargetLanguage: in.TargetLanguage,
		})
	}

	cacheKey := localcache.ContentKey("translation", "inline",
		in.LanguageInfo, in.TargetLanguage, in.Title, in.Content)
	if raw, ok := s.local.Get(cacheKey); ok {
		metrics.TranslationCacheHits.WithLabelValues("local", "hit").Inc()
		var translation entity.Translation
		if err := json.Unmarshal([]byte(raw), &translation); err == nil {
			return &translation, nil
		}
		s.local.Evict(cacheKey)
	}
	metrics.TranslationCacheHits.WithLabelValues("local", "miss").Inc()

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	start := s.now()
	out, err := s.translator.Translate(callCtx, &llm.TranslateInput{
		SourceLanguage: in.LanguageInfo,
		TargetLanguage: in.TargetLanguage,
		Title:          in.Title,
		Content:        in.Content,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrTranslationTimeout.WithError(err)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeTranslationFailed, "translation failed")
	}
	metrics.TranslationDuration.WithLabelValues(in.TargetLanguage).Observe(s.now().Sub(start).Seconds())

	quality := QualityScore(in.Content, out.Content)
	metrics.TranslationQualityScore.Observe(quality)

	translation := entity.NewTranslation(
		entity.TranslationKey{TargetLanguage: in.TargetLanguage},
		out.Title, out.Content, out.Notes, quality,
	)
	s.cacheLocal(cacheKey, translation)
	return translation, nil
}

// Sweep 清理超过保留期的翻译
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "translation.Sweep")
	defer span.End()

	cutoff := s.now().Add(-s.cfg.Retention)
	deleted, err := s.translations.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "expired translations swept", "deleted", deleted, "cutoff", cutoff)
	return deleted, nil
}

// translate 执行翻译并持久化到两层缓存
func (s *Service) translate(ctx context.Context, key entity.TranslationKey) (*entity.Translation, error) {
	chapter, err := s.loadChapter(ctx, key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()

	start := s.now()
	out, err := s.translator.Translate(ctx, &llm.TranslateInput{
		TargetLanguage: key.TargetLanguage,
		Title:          chapter.Title,
		Content:        chapter.ContentText,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrTranslationTimeout.WithError(err)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeTranslationFailed, "translation failed")
	}
	metrics.TranslationDuration.WithLabelValues(key.TargetLanguage).Observe(s.now().Sub(start).Seconds())

	quality := QualityScore(chapter.ContentText, out.Content)
	metrics.TranslationQualityScore.Observe(quality)

	translation := entity.NewTranslation(key, out.Title, out.Content, out.Notes, quality)
	if err := s.translations.Save(ctx, translation); err != nil {
		return nil, err
	}

	// Save 为 upsert，回读以获得权威记录 ID
	saved, err := s.translations.GetByKey(ctx, key)
	if err == nil && saved != nil {
		translation = saved
	}

	s.cacheLocal(s.cacheKey(key), translation)
	return translation, nil
}

func (s *Service) loadChapter(ctx context.Context, key entity.TranslationKey) (*entity.Chapter, error) {
	story, err := s.stories.GetByID(ctx, key.StoryID)
	if err != nil {
		return nil, err
	}
	if story == nil {
		return nil, apperrors.ErrStoryNotFound
	}

	chapter, err := s.chapters.GetByStoryAndSeq(ctx, key.StoryID, key.ChapterNum)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, apperrors.New(apperrors.CodeChapterNotFound, "chapter not found")
	}
	return chapter, nil
}

func (s *Service) cacheKey(key entity.TranslationKey) string {
	return localcache.ContentKey("translation", key.StoryID, fmt.Sprint(key.ChapterNum), key.TargetLanguage)
}

func (s *Service) cacheLocal(cacheKey string, translation *entity.Translation) {
	data, err := json.Marshal(translation)
	if err != nil {
		return
	}
	s.local.Set(cacheKey, string(data))
}
