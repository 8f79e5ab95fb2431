package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storyloom-api/internal/application/generation"
	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/domain/repository"
	"storyloom-api/internal/infrastructure/persistence/redis"
	"storyloom-api/internal/interfaces/http/dto"
	"storyloom-api/pkg/logger"
)

// 章节不可变，缓存可以长期持有
const chapterCacheTTL = time.Hour

// StoryHandler 故事与章节处理器
type StoryHandler struct {
	stories   repository.StoryRepository
	chapters  repository.ChapterRepository
	scheduler *generation.Scheduler
	cache     *redis.Cache
}

// NewStoryHandler 创建故事处理器
func NewStoryHandler(
	stories repository.StoryRepository,
	chapters repository.ChapterRepository,
	scheduler *generation.Scheduler,
	cache *redis.Cache,
) *StoryHandler {
	return &StoryHandler{
		stories:   stories,
		chapters:  chapters,
		scheduler: scheduler,
		cache:     cache,
	}
}

// Create 创建故事
// 公开故事创建成功后触发首章生成任务（触发即忘）
func (h *StoryHandler) Create(c *gin.Context) {
	var req dto.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	story := req.ToEntity(c.GetString("owner_id"))
	if err := h.stories.Create(c.Request.Context(), story); err != nil {
		logger.Error(c.Request.Context(), "failed to create story", err)
		dto.InternalError(c, "failed to create story")
		return
	}

	resp := dto.NewStoryResponse(story, 0)
	if !story.IsPrivate {
		resp.JobID = h.scheduler.TriggerFirstChapter(c.Request.Context(), story.ID, req.Premise)
	}

	dto.Created(c, resp)
}

// Get 获取故事
func (h *StoryHandler) Get(c *gin.Context) {
	storyID := c.Param("sid")

	story, err := h.stories.GetByID(c.Request.Context(), storyID)
	if err != nil {
		dto.InternalError(c, "failed to get story")
		return
	}
	if story == nil {
		dto.NotFound(c, "story not found")
		return
	}

	count, err := h.chapters.CountByStory(c.Request.Context(), storyID)
	if err != nil {
		dto.InternalError(c, "failed to count chapters")
		return
	}

	dto.Success(c, dto.NewStoryResponse(story, count))
}

// ListChapters 获取故事章节列表
func (h *StoryHandler) ListChapters(c *gin.Context) {
	storyID := c.Param("sid")

	story, err := h.stories.GetByID(c.Request.Context(), storyID)
	if err != nil {
		dto.InternalError(c, "failed to get story")
		return
	}
	if story == nil {
		dto.NotFound(c, "story not found")
		return
	}

	chapters, err := h.chapters.ListByStory(c.Request.Context(), storyID)
	if err != nil {
		dto.InternalError(c, "failed to list chapters")
		return
	}

	dto.Success(c, dto.NewChapterSummaries(chapters))
}

// GetChapter 获取单章
// 章节创建后不可变，读路径走 Redis 缓存
func (h *StoryHandler) GetChapter(c *gin.Context) {
	storyID := c.Param("sid")
	seqNum, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seqNum < 1 {
		dto.BadRequest(c, "invalid chapter number")
		return
	}

	ctx := c.Request.Context()
	cacheKey := redis.ChapterKey(storyID, seqNum)

	var cached entity.Chapter
	if hit, cacheErr := h.cache.GetJSON(ctx, cacheKey, &cached); cacheErr == nil && hit {
		dto.Success(c, dto.NewChapterResponse(&cached))
		return
	}

	chapter, err := h.chapters.GetByStoryAndSeq(ctx, storyID, seqNum)
	if err != nil {
		dto.InternalError(c, "failed to get chapter")
		return
	}
	if chapter == nil {
		dto.NotFound(c, "chapter not found")
		return
	}

	if err := h.cache.SetJSON(ctx, cacheKey, chapter, chapterCacheTTL); err != nil {
		logger.Warn(ctx, "failed to cache chapter", "key", cacheKey, "error", err)
	}

	dto.Success(c, dto.NewChapterResponse(chapter))
}

// RateChapter 章节评分
// 评分受理后触发下一章生成任务，评分内容折叠进续写指令
func (h *StoryHandler) RateChapter(c *gin.Context) {
	storyID := c.Param("sid")
	seqNum, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seqNum < 1 {
		dto.BadRequest(c, "invalid chapter number")
		return
	}

	var req dto.RateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	chapter, err := h.chapters.GetByStoryAndSeq(ctx, storyID, seqNum)
	if err != nil {
		dto.InternalError(c, "failed to get chapter")
		return
	}
	if chapter == nil {
		dto.NotFound(c, "chapter not found")
		return
	}

	jobID := h.scheduler.TriggerNextChapterOnRating(ctx, storyID, generation.RatingFeedback{
		Score:   req.Score,
		Reasons: req.Reasons,
		Comment: req.Comment,
	})

	dto.Accepted(c, gin.H{"job_id": jobID})
}
