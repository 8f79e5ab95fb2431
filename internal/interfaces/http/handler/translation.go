package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"storyloom-api/internal/application/translation"
	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/interfaces/http/dto"
	"storyloom-api/pkg/logger"
)

// TranslationHandler 翻译处理器
type TranslationHandler struct {
	svc *translation.Service
}

// NewTranslationHandler 创建翻译处理器
func NewTranslationHandler(svc *translation.Service) *TranslationHandler {
	return &TranslationHandler{svc: svc}
}

// Request 受理异步翻译请求（202）
func (h *TranslationHandler) Request(c *gin.Context) {
	var body dto.TranslationRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	req, err := h.svc.Request(c.Request.Context(), body.Key())
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Accepted(c, dto.TranslationAcceptedResponse{
		RequestID: req.ID,
		Status:    string(req.Status),
		StatusURL: fmt.Sprintf(
			"/v1/translations/status?story_id=%s&chapter_num=%d&target_language=%s",
			req.StoryID, req.ChapterNum, req.TargetLanguage,
		),
	})
}

// Status 查询翻译状态
func (h *TranslationHandler) Status(c *gin.Context) {
	key, ok := keyFromQuery(c)
	if !ok {
		return
	}

	result, err := h.svc.Status(c.Request.Context(), key)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	resp := dto.TranslationStatusResponse{Status: string(result.Status)}
	if result.Request != nil {
		resp.ErrorMessage = result.Request.ErrorMessage
	}
	if result.Translation != nil {
		resp.Translation = dto.NewTranslationPayload(result.Translation)
	}

	dto.Success(c, resp)
}

// Translate 同步翻译（命中缓存即返回，未命中内联翻译）
func (h *TranslationHandler) Translate(c *gin.Context) {
	var body dto.TranslateContentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.TranslateContent(c.Request.Context(), translation.ContentInput{
		Title:          body.Title,
		Content:        body.Content,
		TargetLanguage: body.TargetLanguage,
		LanguageInfo:   body.LanguageInfo,
		StoryID:        body.StoryID,
		ChapterNum:     body.ChapterNumber,
	})
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Success(c, dto.NewTranslationPayload(result))
}

// SweepExpired 清理过期翻译
func (h *TranslationHandler) SweepExpired(c *gin.Context) {
	deleted, err := h.svc.Sweep(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "translation sweep failed", err)
		dto.InternalError(c, "failed to sweep expired translations")
		return
	}

	dto.Success(c, dto.SweepResponse{Removed: deleted})
}

func keyFromQuery(c *gin.Context) (entity.TranslationKey, bool) {
	storyID := c.Query("story_id")
	targetLanguage := c.Query("target_language")
	chapterNum, err := strconv.Atoi(c.Query("chapter_num"))
	if storyID == "" || targetLanguage == "" || err != nil || chapterNum < 1 {
		dto.BadRequest(c, "story_id, chapter_num and target_language are required")
		return entity.TranslationKey{}, false
	}
	return entity.TranslationKey{
		StoryID:        storyID,
		ChapterNum:     chapterNum,
		TargetLanguage: targetLanguage,
	}, true
}
