package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"storyloom-api/internal/application/generation"
	"storyloom-api/internal/domain/entity"
	"storyloom-api/internal/interfaces/http/dto"
	apperrors "storyloom-api/pkg/errors"
	"storyloom-api/pkg/logger"
)

// GenerationHandler 章节生成处理器（流式）
type GenerationHandler struct {
	orchestrator *generation.Orchestrator
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(orchestrator *generation.Orchestrator) *GenerationHandler {
	return &GenerationHandler{orchestrator: orchestrator}
}

// progressFrame NDJSON 进度帧
type progressFrame struct {
	Progress int    `json:"progress"`
	Step     string `json:"step"`
}

// resultFrame NDJSON 结果帧，携带章节和更新后的会话历史
type resultFrame struct {
	Result *dto.GenerationResult `json:"result"`
}

// errorFrame NDJSON 错误帧
type errorFrame struct {
	Error *dto.ErrorDetail `json:"error"`
}

// GenerateFirstChapter 流式生成首章
func (h *GenerationHandler) GenerateFirstChapter(c *gin.Context) {
	var req dto.GenerateChapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	h.stream(c, func(ctx context.Context, onProgress generation.ProgressFunc) (*entity.Chapter, []entity.HistoryEntry, error) {
		return h.orchestrator.GenerateFirstChapter(ctx, c.Param("sid"), req.Premise, onProgress)
	})
}

// ContinueStory 流式续写下一章
func (h *GenerationHandler) ContinueStory(c *gin.Context) {
	var req dto.ContinueStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	h.stream(c, func(ctx context.Context, onProgress generation.ProgressFunc) (*entity.Chapter, []entity.HistoryEntry, error) {
		return h.orchestrator.ContinueStory(ctx, c.Param("sid"), req.Feedback, onProgress)
	})
}

// stream 以 NDJSON 逐帧推送进度，最后一帧是结果或错误
// 生成一旦开始就不因客户端断开而中止，断开后仅停止推帧
func (h *GenerationHandler) stream(c *gin.Context, run func(ctx context.Context, onProgress generation.ProgressFunc) (*entity.Chapter, []entity.HistoryEntry, error)) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	flusher, _ := c.Writer.(http.Flusher)
	clientGone := c.Request.Context().Done()
	disconnected := false

	writeFrame := func(frame any) {
		if disconnected {
			return
		}
		select {
		case <-clientGone:
			disconnected = true
			return
		default:
		}
		if err := enc.Encode(frame); err != nil {
			disconnected = true
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	// 与请求生命周期解耦：断开不取消生成
	genCtx := context.WithoutCancel(c.Request.Context())

	chapter, history, err := run(genCtx, func(percent int, step string) {
		writeFrame(progressFrame{Progress: percent, Step: step})
	})
	if err != nil {
		logger.Error(genCtx, "streamed generation failed", err, "story_id", c.Param("sid"))
		frame := errorFrame{Error: &dto.ErrorDetail{Details: "generation failed"}}
		if appErr := apperrors.AsAppError(err); appErr != nil {
			frame.Error = &dto.ErrorDetail{
				ErrorCode: string(appErr.Code),
				Details:   appErr.Message,
			}
		}
		writeFrame(frame)
		return
	}

	writeFrame(resultFrame{Result: dto.NewGenerationResult(chapter, history)})
}
