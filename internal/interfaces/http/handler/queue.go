package handler

import (
	"github.com/gin-gonic/gin"

	"storyloom-api/internal/application/generation"
	"storyloom-api/internal/interfaces/http/dto"
)

// QueueHandler 任务队列观测处理器
type QueueHandler struct {
	scheduler *generation.Scheduler
}

// NewQueueHandler 创建队列处理器
func NewQueueHandler(scheduler *generation.Scheduler) *QueueHandler {
	return &QueueHandler{scheduler: scheduler}
}

// Health 查询各业务流的积压与死信深度
func (h *QueueHandler) Health(c *gin.Context) {
	healths, err := h.scheduler.QueueHealth(c.Request.Context())
	if err != nil {
		dto.ServiceUnavailable(c, "queue health unavailable")
		return
	}

	dto.Success(c, healths)
}
