package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/rentalhub/internal/application/scheduler"
	"github.com/xiebiao/rentalhub/internal/interface/http/dto"
	"github.com/xiebiao/rentalhub/pkg/response"
)

// SchedulerHandler 到期提醒任务管理（仅管理员）
type SchedulerHandler struct {
	scheduler *scheduler.ExpiryScheduler
}

// NewSchedulerHandler 创建任务管理处理器
func NewSchedulerHandler(s *scheduler.ExpiryScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// Status 任务状态
// @Summary      到期提醒任务状态
// @Tags         管理
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=scheduler.Status} "查询成功"
// @Router       /api/v1/admin/scheduler [get]
func (h *SchedulerHandler) Status(c *gin.Context) {
	response.Success(c, h.scheduler.Status())
}

// Start 启动任务
// @Summary      启动到期提醒任务
// @Description  已按相同间隔运行时不重复启动；间隔不同则按新间隔重启
// @Tags         管理
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.StartSchedulerRequest true "扫描间隔"
// @Success      200 {object} response.Response{data=scheduler.Status} "启动成功"
// @Router       /api/v1/admin/scheduler/start [post]
func (h *SchedulerHandler) Start(c *gin.Context) {
	var req dto.StartSchedulerRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.scheduler.Start(req.IntervalMinutes); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.scheduler.Status())
}

// Stop 停止任务
// @Summary      停止到期提醒任务
// @Tags         管理
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=scheduler.Status} "已停止"
// @Router       /api/v1/admin/scheduler/stop [post]
func (h *SchedulerHandler) Stop(c *gin.Context) {
	h.scheduler.Stop()
	response.Success(c, h.scheduler.Status())
}

// Sweep 立即扫描一次
// @Summary      立即执行一次到期扫描
// @Tags         管理
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=scheduler.SweepResult} "扫描完成"
// @Router       /api/v1/admin/scheduler/sweep [post]
func (h *SchedulerHandler) Sweep(c *gin.Context) {
	result, err := h.scheduler.SweepOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}
