package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hr-access/backend/internal/dto"
	"hr-access/backend/internal/scheduler"
	"hr-access/backend/pkg/response"
)

// JobTrigger 手动触发定时任务，由 scheduler.Scheduler 实现
type JobTrigger interface {
	Trigger(ctx context.Context, name string) (*scheduler.RunResult, error)
}

// JobHandler 定时任务手动触发
type JobHandler struct {
	jobs JobTrigger
}

// NewJobHandler 创建 JobHandler
func NewJobHandler(jobs JobTrigger) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// Trigger 同步执行一次任务
// POST /api/v1/admin/jobs/:name/trigger
func (h *JobHandler) Trigger(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		response.BadRequest(c, 10001, "任务名称不能为空")
		return
	}
	if h.jobs == nil {
		response.NotFound(c, 42001, "任务不存在")
		return
	}

	res, err := h.jobs.Trigger(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		response.NotFound(c, 42001, "任务不存在")
		return
	case errors.Is(err, scheduler.ErrJobRunning):
		response.Conflict(c, 42002, "任务正在执行")
		return
	case err != nil:
		response.ErrorWithDetails(c, http.StatusInternalServerError, 42003, "任务执行失败", err.Error())
		return
	}

	response.OK(c, dto.JobTriggerResponse{
		Job:        res.Job,
		StartedAt:  res.StartedAt.Format(time.RFC3339),
		FinishedAt: res.FinishedAt.Format(time.RFC3339),
	})
}
