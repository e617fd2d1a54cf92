package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hr-access/backend/internal/dto"
	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/response"
)

// EnrollmentHandler 登记管理 HTTP 处理器
type EnrollmentHandler struct {
	enrollmentSvc service.EnrollmentService
}

// NewEnrollmentHandler 创建 EnrollmentHandler
func NewEnrollmentHandler(enrollmentSvc service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentSvc: enrollmentSvc}
}

// Resync 为组织补齐缺失的登记记录
// POST /api/v1/admin/enrollments/resync
func (h *EnrollmentHandler) Resync(c *gin.Context) {
	orgID, ok := MustGetOrganizationID(c)
	if !ok {
		return
	}

	created, err := h.enrollmentSvc.Resync(c.Request.Context(), orgID)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}
	response.OK(c, dto.ResyncResponse{Created: created})
}

// RequestCreation 请求在设备上登记
// POST /api/v1/admin/enrollments/:id/request
func (h *EnrollmentHandler) RequestCreation(c *gin.Context) {
	orgID, ok := MustGetOrganizationID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.enrollmentSvc.RequestCreation(c.Request.Context(), orgID, id)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}
	response.OK(c, resp)
}

// Retry 重试失败的登记操作
// POST /api/v1/admin/enrollments/:id/retry
func (h *EnrollmentHandler) Retry(c *gin.Context) {
	orgID, ok := MustGetOrganizationID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.enrollmentSvc.Retry(c.Request.Context(), orgID, id)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}
	response.OK(c, resp)
}

// EmployeeChange 员工生命周期变化通知
// POST /api/v1/admin/employees/:id/changes
func (h *EnrollmentHandler) EmployeeChange(c *gin.Context) {
	orgID, ok := MustGetOrganizationID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.EmployeeChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	affected, err := h.enrollmentSvc.HandleEmployeeChange(c.Request.Context(), orgID, id, req.Change)
	if err != nil {
		h.handleEnrollmentError(c, err)
		return
	}
	response.OK(c, dto.EmployeeChangeResponse{Affected: affected})
}

// handleEnrollmentError 统一处理登记模块业务错误
func (h *EnrollmentHandler) handleEnrollmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrganizationNotFound):
		response.NotFound(c, 41001, "组织不存在")
	case errors.Is(err, service.ErrEnrollmentNotFound):
		response.NotFound(c, 41002, "登记记录不存在")
	case errors.Is(err, service.ErrEmployeeNotFound):
		response.NotFound(c, 41003, "员工不存在")
	case errors.Is(err, service.ErrInvalidEnrollmentTransition):
		response.Conflict(c, 41004, "当前状态不允许该操作")
	case errors.Is(err, service.ErrEnrollmentConflict):
		response.Conflict(c, 41005, "登记记录已被并发修改，请刷新后重试")
	case errors.Is(err, service.ErrEmployeeIneligible):
		response.BadRequest(c, 41006, "员工不在职或未占用岗位")
	case errors.Is(err, service.ErrUnknownEmployeeChange):
		response.BadRequest(c, 41007, "未知的员工变更类型")
	default:
		response.InternalError(c)
	}
}
