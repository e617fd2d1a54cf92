package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"hr-access/backend/internal/dto"
	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/response"
)

// UpdaterHandler updater 同步协议 HTTP 处理器
type UpdaterHandler struct {
	syncSvc service.DeviceSyncService
}

// NewUpdaterHandler 创建 UpdaterHandler
func NewUpdaterHandler(syncSvc service.DeviceSyncService) *UpdaterHandler {
	return &UpdaterHandler{syncSvc: syncSvc}
}

// PendingOperations 拉取设备待执行的登记操作
// GET /api/v1/updater/devices/:id/pending
func (h *UpdaterHandler) PendingOperations(c *gin.Context) {
	client, ok := MustGetClient(c)
	if !ok {
		return
	}
	deviceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.syncSvc.FetchPendingOperations(c.Request.Context(), client, deviceID)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	response.OK(c, resp)
}

// SubmitResults 提交执行回执
// POST /api/v1/updater/results
func (h *UpdaterHandler) SubmitResults(c *gin.Context) {
	client, ok := MustGetClient(c)
	if !ok {
		return
	}
	var req dto.SubmitResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.syncSvc.SubmitResults(c.Request.Context(), client, &req)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	response.OK(c, resp)
}

// Reconcile 上报设备全量人员快照
// PUT /api/v1/updater/devices/:id/reconcile
func (h *UpdaterHandler) Reconcile(c *gin.Context) {
	client, ok := MustGetClient(c)
	if !ok {
		return
	}
	deviceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	resp, err := h.syncSvc.Reconcile(c.Request.Context(), client, deviceID, &req)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	response.OK(c, resp)
}

// handleSyncError 统一处理同步协议业务错误
func (h *UpdaterHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound):
		response.NotFound(c, 40001, "设备不存在")
	case errors.Is(err, service.ErrDeviceOrgMismatch):
		response.Forbidden(c, 40002, "设备不属于该客户端所在组织")
	case errors.Is(err, service.ErrInvalidClientCredentials):
		response.Unauthorized(c, 40003, "updater 客户端凭证无效")
	default:
		response.InternalError(c)
	}
}
