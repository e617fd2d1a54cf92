package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hr-access/backend/internal/dto"
	"hr-access/backend/internal/model"
	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/response"
)

// IngestHandler 闸机事件推送与审计日志
type IngestHandler struct {
	ingestSvc        service.IngestService
	logSvc           service.IngestLogService
	maxSnapshotBytes int64
	logger           *zap.Logger
}

// NewIngestHandler 创建 IngestHandler
func NewIngestHandler(ingestSvc service.IngestService, logSvc service.IngestLogService, maxSnapshotBytes int64, logger *zap.Logger) *IngestHandler {
	if maxSnapshotBytes <= 0 {
		maxSnapshotBytes = 2 << 20
	}
	return &IngestHandler{ingestSvc: ingestSvc, logSvc: logSvc, maxSnapshotBytes: maxSnapshotBytes, logger: logger}
}

// PushEvent 设备推送事件
// POST /api/v1/tourniquet/events
// 设备无法处理业务错误，任何结果都返回 200
func (h *IngestHandler) PushEvent(c *gin.Context) {
	var (
		req      dto.IngestEventRequest
		snapshot []byte
		err      error
	)
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		err = c.ShouldBind(&req)
		if err == nil {
			snapshot = h.readSnapshotFile(c)
		}
	} else {
		err = c.ShouldBindJSON(&req)
		if err == nil && req.Snapshot != "" {
			if snapshot, err = base64.StdEncoding.DecodeString(req.Snapshot); err != nil {
				h.logger.Warn("抓拍图片 base64 解码失败，忽略", zap.String("device", req.DeviceName), zap.Error(err))
				snapshot, err = nil, nil
			}
		}
	}
	if err != nil {
		h.logger.Warn("推送数据格式无效", zap.String("ip", c.ClientIP()), zap.Error(err))
		reason := service.MsgInvalidPayload
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reason = service.MsgPayloadTooLarge
		}
		h.rejectWith(c, req, reason)
		return
	}
	if int64(len(snapshot)) > h.maxSnapshotBytes {
		h.logger.Warn("抓拍图片过大，忽略", zap.String("device", req.DeviceName), zap.Int("bytes", len(snapshot)))
		snapshot = nil
	}

	report, err := h.ingestSvc.Ingest(c.Request.Context(), service.Scope{}, service.RawEvent{
		DeviceName: req.DeviceName,
		SubjectID:  req.SubjectID,
		Timestamp:  req.Timestamp,
		Snapshot:   snapshot,
	})
	if err != nil {
		response.Accepted(c, dto.IngestEventResponse{Status: model.IngestFailed, Message: service.MsgInternalError})
		return
	}

	resp := dto.IngestEventResponse{Duplicate: report.Duplicate}
	if report.Result != nil {
		resp.Status = report.Result.Status
		resp.Message = report.Result.Message
	}
	response.Accepted(c, resp)
}

// Reject 中间件（限流、请求体超长）拒绝推送时的响应
// 仍返回 200 FAILED；请求体未超长时尽量解析出设备名与主体写入审计日志
func (h *IngestHandler) Reject(c *gin.Context, reason string) {
	var req dto.IngestEventRequest
	if reason != service.MsgPayloadTooLarge {
		// 校验失败时字段已填充，忽略错误
		if c.ContentType() == gin.MIMEMultipartPOSTForm {
			_ = c.ShouldBind(&req)
		} else {
			_ = c.ShouldBindJSON(&req)
		}
	}
	h.rejectWith(c, req, reason)
}

func (h *IngestHandler) rejectWith(c *gin.Context, req dto.IngestEventRequest, reason string) {
	err := h.ingestSvc.Reject(c.Request.Context(), service.RawEvent{
		DeviceName: req.DeviceName,
		SubjectID:  req.SubjectID,
		Timestamp:  req.Timestamp,
	}, reason)
	if err != nil {
		h.logger.Error("被拒推送写入审计日志失败", zap.String("reason", reason), zap.Error(err))
	}
	response.Accepted(c, dto.IngestEventResponse{Status: model.IngestFailed, Message: reason})
}

func (h *IngestHandler) readSnapshotFile(c *gin.Context) []byte {
	fh, err := c.FormFile("snapshot")
	if err != nil {
		return nil
	}
	f, err := fh.Open()
	if err != nil {
		h.logger.Warn("读取抓拍文件失败", zap.Error(err))
		return nil
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxSnapshotBytes+1))
	if err != nil {
		h.logger.Warn("读取抓拍文件失败", zap.Error(err))
		return nil
	}
	return data
}

// ListResults 推送审计日志
// GET /api/v1/admin/ingest-results
func (h *IngestHandler) ListResults(c *gin.Context) {
	var req dto.IngestResultListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	orgID, ok := MustGetOrganizationID(c)
	if !ok {
		return
	}

	list, total, err := h.logSvc.List(c.Request.Context(), orgID, &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}
