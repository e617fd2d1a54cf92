package dto

import "time"

// ── 闸机事件推送 DTO ──

// IngestEventRequest 设备推送的原始事件（JSON 或 multipart 表单）
type IngestEventRequest struct {
	DeviceName string    `json:"device_name" form:"device_name" binding:"required,max=100"`
	SubjectID  string    `json:"subject_id"  form:"subject_id"  binding:"required,max=100"`
	Timestamp  time.Time `json:"timestamp"   form:"timestamp"   binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	Snapshot   string    `json:"snapshot"    form:"-"` // base64 JPEG，multipart 模式下走文件字段
}

// IngestEventResponse 推送接口响应（无论处理结果如何均为 200）
type IngestEventResponse struct {
	Status    string `json:"status,omitempty"`
	Message   string `json:"message,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

// IngestResultListRequest 审计日志查询参数
type IngestResultListRequest struct {
	PaginationRequest
	Status string `form:"status" binding:"omitempty,oneof=COMPLETED FAILED"`
}

// IngestResultResponse 审计日志条目
type IngestResultResponse struct {
	ID             int64  `json:"id"`
	TourniquetName string `json:"tourniquet_name"`
	SubjectID      string `json:"subject_id"`
	EventTime      string `json:"event_time"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	CreatedAt      string `json:"created_at"`
}
