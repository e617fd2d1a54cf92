package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hr-access/backend/internal/dto"
	"hr-access/backend/internal/repository"
)

// IngestLogService 推送审计日志查询
type IngestLogService interface {
	List(ctx context.Context, orgID int64, req *dto.IngestResultListRequest) ([]dto.IngestResultResponse, int64, error)
}

type ingestLogService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewIngestLogService 创建 IngestLogService 实例
func NewIngestLogService(repo *repository.Repository, logger *zap.Logger) IngestLogService {
	return &ingestLogService{repo: repo, logger: logger}
}

func (s *ingestLogService) List(ctx context.Context, orgID int64, req *dto.IngestResultListRequest) ([]dto.IngestResultResponse, int64, error) {
	results, total, err := s.repo.IngestResult.List(ctx, orgID, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询推送审计日志失败", zap.Int64("org_id", orgID), zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.IngestResultResponse, 0, len(results))
	for _, r := range results {
		list = append(list, dto.IngestResultResponse{
			ID:             r.ID,
			TourniquetName: r.TourniquetName,
			SubjectID:      r.SubjectID,
			EventTime:      r.EventTime.Format(time.RFC3339),
			Status:         r.Status,
			Message:        r.Message,
			CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		})
	}
	return list, total, nil
}
