package repository

import (
	"context"

	"gorm.io/gorm"

	"hr-access/backend/internal/model"
)

// IngestResultRepository 推送审计日志数据访问接口（只追加）
type IngestResultRepository interface {
	Create(ctx context.Context, res *model.UserTourniquetResult) error
	// List status 为空时不过滤
	List(ctx context.Context, orgID int64, status string, offset, limit int) ([]model.UserTourniquetResult, int64, error)
}

type ingestResultRepo struct {
	db *gorm.DB
}

// NewIngestResultRepo 创建 IngestResultRepository 实例
func NewIngestResultRepo(db *gorm.DB) IngestResultRepository {
	return &ingestResultRepo{db: db}
}

func (r *ingestResultRepo) Create(ctx context.Context, res *model.UserTourniquetResult) error {
	return r.db.WithContext(ctx).Create(res).Error
}

func (r *ingestResultRepo) List(ctx context.Context, orgID int64, status string, offset, limit int) ([]model.UserTourniquetResult, int64, error) {
	var results []model.UserTourniquetResult
	var total int64

	db := r.db.WithContext(ctx).
		Model(&model.UserTourniquetResult{}).
		Where("organization_id = ?", orgID)
	if status != "" {
		db = db.Where("status = ?", status)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Offset(offset).Limit(limit).
		Order("created_at DESC, id DESC").
		Find(&results).Error; err != nil {
		return nil, 0, err
	}

	return results, total, nil
}
