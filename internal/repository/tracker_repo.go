package repository

import (
	"context"

	"gorm.io/gorm"

	"hr-access/backend/internal/model"
)

// TourniquetTrackerRepository 工作时段数据访问接口
type TourniquetTrackerRepository interface {
	BatchCreate(ctx context.Context, trackers []model.TourniquetTracker) error
	ListByEmployeeDay(ctx context.Context, orgID, employeeID, tableDateID int64) ([]model.TourniquetTracker, error)
}

type tourniquetTrackerRepo struct {
	db *gorm.DB
}

// NewTourniquetTrackerRepo 创建 TourniquetTrackerRepository 实例
func NewTourniquetTrackerRepo(db *gorm.DB) TourniquetTrackerRepository {
	return &tourniquetTrackerRepo{db: db}
}

func (r *tourniquetTrackerRepo) BatchCreate(ctx context.Context, trackers []model.TourniquetTracker) error {
	if len(trackers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&trackers).Error
}

func (r *tourniquetTrackerRepo) ListByEmployeeDay(ctx context.Context, orgID, employeeID, tableDateID int64) ([]model.TourniquetTracker, error) {
	var list []model.TourniquetTracker
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND employee_id = ? AND table_date_id = ?", orgID, employeeID, tableDateID).
		Order("start_time ASC").
		Find(&list).Error
	return list, err
}
