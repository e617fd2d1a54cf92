package repository

import (
	"context"

	"gorm.io/gorm"

	"hr-access/backend/internal/model"
)

// VisitorRepository 访客登记数据访问接口（只读）
type VisitorRepository interface {
	GetActiveByToken(ctx context.Context, orgID int64, token string) (*model.Visitor, error)
}

type visitorRepo struct {
	db *gorm.DB
}

// NewVisitorRepo 创建 VisitorRepository 实例
func NewVisitorRepo(db *gorm.DB) VisitorRepository {
	return &visitorRepo{db: db}
}

func (r *visitorRepo) GetActiveByToken(ctx context.Context, orgID int64, token string) (*model.Visitor, error) {
	var v model.Visitor
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND token = ? AND is_active = ?", orgID, token, true).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}
