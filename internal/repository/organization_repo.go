package repository

import (
	"context"

	"gorm.io/gorm"

	"hr-access/backend/internal/model"
)

// OrganizationRepository 组织数据访问接口（只读）
type OrganizationRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Organization, error)
	ListAll(ctx context.Context) ([]model.Organization, error)
}

// organizationRepo OrganizationRepository 的 GORM 实现
type organizationRepo struct {
	db *gorm.DB
}

// NewOrganizationRepo 创建 OrganizationRepository 实例
func NewOrganizationRepo(db *gorm.DB) OrganizationRepository {
	return &organizationRepo{db: db}
}

func (r *organizationRepo) GetByID(ctx context.Context, id int64) (*model.Organization, error) {
	var org model.Organization
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepo) ListAll(ctx context.Context) ([]model.Organization, error) {
	var orgs []model.Organization
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&orgs).Error
	return orgs, err
}
