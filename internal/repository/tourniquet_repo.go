package repository

import (
	"context"

	"gorm.io/gorm"

	"hr-access/backend/internal/model"
)

// TourniquetRepository 闸机设备数据访问接口
type TourniquetRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Tourniquet, error)
	GetByName(ctx context.Context, name string) (*model.Tourniquet, error)
	ListByOrg(ctx context.Context, orgID int64) ([]model.Tourniquet, error)
}

// TourniquetClientRepository updater 客户端数据访问接口
type TourniquetClientRepository interface {
	GetActiveByUsername(ctx context.Context, username string) (*model.TourniquetClient, error)
}

// ── Tourniquet Repository 实现 ──

type tourniquetRepo struct {
	db *gorm.DB
}

// NewTourniquetRepo 创建 TourniquetRepository 实例
func NewTourniquetRepo(db *gorm.DB) TourniquetRepository {
	return &tourniquetRepo{db: db}
}

func (r *tourniquetRepo) GetByID(ctx context.Context, id int64) (*model.Tourniquet, error) {
	var t model.Tourniquet
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tourniquetRepo) GetByName(ctx context.Context, name string) (*model.Tourniquet, error) {
	var t model.Tourniquet
	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tourniquetRepo) ListByOrg(ctx context.Context, orgID int64) ([]model.Tourniquet, error) {
	var list []model.Tourniquet
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// ── TourniquetClient Repository 实现 ──

type tourniquetClientRepo struct {
	db *gorm.DB
}

// NewTourniquetClientRepo 创建 TourniquetClientRepository 实例
func NewTourniquetClientRepo(db *gorm.DB) TourniquetClientRepository {
	return &tourniquetClientRepo{db: db}
}

func (r *tourniquetClientRepo) GetActiveByUsername(ctx context.Context, username string) (*model.TourniquetClient, error) {
	var c model.TourniquetClient
	err := r.db.WithContext(ctx).
		Where("username = ? AND is_active = ?", username, true).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
