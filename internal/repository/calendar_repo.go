package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hr-access/backend/internal/model"
)

// DateLayout table_dates.date 的查询格式
const DateLayout = "2006-01-02"

// TableDateRepository 工作日历数据访问接口
type TableDateRepository interface {
	// GetByDate date 只取年月日
	GetByDate(ctx context.Context, orgID int64, date time.Time) (*model.TableDate, error)
	// EnsureDays 批量插入，已存在的 (organization_id, date) 保持不变，返回新插入行数
	EnsureDays(ctx context.Context, days []model.TableDate) (int64, error)
}

// WorkingDateConfigRepository 工作时间配置数据访问接口
type WorkingDateConfigRepository interface {
	GetByWeekday(ctx context.Context, orgID int64, weekday time.Weekday) (*model.WorkingDateConfig, error)
	ListByOrg(ctx context.Context, orgID int64) ([]model.WorkingDateConfig, error)
}

// ── TableDate Repository 实现 ──

type tableDateRepo struct {
	db *gorm.DB
}

// NewTableDateRepo 创建 TableDateRepository 实例
func NewTableDateRepo(db *gorm.DB) TableDateRepository {
	return &tableDateRepo{db: db}
}

func (r *tableDateRepo) GetByDate(ctx context.Context, orgID int64, date time.Time) (*model.TableDate, error) {
	var day model.TableDate
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND date = ?", orgID, date.Format(DateLayout)).
		First(&day).Error
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func (r *tableDateRepo) EnsureDays(ctx context.Context, days []model.TableDate) (int64, error) {
	if len(days) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "organization_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(&days)
	return result.RowsAffected, result.Error
}

// ── WorkingDateConfig Repository 实现 ──

type workingDateConfigRepo struct {
	db *gorm.DB
}

// NewWorkingDateConfigRepo 创建 WorkingDateConfigRepository 实例
func NewWorkingDateConfigRepo(db *gorm.DB) WorkingDateConfigRepository {
	return &workingDateConfigRepo{db: db}
}

func (r *workingDateConfigRepo) GetByWeekday(ctx context.Context, orgID int64, weekday time.Weekday) (*model.WorkingDateConfig, error) {
	var cfg model.WorkingDateConfig
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND weekday = ?", orgID, int(weekday)).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *workingDateConfigRepo) ListByOrg(ctx context.Context, orgID int64) ([]model.WorkingDateConfig, error) {
	var list []model.WorkingDateConfig
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("weekday ASC").
		Find(&list).Error
	return list, err
}
