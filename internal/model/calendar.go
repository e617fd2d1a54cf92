package model

import "time"

// 日历日类型
const (
	DayTypeWork    = "WORK_DAY"
	DayTypeHoliday = "HOLIDAY"
	DayTypeRest    = "REST_DAY"
)

// TableDate 组织工作日历 — 对应 table_dates，(organization_id, date) 唯一
type TableDate struct {
	ID             int64     `gorm:"primaryKey"                                json:"id"`
	OrganizationID int64     `gorm:"not null;uniqueIndex:uq_table_dates_org_date" json:"organization_id"`
	Date           time.Time `gorm:"type:date;not null;uniqueIndex:uq_table_dates_org_date" json:"date"`
	Type           string    `gorm:"type:varchar(20);not null;default:'WORK_DAY'" json:"type"`
	BaseModel
}

// TableName 指定表名
func (TableDate) TableName() string { return "table_dates" }

// WorkingDateConfig 组织按星期的工作时间 — 对应 working_date_configs
type WorkingDateConfig struct {
	ID              int64 `gorm:"primaryKey"      json:"id"`
	OrganizationID  int64 `gorm:"not null"        json:"organization_id"`
	Weekday         int   `gorm:"not null"        json:"weekday"` // 0=周日 … 6=周六，与 time.Weekday 一致
	StartHour       int   `gorm:"not null"        json:"start_hour"`
	EndHour         int   `gorm:"not null"        json:"end_hour"`
	RequiredMinutes int   `gorm:"not null;default:0" json:"required_minutes"`
	BaseModel
}

// TableName 指定表名
func (WorkingDateConfig) TableName() string { return "working_date_configs" }
