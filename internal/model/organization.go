package model

import "time"

// Organization 组织表 — 对应 organizations（外部 CRUD 维护）
type Organization struct {
	ID       int64  `gorm:"primaryKey"                        json:"id"`
	Name     string `gorm:"type:varchar(200);not null"        json:"name"`
	Timezone string `gorm:"type:varchar(64);not null;default:''" json:"timezone"`
	BaseModel
}

// TableName 指定表名
func (Organization) TableName() string { return "organizations" }

// Location 返回组织时区，未配置或无效时回落到 fallback
func (o *Organization) Location(fallback *time.Location) *time.Location {
	if o == nil || o.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}
