package model

// Visitor 访客登记表 — 对应 visitors（外部维护，按组织唯一的 token）
type Visitor struct {
	ID             int64  `gorm:"primaryKey"                   json:"id"`
	OrganizationID int64  `gorm:"not null"                     json:"organization_id"`
	Token          string `gorm:"type:varchar(100);not null"   json:"token"`
	FullName       string `gorm:"type:varchar(300);not null"   json:"full_name"`
	IsActive       bool   `gorm:"not null;default:true"        json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Visitor) TableName() string { return "visitors" }
