package model

import "strings"

// 员工状态
const (
	EmployeeStatusActive = "ACTIVE"
	EmployeeStatusFired  = "FIRED"
)

// Employee 员工表 — 对应 employees（外部 CRUD 维护，本服务仅写 at_office）
type Employee struct {
	ID             int64   `gorm:"primaryKey"                                json:"id"`
	OrganizationID int64   `gorm:"not null;index"                            json:"organization_id"`
	FirstName      string  `gorm:"type:varchar(100);not null"                json:"first_name"`
	LastName       string  `gorm:"type:varchar(100);not null"                json:"last_name"`
	MiddleName     string  `gorm:"type:varchar(100);not null;default:''"     json:"middle_name"`
	DepartmentID   *int64  `json:"department_id,omitempty"`
	PositionID     *int64  `json:"position_id,omitempty"`
	Status         string  `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	PhotoKey       *string `gorm:"type:varchar(500)"                         json:"photo_key,omitempty"`
	AtOffice       bool    `gorm:"not null;default:false"                    json:"at_office"` // 易失的 UI 状态
	BaseModel
}

// TableName 指定表名
func (Employee) TableName() string { return "employees" }

// FullName 设备上登记的姓名
func (e *Employee) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.LastName, e.FirstName, e.MiddleName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Eligible 在职且占用岗位的员工才需要在设备上登记
func (e *Employee) Eligible() bool {
	return e.Status == EmployeeStatusActive && e.PositionID != nil
}
