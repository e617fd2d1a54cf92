package model

import "time"

// EnrollmentStatus 员工在某台设备上的生物特征登记状态
type EnrollmentStatus string

const (
	EnrollmentNotExist        EnrollmentStatus = "NOT_EXIST"
	EnrollmentRequested       EnrollmentStatus = "REQUESTED"
	EnrollmentRequestFailed   EnrollmentStatus = "REQUEST_FAILED"
	EnrollmentActive          EnrollmentStatus = "ACTIVE"
	EnrollmentUpdateRequested EnrollmentStatus = "UPDATE_REQUESTED"
	EnrollmentUpdateFailed    EnrollmentStatus = "UPDATE_FAILED"
	EnrollmentUpdated         EnrollmentStatus = "UPDATED"
	EnrollmentDeleteRequested EnrollmentStatus = "DELETE_REQUESTED"
	EnrollmentDeleteFailed    EnrollmentStatus = "DELETE_FAILED"
	EnrollmentDeleted         EnrollmentStatus = "DELETED"
)

// AllEnrollmentStatuses 闭集
var AllEnrollmentStatuses = []EnrollmentStatus{
	EnrollmentNotExist,
	EnrollmentRequested,
	EnrollmentRequestFailed,
	EnrollmentActive,
	EnrollmentUpdateRequested,
	EnrollmentUpdateFailed,
	EnrollmentUpdated,
	EnrollmentDeleteRequested,
	EnrollmentDeleteFailed,
	EnrollmentDeleted,
}

// EmployeeTourniquetData 登记记录 — 对应 employee_tourniquet_data，(employee_id, tourniquet_id) 唯一
type EmployeeTourniquetData struct {
	ID             int64            `gorm:"primaryKey"                                   json:"id"`
	OrganizationID int64            `gorm:"not null"                                     json:"organization_id"`
	EmployeeID     int64            `gorm:"not null;uniqueIndex:uq_enrollment_pair"      json:"employee_id"`
	TourniquetID   int64            `gorm:"not null;uniqueIndex:uq_enrollment_pair"      json:"tourniquet_id"`
	Status         EnrollmentStatus `gorm:"type:varchar(20);not null;default:'NOT_EXIST'" json:"status"`
	LastError      *string          `gorm:"type:text"                                    json:"last_error,omitempty"`
	LastErrorAt    *time.Time       `json:"last_error_at,omitempty"`
	VersionedModel

	// 关联
	Employee *Employee `gorm:"foreignKey:EmployeeID;references:ID" json:"employee,omitempty"`
}

// TableName 指定表名
func (EmployeeTourniquetData) TableName() string { return "employee_tourniquet_data" }
