package model

import "time"

// 事件方向
const (
	DirectionIn  = "IN"
	DirectionOut = "OUT"
)

// 主体类型
const (
	SubjectNormal  = "NORMAL"
	SubjectVisitor = "VISITOR"
)

// 到岗状态
const (
	ArrivalOnTime = "ON_TIME"
	ArrivalLate   = "LATE"
)

// UserTourniquet 已分类的考勤事件 — 对应 user_tourniquets
// 写入后不可变，仅在重新同步时软删除
type UserTourniquet struct {
	ID             int64     `gorm:"primaryKey"                                  json:"id"`
	OrganizationID int64     `gorm:"not null"                                    json:"organization_id"`
	EmployeeID     *int64    `json:"employee_id,omitempty"`
	VisitorID      *int64    `json:"visitor_id,omitempty"`
	TourniquetID   int64     `gorm:"not null"                                    json:"tourniquet_id"`
	TableDateID    int64     `gorm:"not null"                                    json:"table_date_id"`
	EventTime      time.Time `gorm:"not null"                                    json:"event_time"`
	Direction      string    `gorm:"type:varchar(3);not null"                    json:"direction"`
	SubjectKind    string    `gorm:"type:varchar(10);not null;default:'NORMAL'"  json:"subject_kind"`
	ArrivalStatus  *string   `gorm:"type:varchar(10)"                            json:"arrival_status,omitempty"`
	SnapshotKey    *string   `gorm:"type:varchar(500)"                           json:"snapshot_key,omitempty"`
	Synthetic      bool      `gorm:"not null;default:false"                      json:"synthetic"` // 日终补签生成
	SoftDeleteAt
}

// TableName 指定表名
func (UserTourniquet) TableName() string { return "user_tourniquets" }

// TourniquetTracker 由一次 IN/OUT 配对派生的工作时段 — 对应 tourniquet_trackers
type TourniquetTracker struct {
	ID              int64     `gorm:"primaryKey"     json:"id"`
	OrganizationID  int64     `gorm:"not null"       json:"organization_id"`
	EmployeeID      int64     `gorm:"not null"       json:"employee_id"`
	TourniquetID    int64     `gorm:"not null"       json:"tourniquet_id"`
	TableDateID     int64     `gorm:"not null"       json:"table_date_id"`
	StartTime       time.Time `gorm:"not null"       json:"start_time"`
	EndTime         time.Time `gorm:"not null"       json:"end_time"`
	DurationMinutes int       `gorm:"not null"       json:"duration_minutes"`
	InEventID       int64     `gorm:"not null"       json:"in_event_id"`
	OutEventID      int64     `gorm:"not null"       json:"out_event_id"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (TourniquetTracker) TableName() string { return "tourniquet_trackers" }

// 推送结果
const (
	IngestCompleted = "COMPLETED"
	IngestFailed    = "FAILED"
)

// UserTourniquetResult 推送审计日志（只追加）— 对应 user_tourniquet_results
type UserTourniquetResult struct {
	ID             int64     `gorm:"primaryKey"                    json:"id"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	TourniquetName string    `gorm:"type:varchar(100);not null"    json:"tourniquet_name"`
	SubjectID      string    `gorm:"type:varchar(100);not null"    json:"subject_id"`
	EventTime      time.Time `gorm:"not null"                      json:"event_time"`
	Status         string    `gorm:"type:varchar(10);not null"     json:"status"`
	Message        string    `gorm:"type:text;not null;default:''" json:"message"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (UserTourniquetResult) TableName() string { return "user_tourniquet_results" }
