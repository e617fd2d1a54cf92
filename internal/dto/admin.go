package dto

// ── 管理端 DTO ──

// 员工变更类型
const (
	EmployeeChangeHired             = "hired"
	EmployeeChangeDetailsChanged    = "details_changed"
	EmployeeChangeDepartmentChanged = "department_changed"
	EmployeeChangeIneligible        = "ineligible"
)

// EmployeeChangeRequest 外部 CRUD 服务通知员工生命周期变化
type EmployeeChangeRequest struct {
	Change string `json:"change" binding:"required,oneof=hired details_changed department_changed ineligible"`
}

// EnrollmentResponse 登记记录
type EnrollmentResponse struct {
	ID           int64  `json:"id"`
	EmployeeID   int64  `json:"employee_id"`
	TourniquetID int64  `json:"tourniquet_id"`
	Status       string `json:"status"`
	LastError    string `json:"last_error,omitempty"`
	LastErrorAt  string `json:"last_error_at,omitempty"`
	UpdatedAt    string `json:"updated_at"`
}

// ResyncResponse 组织重同步结果
type ResyncResponse struct {
	Created int64 `json:"created"`
}

// EmployeeChangeResponse 生命周期变化处理结果
type EmployeeChangeResponse struct {
	Affected int `json:"affected"`
}

// JobTriggerResponse 手动触发任务结果
type JobTriggerResponse struct {
	Job        string `json:"job"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}
