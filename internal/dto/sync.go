package dto

// ── updater 同步协议 DTO ──

// DeviceAccess 设备连接信息，供 updater 直连硬件
type DeviceAccess struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// EnrollmentOperation 单条待执行的登记操作
type EnrollmentOperation struct {
	EventID     int64  `json:"event_id"` // 登记记录 id，回执时原样带回
	EmployeeID  int64  `json:"employee_id"`
	FullName    string `json:"full_name"`
	PhotoBase64 string `json:"photo_base64,omitempty"`
	Status      string `json:"status"`
}

// PendingOperationsResponse 固定顺序：create → update → delete
type PendingOperationsResponse struct {
	Device DeviceAccess          `json:"device"`
	Create []EnrollmentOperation `json:"create"`
	Update []EnrollmentOperation `json:"update"`
	Delete []EnrollmentOperation `json:"delete"`
}

// SyncResultItem updater 对单条操作的回执
type SyncResultItem struct {
	EventID int64  `json:"event_id" binding:"required"`
	Success bool   `json:"success"`
	Error   string `json:"error"    binding:"omitempty,max=2000"`
}

// SubmitResultsRequest 批量回执
type SubmitResultsRequest struct {
	Updates []SyncResultItem `json:"updates" binding:"required,dive"`
}

// SubmitResultsResponse 回执处理统计
type SubmitResultsResponse struct {
	Applied int `json:"applied"`
	Ignored int `json:"ignored"`
}

// DeviceEnrollee 设备上实际登记的人员
type DeviceEnrollee struct {
	EmployeeID int64  `json:"employee_id" binding:"required"`
	FullName   string `json:"full_name"`
}

// ReconcileRequest 设备全量快照
type ReconcileRequest struct {
	Employees []DeviceEnrollee `json:"employees" binding:"dive"`
}

// ReconcileResponse 对账结果
type ReconcileResponse struct {
	PurgeIDs        []int64 `json:"purge_ids"` // updater 需要在设备本地删除的人员 id
	DeleteRequested int     `json:"delete_requested"`
	UpdateRequested int     `json:"update_requested"`
	CreateRequested int     `json:"create_requested"`
	Adopted         int     `json:"adopted"` // 设备上已有但缺少记录，直接登记为 ACTIVE
}
