package model

// 设备方向模式
const (
	TourniquetModeIn      = "IN"
	TourniquetModeOut     = "OUT"
	TourniquetModeDefault = "DEFAULT" // 双向
)

// Tourniquet 闸机设备表 — 对应 tourniquets
type Tourniquet struct {
	ID             int64  `gorm:"primaryKey"                                  json:"id"`
	OrganizationID int64  `gorm:"not null;index"                              json:"organization_id"`
	Name           string `gorm:"type:varchar(100);not null;uniqueIndex"      json:"name"` // 设备上报的名称
	IPAddress      string `gorm:"type:varchar(64);not null"                   json:"ip_address"`
	Port           int    `gorm:"not null;default:80"                         json:"port"`
	Username       string `gorm:"type:varchar(100);not null;default:''"       json:"username"`
	Password       string `gorm:"type:varchar(200);not null;default:''"       json:"-"`
	Mode           string `gorm:"type:varchar(10);not null;default:'DEFAULT'" json:"mode"`
	BaseModel
}

// TableName 指定表名
func (Tourniquet) TableName() string { return "tourniquets" }

// Directional 单向设备（IN 或 OUT）
func (t *Tourniquet) Directional() bool {
	return t.Mode == TourniquetModeIn || t.Mode == TourniquetModeOut
}

// TourniquetClient updater 客户端凭证 — 对应 tourniquet_clients
type TourniquetClient struct {
	ID             int64  `gorm:"primaryKey"                             json:"id"`
	OrganizationID int64  `gorm:"not null"                               json:"organization_id"`
	Username       string `gorm:"type:varchar(100);not null;uniqueIndex" json:"username"`
	PasswordHash   string `gorm:"type:varchar(255);not null"             json:"-"`
	IsActive       bool   `gorm:"not null;default:true"                  json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (TourniquetClient) TableName() string { return "tourniquet_clients" }
