package model

import "time"

// StaffRole 后台角色
type StaffRole string

const (
	StaffRoleAdmin   StaffRole = "admin"
	StaffRoleKitchen StaffRole = "kitchen"
)

// Staff 后台账号（管理员/厨房）
type Staff struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"type:varchar(64);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:varchar(100);not null"`
	Role         StaffRole `json:"role" gorm:"type:varchar(16);not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Staff) TableName() string { return "staff" }
