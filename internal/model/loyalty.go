package model

import "time"

// LoyaltyAccount 积分账户（按下单人统计余额）
type LoyaltyAccount struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;type:varchar(64)"`
	Balance   int       `json:"balance" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LoyaltyAccount) TableName() string { return "loyalty_accounts" }

// LoyaltyEntry 积分流水，append-only
// ref_id 带唯一索引，同一笔来源不会重复入账
type LoyaltyEntry struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(64);index:idx_loyalty_user;not null"`
	OrderID   string    `json:"order_id" gorm:"type:varchar(36);index"`
	RefID     string    `json:"ref_id" gorm:"type:varchar(64);uniqueIndex"`
	Points    int       `json:"points" gorm:"not null"`
	Reason    string    `json:"reason" gorm:"type:varchar(32)"` // purchase, redemption
	CreatedAt time.Time `json:"created_at"`
}

func (LoyaltyEntry) TableName() string { return "loyalty_entries" }
