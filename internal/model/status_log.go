package model

import "time"

// StatusLog 订单状态流转日志（异步落库）
type StatusLog struct {
	ID        string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID   string      `json:"order_id" gorm:"type:varchar(36);index:idx_statuslog_order;not null"`
	From      OrderStatus `json:"from" gorm:"column:from_status;type:varchar(16)"`
	To        OrderStatus `json:"to" gorm:"column:to_status;type:varchar(16);not null"`
	ChangedBy string      `json:"changed_by" gorm:"type:varchar(64)"`
	CreatedAt time.Time   `json:"created_at" gorm:"index"`
}

func (StatusLog) TableName() string { return "order_status_logs" }
