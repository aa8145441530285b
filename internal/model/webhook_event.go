package model

import "time"

// WebhookEvent 已处理的网关事件（幂等去重：event_id 唯一）
type WebhookEvent struct {
	EventID   string    `json:"event_id" gorm:"primaryKey;type:varchar(64)"`
	Type      string    `json:"type" gorm:"type:varchar(64);index"`
	SessionID string    `json:"session_id" gorm:"type:varchar(64);index"`
	CreatedAt time.Time `json:"created_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
