package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/dineflow/internal/model"
)

// WebhookEventRepository 网关事件去重表
type WebhookEventRepository interface {
	WithTx(tx *gorm.DB) WebhookEventRepository
	// Record 记录事件；首次写入返回 true，重复投递返回 false
	Record(ctx context.Context, eventID, eventType, sessionID string) (bool, error)
	Seen(ctx context.Context, eventID string) (bool, error)
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) WithTx(tx *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: tx}
}

func (r *webhookEventRepository) Record(ctx context.Context, eventID, eventType, sessionID string) (bool, error) {
	ev := &model.WebhookEvent{
		EventID:   eventID,
		Type:      eventType,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	// 幂等：重复事件不报错，RowsAffected 区分首次与重放
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *webhookEventRepository) Seen(ctx context.Context, eventID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&cnt).Error
	if err != nil {
		return false, err
	}
	return cnt > 0, nil
}
