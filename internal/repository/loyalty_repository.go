package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/dineflow/internal/model"
)

// ErrDuplicateCredit 同一来源重复入账
var ErrDuplicateCredit = errors.New("loyalty credit already recorded")

// LoyaltyRepository 积分台账：余额累加 + append-only 流水
type LoyaltyRepository interface {
	// WithTx 返回绑定到事务的仓储，订单写入与积分入账同提交同回滚
	WithTx(tx *gorm.DB) LoyaltyRepository
	// Credit 入账；refID 已存在时返回 ErrDuplicateCredit
	Credit(ctx context.Context, userID, orderID, refID string, points int, reason string) error
	Balance(ctx context.Context, userID string) (int, error)
	Entries(ctx context.Context, userID string, limit int) ([]*model.LoyaltyEntry, error)
}

type loyaltyRepository struct {
	db *gorm.DB
}

func NewLoyaltyRepository(db *gorm.DB) LoyaltyRepository { return &loyaltyRepository{db: db} }

func (r *loyaltyRepository) WithTx(tx *gorm.DB) LoyaltyRepository {
	return &loyaltyRepository{db: tx}
}

func (r *loyaltyRepository) Credit(ctx context.Context, userID, orderID, refID string, points int, reason string) error {
	entry := &model.LoyaltyEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		OrderID:   orderID,
		RefID:     refID,
		Points:    points,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateCredit
		}
		return err
	}

	now := time.Now()
	acct := &model.LoyaltyAccount{UserID: userID, Balance: 0, CreatedAt: now, UpdatedAt: now}
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).FirstOrCreate(acct).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&model.LoyaltyAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", points),
			"updated_at": now,
		}).Error
}

func (r *loyaltyRepository) Balance(ctx context.Context, userID string) (int, error) {
	var acct model.LoyaltyAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&acct).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

func (r *loyaltyRepository) Entries(ctx context.Context, userID string, limit int) ([]*model.LoyaltyEntry, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	var entries []*model.LoyaltyEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
