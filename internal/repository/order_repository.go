package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/pkg/apperr"
)

// CustomerInfo 游客快照更新载荷
type CustomerInfo struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	DeliveryAddress string `json:"delivery_address"`
}

// OrderFilter 搜索过滤条件，零值字段忽略
type OrderFilter struct {
	UserID        string              `json:"user_id"`
	OrderStatus   model.OrderStatus   `json:"order_status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	ServiceType   model.ServiceType   `json:"service_type"`
	IsRewardOrder *bool               `json:"is_reward_order"`
	CreatedFrom   *time.Time          `json:"created_from"`
	CreatedTo     *time.Time          `json:"created_to"`
}

// SearchOptions 分页与排序
type SearchOptions struct {
	Skip  int    `json:"skip"`
	Limit int    `json:"limit"`
	Sort  string `json:"sort"` // 默认 created_at DESC
}

const defaultPageSize = 50

// PricingUpdate 价格拆分的定向更新
type PricingUpdate struct {
	Subtotal    float64
	Tax         float64
	DeliveryFee float64
	Discount    float64
	TotalAmount float64
}

// OrderRepository 订单仓储接口
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string, populateItems bool) (*model.Order, error)
	GetByCartID(ctx context.Context, cartID string) (*model.Order, error)
	GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Order, error)
	ListActive(ctx context.Context) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus, at time.Time) error
	UpdatePayment(ctx context.Context, id string, status model.PaymentStatus, method *model.PaymentMethod, sessionID *string) error
	UpdatePricing(ctx context.Context, id string, p PricingUpdate) error
	UpdateCustomerInfo(ctx context.Context, id string, info CustomerInfo) error
	LinkUser(ctx context.Context, id string, userID string) error
	SetRewardEarned(ctx context.Context, id string, points int) error
	Search(ctx context.Context, filter OrderFilter, opts SearchOptions) ([]*model.Order, int64, error)
	Delete(ctx context.Context, id string) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepository{db: db} }

// Create 创建订单；必填字段缺失直接拒绝
func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	if len(order.Items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	if !order.ServiceType.Valid() {
		return apperr.Validation("service type is required")
	}
	if order.PaymentMethod == "" {
		return apperr.Validation("payment method is required")
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetByID(ctx context.Context, id string, populateItems bool) (*model.Order, error) {
	q := r.db.WithContext(ctx)
	if populateItems {
		q = q.Preload("Items")
	}
	var order model.Order
	if err := q.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	return &order, nil
}

func (r *orderRepository) GetByCartID(ctx context.Context, cartID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("cart_id = ?", cartID).
		Order("created_at DESC").
		First(&order).Error
	if err != nil {
		return nil, notFoundOr(err, "order not found for cart")
	}
	return &order, nil
}

func (r *orderRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("gateway_session_id = ?", sessionID).
		First(&order).Error
	if err != nil {
		return nil, notFoundOr(err, "order not found for checkout session")
	}
	return &order, nil
}

// ListByUser 用户订单列表，新单在前
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// ListActive 厨房队列：pending/preparing/ready，先进先出
func (r *orderRepository) ListActive(ctx context.Context) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("order_status IN ?", model.ActiveStatuses).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// statusTimestampColumn 各状态对应的时间戳字段；无则为空
func statusTimestampColumn(status model.OrderStatus) string {
	switch status {
	case model.OrderStatusConfirmed:
		return "confirmed_at"
	case model.OrderStatusPreparing:
		return "preparing_at"
	case model.OrderStatusReady:
		return "ready_at"
	case model.OrderStatusCompleted:
		return "completed_at"
	}
	return ""
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, at time.Time) error {
	updates := map[string]any{"order_status": status, "updated_at": at}
	if col := statusTimestampColumn(status); col != "" {
		updates[col] = at
	}
	return r.applyUpdates(ctx, id, updates)
}

func (r *orderRepository) UpdatePayment(ctx context.Context, id string, status model.PaymentStatus, method *model.PaymentMethod, sessionID *string) error {
	updates := map[string]any{"payment_status": status, "updated_at": time.Now()}
	if method != nil {
		updates["payment_method"] = *method
	}
	if sessionID != nil {
		updates["gateway_session_id"] = *sessionID
	}
	return r.applyUpdates(ctx, id, updates)
}

func (r *orderRepository) UpdatePricing(ctx context.Context, id string, p PricingUpdate) error {
	return r.applyUpdates(ctx, id, map[string]any{
		"subtotal":     p.Subtotal,
		"tax":          p.Tax,
		"delivery_fee": p.DeliveryFee,
		"discount":     p.Discount,
		"total_amount": p.TotalAmount,
		"updated_at":   time.Now(),
	})
}

func (r *orderRepository) UpdateCustomerInfo(ctx context.Context, id string, info CustomerInfo) error {
	return r.applyUpdates(ctx, id, map[string]any{
		"customer_name":    info.Name,
		"customer_phone":   info.Phone,
		"customer_email":   info.Email,
		"delivery_address": info.DeliveryAddress,
		"updated_at":       time.Now(),
	})
}

func (r *orderRepository) LinkUser(ctx context.Context, id string, userID string) error {
	return r.applyUpdates(ctx, id, map[string]any{
		"user_kind":  model.OwnerKindRegistered,
		"user_id":    userID,
		"updated_at": time.Now(),
	})
}

func (r *orderRepository) SetRewardEarned(ctx context.Context, id string, points int) error {
	return r.applyUpdates(ctx, id, map[string]any{
		"reward_points_earned": points,
		"updated_at":           time.Now(),
	})
}

// applyUpdates 定向部分更新；目标不存在返回 not-found
func (r *orderRepository) applyUpdates(ctx context.Context, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("order not found")
	}
	return nil
}

func (r *orderRepository) Search(ctx context.Context, filter OrderFilter, opts SearchOptions) ([]*model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.OrderStatus != "" {
		q = q.Where("order_status = ?", filter.OrderStatus)
	}
	if filter.PaymentStatus != "" {
		q = q.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.ServiceType != "" {
		q = q.Where("service_type = ?", filter.ServiceType)
	}
	if filter.IsRewardOrder != nil {
		q = q.Where("is_reward_order = ?", *filter.IsRewardOrder)
	}
	if filter.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		q = q.Where("created_at < ?", *filter.CreatedTo)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	sort := opts.Sort
	if sort == "" {
		sort = "created_at DESC"
	}

	var orders []*model.Order
	err := q.Preload("Items").
		Order(sort).
		Offset(opts.Skip).
		Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&model.Order{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("order not found")
		}
		return tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error
	})
}

// notFoundOr 把 gorm 的 not-found 映射到业务错误
func notFoundOr(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}
