package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/d60-Lab/dineflow/internal/cache"
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/internal/pricing"
	"github.com/d60-Lab/dineflow/internal/repository"
	"github.com/d60-Lab/dineflow/pkg/apperr"
	"github.com/d60-Lab/dineflow/pkg/logger"
)

// ProductCatalog 商品目录（外部协作方），用于补齐行项展示信息
type ProductCatalog interface {
	Details(ctx context.Context, productID string) (*model.ProductDetails, error)
}

// OrderData 下单公共载荷（购物车/直接下单共用）
type OrderData struct {
	Owner         model.OwnerRef      `json:"owner"`
	ServiceType   model.ServiceType   `json:"service_type"`
	TableNumber   *string             `json:"table_number"`
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	Discount      float64             `json:"discount"`
	IsRewardOrder bool                `json:"is_reward_order"`

	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerEmail   string `json:"customer_email"`
	DeliveryAddress string `json:"delivery_address"`
}

// DirectItem 直接下单（无购物车）的行项
type DirectItem struct {
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	SelectedOptions model.OptionMap `json:"selected_options"`
	UnitPrice       float64         `json:"unit_price"`
}

// OrderService 订单服务：创建、状态机、支付与搜索
type OrderService interface {
	CreateFromCart(ctx context.Context, cart *model.Cart, data OrderData) (*model.Order, error)
	CreateDirect(ctx context.Context, items []DirectItem, data OrderData) (*model.Order, error)
	GetOrder(ctx context.Context, id string, populateItems bool) (*model.Order, error)
	GetByCart(ctx context.Context, cartID string) (*model.Order, error)
	ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error)
	ListActive(ctx context.Context) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus, changedBy string) (*model.Order, error)
	UpdatePayment(ctx context.Context, id string, status model.PaymentStatus, method *model.PaymentMethod) (*model.Order, error)
	UpdatePricing(ctx context.Context, id string, p repository.PricingUpdate) (*model.Order, error)
	UpdateCustomerInfo(ctx context.Context, id string, info repository.CustomerInfo) (*model.Order, error)
	LinkUser(ctx context.Context, id string, userID string) (*model.Order, error)
	Search(ctx context.Context, filter repository.OrderFilter, opts repository.SearchOptions) ([]*model.Order, int64, error)
	Delete(ctx context.Context, id string) error
}

// statusTransitions 状态机：pending→confirmed→preparing→ready→completed，
// 非终态均可转 cancelled，终态不可再变更
var statusTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:   {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed: {model.OrderStatusPreparing, model.OrderStatusCancelled},
	model.OrderStatusPreparing: {model.OrderStatusReady, model.OrderStatusCancelled},
	model.OrderStatusReady:     {model.OrderStatusCompleted, model.OrderStatusCancelled},
	model.OrderStatusCompleted: {},
	model.OrderStatusCancelled: {},
}

func canTransition(from, to model.OrderStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type orderService struct {
	repo      repository.OrderRepository
	catalog   ProductCatalog
	strategy  PricingSelector
	statusLog *StatusLogWriter
	kitchen   *cache.KitchenQueue
}

// NewOrderService 仓储、目录、计价策略、状态日志与缓存均构造注入
func NewOrderService(repo repository.OrderRepository, catalog ProductCatalog, strategy PricingSelector, statusLog *StatusLogWriter, kitchen *cache.KitchenQueue) OrderService {
	return &orderService{repo: repo, catalog: catalog, strategy: strategy, statusLog: statusLog, kitchen: kitchen}
}

func validateOrderData(data OrderData) error {
	if !data.ServiceType.Valid() {
		return apperr.Validation("invalid service type")
	}
	if data.ServiceType == model.ServiceTypeDineIn && (data.TableNumber == nil || *data.TableNumber == "") {
		return apperr.Validation("table number is required for dine-in orders")
	}
	if data.PaymentMethod == "" {
		return apperr.Validation("payment method is required")
	}
	if data.Owner.ID == "" {
		return apperr.Validation("order owner is required")
	}
	if data.Owner.Kind != model.OwnerKindRegistered && data.Owner.Kind != model.OwnerKindGuest {
		return apperr.Validation("owner kind must be registered or guest")
	}
	if data.Discount < 0 {
		return apperr.Validation("discount must be non-negative")
	}
	return nil
}

// CreateFromCart 从购物车结账：行项投影 + 商品信息补齐 + 计价 + 落库
func (s *orderService) CreateFromCart(ctx context.Context, cart *model.Cart, data OrderData) (*model.Order, error) {
	if cart == nil || len(cart.Items) == 0 {
		return nil, apperr.Validation("cart is empty")
	}
	if err := validateOrderData(data); err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	items := make([]model.OrderItem, 0, len(cart.Items))
	for _, ci := range cart.Items {
		if ci.Quantity < 1 {
			return nil, apperr.Newf(apperr.KindValidation, "item %s: quantity must be at least 1", ci.ProductID)
		}
		item := model.OrderItem{
			ID:              uuid.New().String(),
			OrderID:         orderID,
			ProductID:       ci.ProductID,
			Quantity:        ci.Quantity,
			SelectedOptions: ci.SelectedOptions,
			UnitPrice:       ci.UnitPrice,
		}
		if s.catalog != nil {
			if d, err := s.catalog.Details(ctx, ci.ProductID); err == nil && d != nil {
				item.Name = d.Name
				item.ImageURL = d.ImageURL
			}
		}
		if item.Name == "" {
			item.Name = ci.ProductID
		}
		items = append(items, item)
	}

	return s.persist(ctx, orderID, &cart.ID, items, data)
}

// CreateDirect 直接下单（收银/积分兑换），无购物车引用
func (s *orderService) CreateDirect(ctx context.Context, directItems []DirectItem, data OrderData) (*model.Order, error) {
	if len(directItems) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	if err := validateOrderData(data); err != nil {
		return nil, err
	}

	orderID := uuid.New().String()
	items := make([]model.OrderItem, 0, len(directItems))
	for _, di := range directItems {
		if di.Quantity < 1 {
			return nil, apperr.Newf(apperr.KindValidation, "item %s: quantity must be at least 1", di.ProductID)
		}
		item := model.OrderItem{
			ID:              uuid.New().String(),
			OrderID:         orderID,
			ProductID:       di.ProductID,
			Quantity:        di.Quantity,
			SelectedOptions: di.SelectedOptions,
			UnitPrice:       di.UnitPrice,
		}
		if s.catalog != nil {
			if d, err := s.catalog.Details(ctx, di.ProductID); err == nil && d != nil {
				item.Name = d.Name
				item.ImageURL = d.ImageURL
			}
		}
		if item.Name == "" {
			item.Name = di.ProductID
		}
		items = append(items, item)
	}

	return s.persist(ctx, orderID, nil, items, data)
}

func (s *orderService) persist(ctx context.Context, orderID string, cartID *string, items []model.OrderItem, data OrderData) (*model.Order, error) {
	breakdown, pointsUsed, err := s.strategy.Price(items, data.ServiceType, data.Discount, data.IsRewardOrder)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &model.Order{
		ID:              orderID,
		CartID:          cartID,
		Owner:           data.Owner,
		ServiceType:     data.ServiceType,
		TableNumber:     data.TableNumber,
		Items:           items,
		Subtotal:        breakdown.Subtotal,
		Tax:             breakdown.Tax,
		DeliveryFee:     breakdown.DeliveryFee,
		Discount:        breakdown.Discount,
		TotalAmount:     breakdown.TotalAmount,
		PaymentStatus:   model.PaymentStatusUnpaid,
		PaymentMethod:   data.PaymentMethod,
		CustomerName:    data.CustomerName,
		CustomerPhone:   data.CustomerPhone,
		CustomerEmail:   data.CustomerEmail,
		DeliveryAddress: data.DeliveryAddress,
		OrderStatus:     model.OrderStatusPending,
		PointsUsed:      pointsUsed,
		IsRewardOrder:   data.IsRewardOrder,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	s.kitchen.Invalidate(ctx)
	logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("service_type", string(order.ServiceType)),
		zap.Float64("total", order.TotalAmount),
		zap.Bool("reward", order.IsRewardOrder))
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, id string, populateItems bool) (*model.Order, error) {
	return s.repo.GetByID(ctx, id, populateItems)
}

func (s *orderService) GetByCart(ctx context.Context, cartID string) (*model.Order, error) {
	return s.repo.GetByCartID(ctx, cartID)
}

func (s *orderService) ListUserOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListActive 厨房队列，带 cache-aside
func (s *orderService) ListActive(ctx context.Context) ([]*model.Order, error) {
	if orders, ok := s.kitchen.Get(ctx); ok {
		return orders, nil
	}
	orders, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.kitchen.Set(ctx, orders)
	return orders, nil
}

// UpdateStatus 校验状态机后落库；流转记录异步写入审计日志
func (s *orderService) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, changedBy string) (*model.Order, error) {
	order, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if !canTransition(order.OrderStatus, status) {
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"cannot transition order from %s to %s", order.OrderStatus, status)
	}

	now := time.Now()
	if err := s.repo.UpdateStatus(ctx, id, status, now); err != nil {
		return nil, err
	}
	if s.statusLog != nil {
		s.statusLog.Enqueue(id, order.OrderStatus, status, changedBy)
	}
	s.kitchen.Invalidate(ctx)

	order.OrderStatus = status
	order.UpdatedAt = now
	switch status {
	case model.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case model.OrderStatusPreparing:
		order.PreparingAt = &now
	case model.OrderStatusReady:
		order.ReadyAt = &now
	case model.OrderStatusCompleted:
		order.CompletedAt = &now
	}
	return order, nil
}

// UpdatePayment 直接设置支付状态（网关回调与人工修正共用，不走状态机）
func (s *orderService) UpdatePayment(ctx context.Context, id string, status model.PaymentStatus, method *model.PaymentMethod) (*model.Order, error) {
	switch status {
	case model.PaymentStatusUnpaid, model.PaymentStatusPaid, model.PaymentStatusRefunded, model.PaymentStatusFailed:
	default:
		return nil, apperr.Validation("invalid payment status")
	}
	if err := s.repo.UpdatePayment(ctx, id, status, method, nil); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id, false)
}

// UpdatePricing 后台价格修正：分量非负，总价由分量重算；已支付订单拒绝改价
func (s *orderService) UpdatePricing(ctx context.Context, id string, p repository.PricingUpdate) (*model.Order, error) {
	if p.Subtotal < 0 || p.Tax < 0 || p.DeliveryFee < 0 || p.Discount < 0 {
		return nil, apperr.Validation("pricing components must be non-negative")
	}
	order, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, apperr.Validation("cannot reprice a paid order")
	}

	p.TotalAmount = pricing.Total(p.Subtotal, p.Tax, p.DeliveryFee, p.Discount)
	if p.TotalAmount < 0 {
		return nil, apperr.Validation("discount exceeds order total")
	}
	if err := s.repo.UpdatePricing(ctx, id, p); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id, false)
}

func (s *orderService) UpdateCustomerInfo(ctx context.Context, id string, info repository.CustomerInfo) (*model.Order, error) {
	if err := s.repo.UpdateCustomerInfo(ctx, id, info); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id, false)
}

// LinkUser 游客注册后挂接账号；已挂接注册用户的订单拒绝二次挂接
func (s *orderService) LinkUser(ctx context.Context, id string, userID string) (*model.Order, error) {
	if userID == "" {
		return nil, apperr.Validation("user id is required")
	}
	order, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if order.Owner.Kind == model.OwnerKindRegistered {
		return nil, apperr.Validation("order is already linked to a registered user")
	}
	if err := s.repo.LinkUser(ctx, id, userID); err != nil {
		return nil, err
	}
	order.Owner = model.OwnerRef{Kind: model.OwnerKindRegistered, ID: userID}
	return order, nil
}

func (s *orderService) Search(ctx context.Context, filter repository.OrderFilter, opts repository.SearchOptions) ([]*model.Order, int64, error) {
	return s.repo.Search(ctx, filter, opts)
}

func (s *orderService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.kitchen.Invalidate(ctx)
	return nil
}
