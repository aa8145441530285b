package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/dineflow/config"
	"github.com/d60-Lab/dineflow/internal/gateway"
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/internal/pricing"
	"github.com/d60-Lab/dineflow/internal/repository"
	"github.com/d60-Lab/dineflow/pkg/apperr"
	"github.com/d60-Lab/dineflow/pkg/logger"
)

// CheckoutService 支付对账：创建托管收银台会话，消费网关回调
type CheckoutService struct {
	db            *gorm.DB
	orders        repository.OrderRepository
	loyalty       repository.LoyaltyRepository
	events        repository.WebhookEventRepository
	gw            gateway.Client
	cfg           config.GatewayConfig
	pointsPerUnit float64
}

func NewCheckoutService(db *gorm.DB, orders repository.OrderRepository, loyalty repository.LoyaltyRepository, events repository.WebhookEventRepository, gw gateway.Client, cfg config.GatewayConfig, pointsPerUnit float64) *CheckoutService {
	return &CheckoutService{
		db:            db,
		orders:        orders,
		loyalty:       loyalty,
		events:        events,
		gw:            gw,
		cfg:           cfg,
		pointsPerUnit: pointsPerUnit,
	}
}

// CreateSession 请求托管收银台会话并把会话 ID 记到订单上；支付状态保持 unpaid
func (s *CheckoutService) CreateSession(ctx context.Context, orderID string) (string, error) {
	order, err := s.orders.GetByID(ctx, orderID, true)
	if err != nil {
		return "", err
	}
	if order.TotalAmount <= 0 {
		// 积分兑换单货币总额为零，没有可收款金额
		return "", apperr.Validation("order has no amount due")
	}

	items := make([]gateway.LineItem, 0, len(order.Items)+3)
	for _, it := range order.Items {
		items = append(items, gateway.LineItem{
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitAmount: pricing.MinorUnits(it.UnitPrice),
		})
	}
	// 税费、配送费、折扣均单列，网关侧金额合计与订单总价一致
	if order.Tax > 0 {
		items = append(items, gateway.LineItem{Name: "Tax", Quantity: 1, UnitAmount: pricing.MinorUnits(order.Tax)})
	}
	if order.DeliveryFee > 0 {
		items = append(items, gateway.LineItem{Name: "Delivery fee", Quantity: 1, UnitAmount: pricing.MinorUnits(order.DeliveryFee)})
	}
	if order.Discount > 0 {
		items = append(items, gateway.LineItem{Name: "Discount", Quantity: 1, UnitAmount: -pricing.MinorUnits(order.Discount)})
	}

	currency := s.cfg.Currency
	if currency == "" {
		currency = "usd"
	}
	session, err := s.gw.CreateSession(ctx, gateway.SessionRequest{
		Currency:   currency,
		Items:      items,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
		Metadata:   map[string]string{"order_id": order.ID},
	})
	if err != nil {
		return "", err
	}

	if err := s.orders.UpdatePayment(ctx, order.ID, model.PaymentStatusUnpaid, nil, &session.ID); err != nil {
		return "", err
	}
	logger.Info("checkout session created",
		zap.String("order_id", order.ID), zap.String("session_id", session.ID))
	return session.URL, nil
}

// HandleWebhook 验签后处理网关回调。checkout.session.completed 在一个事务内：
// 记录事件 ID（重放则整体跳过）→ 标记已支付 → 积分入账。任一步失败整体回滚，
// HTTP 层返回 5xx 触发网关重投。
func (s *CheckoutService) HandleWebhook(ctx context.Context, rawBody []byte, sigHeader string) error {
	if err := gateway.VerifySignature([]byte(s.cfg.WebhookSecret), sigHeader, rawBody, s.cfg.SignatureTolerance); err != nil {
		return err
	}

	var event gateway.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, "malformed webhook payload", err)
	}
	if event.ID == "" {
		return apperr.Validation("webhook event missing id")
	}
	if event.Type != gateway.EventCheckoutCompleted {
		logger.Info("webhook event ignored", zap.String("type", event.Type))
		return nil
	}
	if event.Data.SessionID == "" {
		return apperr.Validation("webhook event missing session id")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := s.events.WithTx(tx).Record(ctx, event.ID, event.Type, event.Data.SessionID)
		if err != nil {
			return err
		}
		if !created {
			// 重放：订单已是 paid，积分已入账过一次
			logger.Info("webhook replay skipped", zap.String("event_id", event.ID))
			return nil
		}

		txOrders := repository.NewOrderRepository(tx)
		order, err := txOrders.GetBySessionID(ctx, event.Data.SessionID)
		if err != nil {
			return err
		}

		method := model.PaymentMethodOnline
		if err := txOrders.UpdatePayment(ctx, order.ID, model.PaymentStatusPaid, &method, nil); err != nil {
			return err
		}

		// 兑换单不再产生奖励积分
		if !order.IsRewardOrder {
			points := pricing.EarnedPoints(order.TotalAmount, s.pointsPerUnit)
			if points > 0 {
				if err := s.loyalty.WithTx(tx).Credit(ctx, order.Owner.ID, order.ID, event.ID, points, "purchase"); err != nil {
					return err
				}
				if err := txOrders.SetRewardEarned(ctx, order.ID, points); err != nil {
					return err
				}
			}
		}

		logger.Info("payment reconciled",
			zap.String("order_id", order.ID),
			zap.String("event_id", event.ID),
			zap.Float64("amount", order.TotalAmount))
		return nil
	})
}
