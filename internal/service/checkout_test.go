package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/d60-Lab/dineflow/config"
	"github.com/d60-Lab/dineflow/internal/gateway"
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/internal/pricing"
	"github.com/d60-Lab/dineflow/internal/repository"
	"github.com/d60-Lab/dineflow/pkg/apperr"
)

const testWebhookSecret = "whsec_test"

// fakeGateway 记录请求并返回固定会话
type fakeGateway struct {
	lastReq gateway.SessionRequest
	session gateway.Session
	err     error
}

func (f *fakeGateway) CreateSession(_ context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &f.session, nil
}

type checkoutFixture struct {
	db      *gorm.DB
	orders  repository.OrderRepository
	loyalty repository.LoyaltyRepository
	events  repository.WebhookEventRepository
	gw      *fakeGateway
	svc     *CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	db := setupServiceDB(t)
	f := &checkoutFixture{
		db:      db,
		orders:  repository.NewOrderRepository(db),
		loyalty: repository.NewLoyaltyRepository(db),
		events:  repository.NewWebhookEventRepository(db),
		gw:      &fakeGateway{session: gateway.Session{ID: "cs_123", URL: "https://pay.example/cs_123"}},
	}
	f.svc = NewCheckoutService(db, f.orders, f.loyalty, f.events, f.gw, config.GatewayConfig{
		WebhookSecret:      testWebhookSecret,
		Currency:           "usd",
		SuccessURL:         "https://shop.example/success",
		CancelURL:          "https://shop.example/cancel",
		SignatureTolerance: 5 * time.Minute,
	}, 1)
	return f
}

func (f *checkoutFixture) seedOrder(t *testing.T, mut ...func(*model.Order)) *model.Order {
	t.Helper()
	now := time.Now()
	order := &model.Order{
		ID:            fmt.Sprintf("order-%d", time.Now().UnixNano()),
		Owner:         model.OwnerRef{Kind: model.OwnerKindRegistered, ID: "user-1"},
		ServiceType:   model.ServiceTypePickup,
		Items: []model.OrderItem{
			{ID: fmt.Sprintf("item-%d", now.UnixNano()), ProductID: "p1", Name: "Margherita", Quantity: 2, UnitPrice: 10},
		},
		Subtotal:      20,
		Tax:           2,
		TotalAmount:   22,
		PaymentStatus: model.PaymentStatusUnpaid,
		PaymentMethod: model.PaymentMethodOnline,
		OrderStatus:   model.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, m := range mut {
		m(order)
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	require.NoError(t, f.orders.Create(context.Background(), order))
	return order
}

func signedEvent(eventID, eventType, sessionID string) (body []byte, header string) {
	body = []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"data":{"session_id":%q,"metadata":{}}}`,
		eventID, eventType, sessionID))
	header = gateway.Sign([]byte(testWebhookSecret), time.Now(), body)
	return body, header
}

func TestCreateSession(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)

	url, err := f.svc.CreateSession(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_123", url)

	// 金额按最小货币单位传网关，税费单列
	require.Len(t, f.gw.lastReq.Items, 2)
	assert.EqualValues(t, 1000, f.gw.lastReq.Items[0].UnitAmount)
	assert.Equal(t, "Tax", f.gw.lastReq.Items[1].Name)
	assert.EqualValues(t, 200, f.gw.lastReq.Items[1].UnitAmount)
	assert.Equal(t, "usd", f.gw.lastReq.Currency)
	assert.Equal(t, order.ID, f.gw.lastReq.Metadata["order_id"])

	got, err := f.orders.GetBySessionID(ctx, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, model.PaymentStatusUnpaid, got.PaymentStatus)
}

func TestCreateSessionManifestMatchesTotal(t *testing.T) {
	f := newCheckoutFixture(t)
	order := f.seedOrder(t, func(o *model.Order) {
		o.Discount = 5
		o.TotalAmount = 17 // 20 + 2 - 5
	})

	_, err := f.svc.CreateSession(context.Background(), order.ID)
	require.NoError(t, err)

	// 折扣以负数行单列，网关收款金额与订单总价一致
	var sum int64
	for _, it := range f.gw.lastReq.Items {
		sum += int64(it.Quantity) * it.UnitAmount
	}
	assert.Equal(t, pricing.MinorUnits(order.TotalAmount), sum)

	last := f.gw.lastReq.Items[len(f.gw.lastReq.Items)-1]
	assert.Equal(t, "Discount", last.Name)
	assert.EqualValues(t, -500, last.UnitAmount)
}

func TestCreateSessionRejectsZeroTotal(t *testing.T) {
	f := newCheckoutFixture(t)
	order := f.seedOrder(t, func(o *model.Order) {
		o.IsRewardOrder = true
		o.Subtotal, o.Tax, o.TotalAmount = 0, 0, 0
		o.PointsUsed = 20
	})

	// 兑换单无应收金额，不应发起收银台会话
	_, err := f.svc.CreateSession(context.Background(), order.ID)
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateSessionGatewayDown(t *testing.T) {
	f := newCheckoutFixture(t)
	order := f.seedOrder(t)
	f.gw.err = apperr.Upstream("gateway request failed", nil)

	_, err := f.svc.CreateSession(context.Background(), order.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstreamGateway))
}

func TestHandleWebhookMarksPaidAndCredits(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	_, err := f.svc.CreateSession(ctx, order.ID)
	require.NoError(t, err)

	body, header := signedEvent("evt_1", gateway.EventCheckoutCompleted, "cs_123")
	require.NoError(t, f.svc.HandleWebhook(ctx, body, header))

	got, err := f.orders.GetByID(ctx, order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, model.PaymentMethodOnline, got.PaymentMethod)
	assert.Equal(t, 22, got.RewardPointsEarned)

	balance, err := f.loyalty.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 22, balance)
}

func TestHandleWebhookReplayIsIdempotent(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	_, err := f.svc.CreateSession(ctx, order.ID)
	require.NoError(t, err)

	body, header := signedEvent("evt_1", gateway.EventCheckoutCompleted, "cs_123")
	require.NoError(t, f.svc.HandleWebhook(ctx, body, header))
	// 网关重投同一事件
	require.NoError(t, f.svc.HandleWebhook(ctx, body, header))

	balance, err := f.loyalty.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 22, balance)

	entries, err := f.loyalty.Entries(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHandleWebhookBadSignature(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t)
	_, err := f.svc.CreateSession(ctx, order.ID)
	require.NoError(t, err)

	body, _ := signedEvent("evt_1", gateway.EventCheckoutCompleted, "cs_123")
	tampered := gateway.Sign([]byte("wrong-secret"), time.Now(), body)

	err = f.svc.HandleWebhook(ctx, body, tampered)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidSignature))

	// 验签失败不落任何状态
	got, err := f.orders.GetByID(ctx, order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusUnpaid, got.PaymentStatus)
	seen, err := f.events.Seen(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHandleWebhookUnknownSessionRollsBack(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	body, header := signedEvent("evt_x", gateway.EventCheckoutCompleted, "cs_unknown")
	err := f.svc.HandleWebhook(ctx, body, header)
	assert.True(t, apperr.IsNotFound(err))

	// 整体回滚：事件记录不留存，后续补投可重新处理
	seen, err := f.events.Seen(ctx, "evt_x")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHandleWebhookIgnoresOtherEventTypes(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	body, header := signedEvent("evt_2", "checkout.session.expired", "cs_123")
	require.NoError(t, f.svc.HandleWebhook(ctx, body, header))

	seen, err := f.events.Seen(ctx, "evt_2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestHandleWebhookRewardOrderSkipsCredit(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := f.seedOrder(t, func(o *model.Order) {
		o.IsRewardOrder = true
		o.Subtotal, o.Tax, o.TotalAmount = 0, 0, 0
		o.PointsUsed = 20
	})
	// 兑换单不走收银台，会话 ID 由历史数据/人工流程带入
	sessionID := "cs_reward"
	require.NoError(t, f.orders.UpdatePayment(ctx, order.ID, model.PaymentStatusUnpaid, nil, &sessionID))

	body, header := signedEvent("evt_r", gateway.EventCheckoutCompleted, "cs_reward")
	require.NoError(t, f.svc.HandleWebhook(ctx, body, header))

	got, err := f.orders.GetByID(ctx, order.ID, false)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, got.PaymentStatus)
	assert.Zero(t, got.RewardPointsEarned)

	balance, err := f.loyalty.Balance(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, balance)
}
