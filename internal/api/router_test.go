package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/dineflow/config"
	"github.com/d60-Lab/dineflow/internal/api/handler"
	"github.com/d60-Lab/dineflow/internal/gateway"
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/internal/repository"
	"github.com/d60-Lab/dineflow/internal/service"
)

const testSecret = "whsec_router_test"

type stubGateway struct{}

func (stubGateway) CreateSession(_ context.Context, _ gateway.SessionRequest) (*gateway.Session, error) {
	return &gateway.Session{ID: "cs_router", URL: "https://pay.example/cs_router"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode, CheckoutRPS: 100, CheckoutBurst: 100},
		JWT:    config.JWTConfig{Secret: "test-jwt-secret", TTL: time.Hour, Issuer: "dineflow-test"},
		Gateway: config.GatewayConfig{
			WebhookSecret:      testSecret,
			SignatureTolerance: 5 * time.Minute,
		},
		Pricing: config.PricingConfig{TaxRate: 0.1, DeliveryFee: 2, PointsPerUnit: 1},
	}
}

func setupRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         glogger.Default.LogMode(glogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Order{}, &model.OrderItem{}, &model.StatusLog{},
		&model.WebhookEvent{}, &model.LoyaltyAccount{}, &model.LoyaltyEntry{},
		&model.Staff{},
	))

	cfg := testConfig()
	orderRepo := repository.NewOrderRepository(db)
	staffRepo := repository.NewStaffRepository(db)

	seedStaff(t, staffRepo, "admin-1", "admin", model.StaffRoleAdmin)
	seedStaff(t, staffRepo, "cook-1", "cook", model.StaffRoleKitchen)

	strategy := service.ConfigSelector{
		TaxRate:       cfg.Pricing.TaxRate,
		DeliveryFee:   cfg.Pricing.DeliveryFee,
		PointsPerUnit: cfg.Pricing.PointsPerUnit,
	}
	orderSvc := service.NewOrderService(orderRepo, nil, strategy, nil, nil)
	checkoutSvc := service.NewCheckoutService(db, orderRepo,
		repository.NewLoyaltyRepository(db),
		repository.NewWebhookEventRepository(db),
		stubGateway{}, cfg.Gateway, cfg.Pricing.PointsPerUnit)

	h := handler.NewHandler(orderSvc, checkoutSvc, staffRepo, cfg.JWT)
	return NewRouter(cfg, h), db
}

func seedStaff(t *testing.T, repo repository.StaffRepository, id, username string, role model.StaffRole) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &model.Staff{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}))
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"username": username, "password": "password123"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)
	return resp.Data.Token
}

func directOrderBody() gin.H {
	return gin.H{
		"items": []gin.H{
			{"product_id": "p1", "quantity": 2, "unit_price": 10.0},
		},
		"order": gin.H{
			"owner":          gin.H{"kind": "guest", "id": "sess-1"},
			"service_type":   "pickup",
			"payment_method": "online",
			"customer_name":  "Alice",
		},
	}
}

func createOrder(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/orders/direct", "", directOrderBody())
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data model.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return resp.Data.ID
}

func TestCreateAndGetOrder(t *testing.T) {
	r, _ := setupRouter(t)
	id := createOrder(t, r)

	w := doJSON(t, r, http.MethodGet, "/api/v1/orders/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data model.Order `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.OrderStatusPending, resp.Data.OrderStatus)
	assert.Equal(t, 22.0, resp.Data.TotalAmount)
	assert.Len(t, resp.Data.Items, 1)

	w = doJSON(t, r, http.MethodGet, "/api/v1/orders/no-such-order", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	r, _ := setupRouter(t)

	// 行项为空
	body := directOrderBody()
	body["items"] = []gin.H{}
	w := doJSON(t, r, http.MethodPost, "/api/v1/orders/direct", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 未知履约方式被自定义校验器拦下
	body = directOrderBody()
	body["order"].(gin.H)["service_type"] = "teleport"
	w = doJSON(t, r, http.MethodPost, "/api/v1/orders/direct", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpointAuth(t *testing.T) {
	r, _ := setupRouter(t)
	id := createOrder(t, r)

	// 未带令牌
	w := doJSON(t, r, http.MethodPatch, "/api/v1/orders/"+id+"/status", "",
		gin.H{"status": "confirmed"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 厨房角色可流转状态
	token := login(t, r, "cook")
	w = doJSON(t, r, http.MethodPatch, "/api/v1/orders/"+id+"/status", token,
		gin.H{"status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code)

	// 跳状态被拒
	w = doJSON(t, r, http.MethodPatch, "/api/v1/orders/"+id+"/status", token,
		gin.H{"status": "completed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminOnlyEndpoints(t *testing.T) {
	r, _ := setupRouter(t)
	id := createOrder(t, r)

	cook := login(t, r, "cook")
	w := doJSON(t, r, http.MethodDelete, "/api/v1/orders/"+id, cook, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := login(t, r, "admin")
	w = doJSON(t, r, http.MethodPost, "/api/v1/orders/search", admin,
		gin.H{"filter": gin.H{"order_status": "pending"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/orders/"+id, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/orders/"+id, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutAndWebhookFlow(t *testing.T) {
	r, db := setupRouter(t)
	id := createOrder(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/checkout/create-session", "",
		gin.H{"order_id": id})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://pay.example/cs_router")

	body := []byte(fmt.Sprintf(
		`{"id":"evt_http","type":"checkout.session.completed","data":{"session_id":"cs_router","metadata":{"order_id":%q}}}`, id))
	sig := gateway.Sign([]byte(testSecret), time.Now(), body)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/webhook", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", sig)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var order model.Order
	require.NoError(t, db.First(&order, "id = ?", id).Error)
	assert.Equal(t, model.PaymentStatusPaid, order.PaymentStatus)

	// 坏签名直接拒绝
	req = httptest.NewRequest(http.MethodPost, "/api/v1/checkout/webhook", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", "t=1,v1=deadbeef")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/login", "",
		gin.H{"username": "ghost", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
