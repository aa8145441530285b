package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/d60-Lab/dineflow/config"
	"github.com/d60-Lab/dineflow/pkg/apperr"
)

// LineItem 收银台账单行，金额为最小货币单位（分）
type LineItem struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}

// SessionRequest 请求托管收银台会话；订单 ID 放在 metadata 里，
// 回调时据此关联回订单
type SessionRequest struct {
	Currency   string            `json:"currency"`
	Items      []LineItem        `json:"line_items"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata"`
}

// Session 网关侧的托管收银台实例
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client 外部支付网关客户端
type Client interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

type httpClient struct {
	baseURL   string
	secretKey string
	hc        *http.Client
}

// NewHTTPClient 按网关配置构造生产环境客户端
func NewHTTPClient(cfg config.GatewayConfig) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		hc:        &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream("gateway request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperr.Upstream("gateway rejected session request",
			fmt.Errorf("status %d: %s", resp.StatusCode, data))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, apperr.Upstream("gateway returned malformed session", err)
	}
	if session.ID == "" || session.URL == "" {
		return nil, apperr.Upstream("gateway session missing id or url", nil)
	}
	return &session, nil
}
