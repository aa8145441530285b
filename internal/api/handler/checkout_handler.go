package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/dineflow/pkg/response"
)

type createSessionRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// CreateSession 创建托管收银台会话，返回跳转地址
// @Summary 发起在线支付
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body createSessionRequest true "订单ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/checkout/create-session [post]
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	url, err := h.checkoutSvc.CreateSession(c.Request.Context(), req.OrderID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"redirect_url": url})
}

// Webhook 网关回调。验签需要原始报文，任何失败都返回非 2xx 让网关重投
// @Summary 支付网关回调
// @Tags 支付
// @Accept json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/checkout/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "cannot read request body")
		return
	}
	sig := c.GetHeader("X-Gateway-Signature")
	if err := h.checkoutSvc.HandleWebhook(c.Request.Context(), rawBody, sig); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}
