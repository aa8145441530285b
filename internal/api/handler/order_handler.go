package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/dineflow/internal/api/middleware"
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/internal/repository"
	"github.com/d60-Lab/dineflow/internal/service"
	"github.com/d60-Lab/dineflow/pkg/response"
)

type ownerPayload struct {
	Kind model.OwnerKind `json:"kind" binding:"required,oneof=registered guest"`
	ID   string          `json:"id" binding:"required"`
}

type orderDataPayload struct {
	Owner           ownerPayload        `json:"owner" binding:"required"`
	ServiceType     model.ServiceType   `json:"service_type" binding:"required,servicetype"`
	TableNumber     *string             `json:"table_number"`
	PaymentMethod   model.PaymentMethod `json:"payment_method" binding:"required,oneof=cash card online"`
	Discount        float64             `json:"discount" binding:"gte=0"`
	IsRewardOrder   bool                `json:"is_reward_order"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	CustomerEmail   string              `json:"customer_email"`
	DeliveryAddress string              `json:"delivery_address"`
}

func (p orderDataPayload) toOrderData() service.OrderData {
	return service.OrderData{
		Owner:           model.OwnerRef{Kind: p.Owner.Kind, ID: p.Owner.ID},
		ServiceType:     p.ServiceType,
		TableNumber:     p.TableNumber,
		PaymentMethod:   p.PaymentMethod,
		Discount:        p.Discount,
		IsRewardOrder:   p.IsRewardOrder,
		CustomerName:    p.CustomerName,
		CustomerPhone:   p.CustomerPhone,
		CustomerEmail:   p.CustomerEmail,
		DeliveryAddress: p.DeliveryAddress,
	}
}

type createFromCartRequest struct {
	Cart  model.Cart       `json:"cart" binding:"required"`
	Order orderDataPayload `json:"order" binding:"required"`
}

// CreateFromCart 从购物车创建订单
// @Summary 购物车结账下单
// @Tags 订单
// @Accept json
// @Produce json
// @Param request body createFromCartRequest true "购物车与下单信息"
// @Success 201 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Router /api/v1/orders/from-cart [post]
func (h *Handler) CreateFromCart(c *gin.Context) {
	var req createFromCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderSvc.CreateFromCart(c.Request.Context(), &req.Cart, req.Order.toOrderData())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, order)
}

type createDirectRequest struct {
	Items []service.DirectItem `json:"items" binding:"required,min=1"`
	Order orderDataPayload     `json:"order" binding:"required"`
}

// CreateDirect 直接创建订单（收银/积分兑换）
// @Summary 直接下单
// @Tags 订单
// @Accept json
// @Produce json
// @Param request body createDirectRequest true "行项与下单信息"
// @Success 201 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Router /api/v1/orders/direct [post]
func (h *Handler) CreateDirect(c *gin.Context) {
	var req createDirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderSvc.CreateDirect(c.Request.Context(), req.Items, req.Order.toOrderData())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Created(c, order)
}

// GetOrder 查询订单
// @Summary 查询订单
// @Tags 订单
// @Param id path string true "订单ID"
// @Param populate query bool false "是否带行项" default(true)
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	populate := c.DefaultQuery("populate", "true") == "true"
	order, err := h.orderSvc.GetOrder(c.Request.Context(), c.Param("id"), populate)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// ListUserOrders 查询某用户的订单
// @Summary 用户订单列表
// @Tags 订单
// @Param user_id path string true "用户ID或游客会话ID"
// @Success 200 {object} response.Response{data=[]model.Order}
// @Router /api/v1/orders/user/{user_id} [get]
func (h *Handler) ListUserOrders(c *gin.Context) {
	orders, err := h.orderSvc.ListUserOrders(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, orders)
}

// GetByCart 按来源购物车查询订单
// @Summary 按购物车查订单
// @Tags 订单
// @Param cart_id path string true "购物车ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/cart/{cart_id} [get]
func (h *Handler) GetByCart(c *gin.Context) {
	order, err := h.orderSvc.GetByCart(c.Request.Context(), c.Param("cart_id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// ListActive 厨房待处理队列，先进先出
// @Summary 厨房活跃订单
// @Tags 厨房
// @Success 200 {object} response.Response{data=[]model.Order}
// @Router /api/v1/orders/kitchen/active [get]
func (h *Handler) ListActive(c *gin.Context) {
	orders, err := h.orderSvc.ListActive(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, orders)
}

type updateStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// UpdateStatus 后台/厨房状态流转
// @Summary 更新订单状态
// @Tags 厨房
// @Accept json
// @Param id path string true "订单ID"
// @Param request body updateStatusRequest true "目标状态"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, middleware.StaffID(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

type updatePaymentRequest struct {
	PaymentStatus model.PaymentStatus  `json:"payment_status" binding:"required"`
	PaymentMethod *model.PaymentMethod `json:"payment_method"`
}

// UpdatePayment 支付状态修正（不走状态机）
// @Summary 更新支付状态
// @Tags 订单
// @Accept json
// @Param id path string true "订单ID"
// @Param request body updatePaymentRequest true "支付状态"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id}/payment [patch]
func (h *Handler) UpdatePayment(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderSvc.UpdatePayment(c.Request.Context(), c.Param("id"), req.PaymentStatus, req.PaymentMethod)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

type updatePricingRequest struct {
	Subtotal    float64 `json:"subtotal" binding:"gte=0"`
	Tax         float64 `json:"tax" binding:"gte=0"`
	DeliveryFee float64 `json:"delivery_fee" binding:"gte=0"`
	Discount    float64 `json:"discount" binding:"gte=0"`
}

// UpdatePricing 后台价格修正，总价由分量重算
// @Summary 修正订单价格
// @Tags 后台
// @Accept json
// @Param id path string true "订单ID"
// @Param request body updatePricingRequest true "价格分量"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id}/pricing [patch]
func (h *Handler) UpdatePricing(c *gin.Context) {
	var req updatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderSvc.UpdatePricing(c.Request.Context(), c.Param("id"), repository.PricingUpdate{
		Subtotal:    req.Subtotal,
		Tax:         req.Tax,
		DeliveryFee: req.DeliveryFee,
		Discount:    req.Discount,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

// UpdateCustomerInfo 更新游客快照
// @Summary 更新客户信息
// @Tags 订单
// @Accept json
// @Param id path string true "订单ID"
// @Param request body repository.CustomerInfo true "客户信息"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id}/customer-info [patch]
func (h *Handler) UpdateCustomerInfo(c *gin.Context) {
	var info repository.CustomerInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderSvc.UpdateCustomerInfo(c.Request.Context(), c.Param("id"), info)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

type linkUserRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// LinkUser 游客注册后把订单挂到账号上；已挂接的订单拒绝重复挂接
// @Summary 订单挂接用户
// @Tags 订单
// @Accept json
// @Param id path string true "订单ID"
// @Param request body linkUserRequest true "用户ID"
// @Success 200 {object} response.Response{data=model.Order}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id}/link-user [patch]
func (h *Handler) LinkUser(c *gin.Context) {
	var req linkUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	order, err := h.orderSvc.LinkUser(c.Request.Context(), c.Param("id"), req.UserID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, order)
}

type searchRequest struct {
	Filter repository.OrderFilter   `json:"filter"`
	Opts   repository.SearchOptions `json:"options"`
}

// Search 后台订单搜索
// @Summary 订单搜索
// @Tags 后台
// @Accept json
// @Param request body searchRequest true "过滤与分页"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/orders/search [post]
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	orders, total, err := h.orderSvc.Search(c.Request.Context(), req.Filter, req.Opts)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"total": total, "orders": orders})
}

// DeleteOrder 删除订单
// @Summary 删除订单
// @Tags 后台
// @Param id path string true "订单ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/orders/{id} [delete]
func (h *Handler) DeleteOrder(c *gin.Context) {
	if err := h.orderSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, nil)
}
