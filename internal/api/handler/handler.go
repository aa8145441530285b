package handler

import (
	"github.com/d60-Lab/dineflow/config"
	"github.com/d60-Lab/dineflow/internal/repository"
	"github.com/d60-Lab/dineflow/internal/service"
)

// Handler 聚合各路由依赖
type Handler struct {
	orderSvc    service.OrderService
	checkoutSvc *service.CheckoutService
	staffRepo   repository.StaffRepository
	jwtCfg      config.JWTConfig
}

func NewHandler(orderSvc service.OrderService, checkoutSvc *service.CheckoutService, staffRepo repository.StaffRepository, jwtCfg config.JWTConfig) *Handler {
	return &Handler{
		orderSvc:    orderSvc,
		checkoutSvc: checkoutSvc,
		staffRepo:   staffRepo,
		jwtCfg:      jwtCfg,
	}
}
