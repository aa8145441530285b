package api

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/dineflow/config"
	_ "github.com/d60-Lab/dineflow/docs"
	"github.com/d60-Lab/dineflow/internal/api/handler"
	"github.com/d60-Lab/dineflow/internal/api/middleware"
	"github.com/d60-Lab/dineflow/internal/model"
)

// NewRouter 组装路由：后台/厨房的变更接口走 JWT 角色门禁，
// 下单与查询接口对匿名游客开放
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	registerValidators()

	r := gin.New()
	r.Use(middleware.Recovery(), gzip.Gzip(gzip.DefaultCompression))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.Service))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	auth := middleware.AuthRequired(cfg.JWT)
	adminOnly := middleware.RequireRole(model.StaffRoleAdmin)
	staffOnly := middleware.RequireRole(model.StaffRoleAdmin, model.StaffRoleKitchen)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/auth/login", h.Login)

		orders := v1.Group("/orders")
		{
			orders.POST("/from-cart", h.CreateFromCart)
			orders.POST("/direct", h.CreateDirect)
			orders.GET("/user/:user_id", h.ListUserOrders)
			orders.GET("/cart/:cart_id", h.GetByCart)
			orders.GET("/kitchen/active", h.ListActive)
			orders.GET("/:id", h.GetOrder)
			orders.PATCH("/:id/customer-info", h.UpdateCustomerInfo)
			orders.PATCH("/:id/link-user", h.LinkUser)

			orders.PATCH("/:id/status", auth, staffOnly, h.UpdateStatus)
			orders.PATCH("/:id/payment", auth, adminOnly, h.UpdatePayment)
			orders.PATCH("/:id/pricing", auth, adminOnly, h.UpdatePricing)
			orders.POST("/search", auth, adminOnly, h.Search)
			orders.DELETE("/:id", auth, adminOnly, h.DeleteOrder)
		}

		checkout := v1.Group("/checkout")
		{
			checkout.POST("/create-session",
				middleware.RateLimit(cfg.Server.CheckoutRPS, cfg.Server.CheckoutBurst),
				h.CreateSession)
			// 验签需要原始报文，handler 内自行读 body
			checkout.POST("/webhook", h.Webhook)
		}
	}

	return r
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("servicetype", func(fl validator.FieldLevel) bool {
			return model.ServiceType(fl.Field().String()).Valid()
		})
	}
}
