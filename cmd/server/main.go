package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/dineflow/config"
	"github.com/d60-Lab/dineflow/internal/api"
	"github.com/d60-Lab/dineflow/internal/api/handler"
	"github.com/d60-Lab/dineflow/internal/cache"
	"github.com/d60-Lab/dineflow/internal/gateway"
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/internal/repository"
	"github.com/d60-Lab/dineflow/internal/service"
	"github.com/d60-Lab/dineflow/pkg/database"
	"github.com/d60-Lab/dineflow/pkg/logger"
	"github.com/d60-Lab/dineflow/pkg/tracing"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func main() {
	cfg := must(config.Load())
	if err := logger.Init(cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()
	shutdownTracing := must(tracing.Init(ctx, cfg))

	db := must(database.InitDB(cfg))
	if err := db.AutoMigrate(
		&model.Order{}, &model.OrderItem{}, &model.StatusLog{},
		&model.WebhookEvent{}, &model.LoyaltyAccount{}, &model.LoyaltyEntry{},
		&model.Staff{},
	); err != nil {
		panic(err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	kitchen := cache.NewKitchenQueue(rdb, cfg.Redis.QueueTTL)

	// repositories & services
	orderRepo := repository.NewOrderRepository(db)
	loyaltyRepo := repository.NewLoyaltyRepository(db)
	eventRepo := repository.NewWebhookEventRepository(db)
	staffRepo := repository.NewStaffRepository(db)

	statusLog := service.NewStatusLogWriter(db, 10000)
	stopStatusLog := statusLog.Start(2)

	strategy := service.ConfigSelector{
		TaxRate:       cfg.Pricing.TaxRate,
		DeliveryFee:   cfg.Pricing.DeliveryFee,
		PointsPerUnit: cfg.Pricing.PointsPerUnit,
	}

	// 商品目录由外部菜单服务提供；未接入时行项名称回退为商品 ID
	orderSvc := service.NewOrderService(orderRepo, nil, strategy, statusLog, kitchen)

	gw := gateway.NewHTTPClient(cfg.Gateway)
	checkoutSvc := service.NewCheckoutService(db, orderRepo, loyaltyRepo, eventRepo, gw, cfg.Gateway, cfg.Pricing.PointsPerUnit)

	h := handler.NewHandler(orderSvc, checkoutSvc, staffRepo, cfg.JWT)
	r := api.NewRouter(cfg, h)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	_ = stopStatusLog(shutdownCtx)
	_ = shutdownTracing(shutdownCtx)
	if rdb != nil {
		_ = rdb.Close()
	}
}
