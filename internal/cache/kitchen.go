package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/pkg/logger"
)

const kitchenQueueKey = "kitchen:active"

// KitchenQueue 厨房看板轮询的活跃订单快照缓存。
// JSON 快照带 TTL，每次状态写入都会失效；未配置缓存时所有方法都是 no-op，
// 调用方无需判空。
type KitchenQueue struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewKitchenQueue(rdb *redis.Client, ttl time.Duration) *KitchenQueue {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &KitchenQueue{rdb: rdb, ttl: ttl}
}

func (q *KitchenQueue) enabled() bool { return q != nil && q.rdb != nil }

func (q *KitchenQueue) Get(ctx context.Context) ([]*model.Order, bool) {
	if !q.enabled() {
		return nil, false
	}
	data, err := q.rdb.Get(ctx, kitchenQueueKey).Bytes()
	if err != nil {
		return nil, false
	}
	var orders []*model.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, false
	}
	return orders, true
}

func (q *KitchenQueue) Set(ctx context.Context, orders []*model.Order) {
	if !q.enabled() {
		return
	}
	payload, err := json.Marshal(orders)
	if err != nil {
		return
	}
	if err := q.rdb.Set(ctx, kitchenQueueKey, payload, q.ttl).Err(); err != nil {
		logger.Warn("kitchen queue cache set failed", zap.Error(err))
	}
}

func (q *KitchenQueue) Invalidate(ctx context.Context) {
	if !q.enabled() {
		return
	}
	if err := q.rdb.Del(ctx, kitchenQueueKey).Err(); err != nil {
		logger.Warn("kitchen queue cache invalidate failed", zap.Error(err))
	}
}
