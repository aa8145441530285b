package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/dineflow/internal/model"
)

func newTestQueue(t *testing.T) (*KitchenQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewKitchenQueue(rdb, time.Minute), mr
}

func sampleOrders() []*model.Order {
	return []*model.Order{
		{ID: "o1", OrderStatus: model.OrderStatusPending, ServiceType: model.ServiceTypePickup},
		{ID: "o2", OrderStatus: model.OrderStatusPreparing, ServiceType: model.ServiceTypeDineIn},
	}
}

func TestKitchenQueueRoundtrip(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, ok := q.Get(ctx)
	assert.False(t, ok)

	q.Set(ctx, sampleOrders())
	got, ok := q.Get(ctx)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "o1", got[0].ID)
	assert.Equal(t, model.OrderStatusPreparing, got[1].OrderStatus)
}

func TestKitchenQueueInvalidate(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	q.Set(ctx, sampleOrders())
	q.Invalidate(ctx)

	_, ok := q.Get(ctx)
	assert.False(t, ok)
}

func TestKitchenQueueTTL(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	q.Set(ctx, sampleOrders())
	mr.FastForward(2 * time.Minute)

	_, ok := q.Get(ctx)
	assert.False(t, ok)
}

func TestKitchenQueueDisabled(t *testing.T) {
	ctx := context.Background()
	// 未配置缓存时所有方法都是 no-op
	var q *KitchenQueue
	q.Set(ctx, sampleOrders())
	q.Invalidate(ctx)
	_, ok := q.Get(ctx)
	assert.False(t, ok)

	q = NewKitchenQueue(nil, time.Minute)
	q.Set(ctx, sampleOrders())
	_, ok = q.Get(ctx)
	assert.False(t, ok)
}
