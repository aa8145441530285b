package service

import (
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/internal/pricing"
)

// PricingSelector 计价策略：普通订单走货币计价，积分兑换订单货币清零、
// 以积分成本计 pointsUsed。策略可替换，积分折算口径随配置走。
type PricingSelector interface {
	Price(items []model.OrderItem, serviceType model.ServiceType, discount float64, rewardOrder bool) (pricing.Breakdown, int, error)
}

// ConfigSelector 按配置费率计价的默认策略
type ConfigSelector struct {
	TaxRate       float64
	DeliveryFee   float64
	PointsPerUnit float64
}

func (s ConfigSelector) Price(items []model.OrderItem, serviceType model.ServiceType, discount float64, rewardOrder bool) (pricing.Breakdown, int, error) {
	if rewardOrder {
		// 兑换单不收货币，先校验行项合法性
		if _, err := pricing.Compute(items, 0, 0, 0); err != nil {
			return pricing.Breakdown{}, 0, err
		}
		return pricing.Zero(), pricing.PointsCost(items, s.PointsPerUnit), nil
	}

	fee := 0.0
	if serviceType == model.ServiceTypeDelivery {
		fee = s.DeliveryFee
	}
	b, err := pricing.Compute(items, s.TaxRate, fee, discount)
	return b, 0, err
}
