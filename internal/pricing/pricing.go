package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/pkg/apperr"
)

// Breakdown 计价结果，均已四舍五入到 2 位小数（round half-up）
type Breakdown struct {
	Subtotal    float64 `json:"subtotal"`
	Tax         float64 `json:"tax"`
	DeliveryFee float64 `json:"delivery_fee"`
	Discount    float64 `json:"discount"`
	TotalAmount float64 `json:"total_amount"`
}

// Compute 纯函数：由行项与费率参数计算价格拆分
// total = subtotal + tax + delivery_fee - discount
func Compute(items []model.OrderItem, taxRate, deliveryFee, discount float64) (Breakdown, error) {
	if taxRate < 0 {
		return Breakdown{}, apperr.Validation("tax rate must be non-negative")
	}
	if deliveryFee < 0 || discount < 0 {
		return Breakdown{}, apperr.Validation("delivery fee and discount must be non-negative")
	}

	subtotal := decimal.Zero
	for _, it := range items {
		if it.Quantity < 1 {
			return Breakdown{}, apperr.Newf(apperr.KindValidation, "item %s: quantity must be at least 1", it.ProductID)
		}
		if it.UnitPrice < 0 {
			return Breakdown{}, apperr.Newf(apperr.KindValidation, "item %s: price must be non-negative", it.ProductID)
		}
		price := decimal.NewFromFloat(it.UnitPrice)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(decimal.NewFromFloat(taxRate)).Round(2)
	fee := decimal.NewFromFloat(deliveryFee).Round(2)
	disc := decimal.NewFromFloat(discount).Round(2)
	total := subtotal.Add(tax).Add(fee).Sub(disc).Round(2)

	b := Breakdown{}
	b.Subtotal, _ = subtotal.Float64()
	b.Tax, _ = tax.Float64()
	b.DeliveryFee, _ = fee.Float64()
	b.Discount, _ = disc.Float64()
	b.TotalAmount, _ = total.Float64()
	return b, nil
}

// Total 按既有分量重算总价，各分量先各自取整
func Total(subtotal, tax, deliveryFee, discount float64) float64 {
	total := decimal.NewFromFloat(subtotal).Round(2).
		Add(decimal.NewFromFloat(tax).Round(2)).
		Add(decimal.NewFromFloat(deliveryFee).Round(2)).
		Sub(decimal.NewFromFloat(discount).Round(2)).
		Round(2)
	f, _ := total.Float64()
	return f
}

// Zero 积分兑换订单的货币拆分：全部清零
func Zero() Breakdown { return Breakdown{} }

// PointsCost 积分兑换订单的积分成本：单价按 pointsPerUnit 折算后求和
func PointsCost(items []model.OrderItem, pointsPerUnit float64) int {
	total := decimal.Zero
	rate := decimal.NewFromFloat(pointsPerUnit)
	for _, it := range items {
		line := decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(line.Mul(rate))
	}
	return int(total.Ceil().IntPart())
}

// EarnedPoints 消费金额换算的奖励积分，向下取整
func EarnedPoints(totalAmount, pointsPerUnit float64) int {
	p := decimal.NewFromFloat(totalAmount).Mul(decimal.NewFromFloat(pointsPerUnit))
	return int(p.Floor().IntPart())
}

// MinorUnits 主币种金额转最小货币单位（分），网关侧使用
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
