package usecase

import "storefront/internal/domain/model"

// 小計と配送先から税・送料を決める
type PricingPolicy interface {
	Tax(subtotal int64, addr model.ShippingAddress) int64
	Shipping(subtotal int64, addr model.ShippingAddress) int64
}

// FlatPricing は一律税率＋固定送料（閾値以上は送料無料）
type FlatPricing struct {
	TaxRateBPS            int64
	ShippingFee           int64
	FreeShippingThreshold int64
}

// 1/10000単位、四捨五入
func (p FlatPricing) Tax(subtotal int64, _ model.ShippingAddress) int64 {
	if p.TaxRateBPS <= 0 || subtotal <= 0 {
		return 0
	}
	return (subtotal*p.TaxRateBPS + 5000) / 10000
}

func (p FlatPricing) Shipping(subtotal int64, _ model.ShippingAddress) int64 {
	if p.FreeShippingThreshold > 0 && subtotal >= p.FreeShippingThreshold {
		return 0
	}
	return p.ShippingFee
}
