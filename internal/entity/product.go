package entity

import "github.com/shopspring/decimal"

// PricingModel tags how a catalog item's display price is derived.
type PricingModel string

const (
	// PricingFixed items carry an operator-set price the engine never touches.
	PricingFixed PricingModel = "FIXED"
	// PricingDynamic items are repriced from the cached metal spot price.
	PricingDynamic PricingModel = "DYNAMIC"
)

// Product is the pricing-relevant projection of a catalog item. The catalog
// store owns the full document; the engine reads these fields and writes back
// DisplayPrice only. Which fields are meaningful depends on the model tag:
// fixed items use BasePrice, dynamic items use MaterialType and WeightGrams.
type Product struct {
	ID           string          `json:"id"`
	Model        PricingModel    `json:"pricing_model"`
	MaterialType string          `json:"material_type,omitempty"`
	WeightGrams  decimal.Decimal `json:"weight_grams,omitempty"`
	BasePrice    decimal.Decimal `json:"base_price,omitempty"`
	DisplayPrice decimal.Decimal `json:"display_price"`
}

// IsDynamic reports whether the engine owns this product's display price.
func (p Product) IsDynamic() bool {
	return p.Model == PricingDynamic
}
