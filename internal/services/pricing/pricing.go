package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/karatlabs/karat/internal/entity"
)

// MarkupMode selects how the labor/markup charge is applied on top of the
// raw metal cost.
type MarkupMode string

const (
	// MarkupPercent adds a percentage of the raw metal cost (10 means +10%).
	MarkupPercent MarkupMode = "percent"
	// MarkupFlat adds a fixed amount in currency units.
	MarkupFlat MarkupMode = "flat"
)

// Markup is the configured markup policy. The exact formula is configuration,
// not code: operators tune mode and value without redeploying.
type Markup struct {
	Mode  MarkupMode
	Value decimal.Decimal
}

func (m Markup) apply(raw decimal.Decimal) decimal.Decimal {
	switch m.Mode {
	case MarkupFlat:
		return raw.Add(m.Value)
	case MarkupPercent:
		factor := decimal.NewFromInt(1).Add(m.Value.Div(decimal.NewFromInt(100)))
		return raw.Mul(factor)
	default:
		return raw
	}
}

// material resolves a catalog material label to metal and purity.
type material struct {
	Metal  entity.Metal
	Purity entity.Purity
}

// materials is the fixed lookup table for dynamic products. Keys are
// lower-cased label forms as they appear in catalog documents.
var materials = map[string]material{
	"24k gold": {entity.MetalGold, entity.Purity24K},
	"22k gold": {entity.MetalGold, entity.Purity22K},
	"18k gold": {entity.MetalGold, entity.Purity18K},
	"platinum": {entity.MetalPlatinum, entity.Purity24K},
}

// ResolveMaterial maps a material label to its metal and purity.
func ResolveMaterial(label string) (entity.Metal, entity.Purity, bool) {
	m, ok := materials[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		return "", 0, false
	}
	return m.Metal, m.Purity, true
}

// SkipError marks a product the engine cannot price. Skipped products keep
// their current display price; they are counted, never priced at zero.
type SkipError struct {
	ProductID string
	Reason    string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("product %s skipped: %s", e.ProductID, e.Reason)
}

// ComputeDisplayPrice maps product attributes and a cached price set to a
// display price. Pure: no I/O, deterministic for identical inputs.
//
// Fixed products pass their base price through untouched. Dynamic products
// resolve material to (metal, purity), multiply the derived per-gram price by
// weight, apply the markup, and round to two decimals only at the end.
// Intermediate values are never rounded.
func ComputeDisplayPrice(p entity.Product, set entity.CachedPriceSet, markup Markup) (decimal.Decimal, error) {
	if p.Model == entity.PricingFixed {
		return p.BasePrice, nil
	}
	if p.Model != entity.PricingDynamic {
		return decimal.Decimal{}, &SkipError{ProductID: p.ID, Reason: fmt.Sprintf("unknown pricing model %q", p.Model)}
	}

	metal, purity, ok := ResolveMaterial(p.MaterialType)
	if !ok {
		return decimal.Decimal{}, &SkipError{ProductID: p.ID, Reason: fmt.Sprintf("unresolvable material %q", p.MaterialType)}
	}
	if !p.WeightGrams.IsPositive() {
		return decimal.Decimal{}, &SkipError{ProductID: p.ID, Reason: fmt.Sprintf("non-positive weight %s", p.WeightGrams)}
	}

	perGram, err := set.PriceFor(metal, purity)
	if err != nil {
		return decimal.Decimal{}, err
	}

	rawCost := perGram.Mul(p.WeightGrams)
	return markup.apply(rawCost).Round(2), nil
}
