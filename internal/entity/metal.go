package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Metal identifies a precious metal quoted by the market-data provider.
type Metal string

const (
	MetalGold     Metal = "GOLD"
	MetalPlatinum Metal = "PLATINUM"
)

// Symbol returns the provider ticker for the metal.
func (m Metal) Symbol() string {
	switch m {
	case MetalGold:
		return "XAU"
	case MetalPlatinum:
		return "XPT"
	default:
		return ""
	}
}

// Purity is the fineness of a gold alloy in karats. 24 is the pure reference.
type Purity int

const (
	Purity18K Purity = 18
	Purity22K Purity = 22
	Purity24K Purity = 24
)

// Scale derives the price at this purity from the 24k reference
// (22k -> price x 22/24). Multiplies before dividing so the fraction is
// never rounded on its own.
func (p Purity) Scale(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(p))).Div(decimal.NewFromInt(24))
}

// PriceSnapshot is one fetched, timestamped per-gram spot price reading.
// Price is the 24k reference price unless Purity says otherwise.
type PriceSnapshot struct {
	Metal     Metal           `json:"metal"`
	Purity    Purity          `json:"purity,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Validate checks the snapshot invariants.
func (s PriceSnapshot) Validate() error {
	if s.Metal != MetalGold && s.Metal != MetalPlatinum {
		return fmt.Errorf("unknown metal %q", s.Metal)
	}
	if !s.Price.IsPositive() {
		return fmt.Errorf("snapshot price must be positive, got %s", s.Price)
	}
	if s.Currency == "" {
		return fmt.Errorf("snapshot currency is required")
	}
	if s.FetchedAt.IsZero() {
		return fmt.Errorf("snapshot fetch time is required")
	}
	return nil
}

// CachedPriceSet aggregates the gold and platinum snapshots for one currency.
// Both metals are always committed together.
type CachedPriceSet struct {
	Gold        PriceSnapshot `json:"gold"`
	Platinum    PriceSnapshot `json:"platinum"`
	Currency    string        `json:"currency"`
	LastUpdated time.Time     `json:"last_updated"`
}

// NewCachedPriceSet builds a validated set from freshly fetched snapshots.
// LastUpdated is the later of the two fetch times.
func NewCachedPriceSet(gold, platinum PriceSnapshot) (CachedPriceSet, error) {
	if err := gold.Validate(); err != nil {
		return CachedPriceSet{}, fmt.Errorf("gold snapshot: %w", err)
	}
	if err := platinum.Validate(); err != nil {
		return CachedPriceSet{}, fmt.Errorf("platinum snapshot: %w", err)
	}
	if gold.Metal != MetalGold || platinum.Metal != MetalPlatinum {
		return CachedPriceSet{}, fmt.Errorf("snapshots assigned to wrong metals: %s/%s", gold.Metal, platinum.Metal)
	}
	if gold.Currency != platinum.Currency {
		return CachedPriceSet{}, fmt.Errorf("snapshot currencies differ: %s vs %s", gold.Currency, platinum.Currency)
	}

	last := gold.FetchedAt
	if platinum.FetchedAt.After(last) {
		last = platinum.FetchedAt
	}

	return CachedPriceSet{
		Gold:        gold,
		Platinum:    platinum,
		Currency:    gold.Currency,
		LastUpdated: last,
	}, nil
}

// PriceFor derives the per-gram price for a metal at a given purity from the
// cached 24k base. Purity variants are computed at read time, never stored.
func (s CachedPriceSet) PriceFor(metal Metal, purity Purity) (decimal.Decimal, error) {
	var base PriceSnapshot
	switch metal {
	case MetalGold:
		base = s.Gold
	case MetalPlatinum:
		base = s.Platinum
	default:
		return decimal.Decimal{}, fmt.Errorf("unknown metal %q", metal)
	}
	if !base.Price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("no cached price for %s", metal)
	}
	return purity.Scale(base.Price), nil
}

// Age reports how long ago the set was committed.
func (s CachedPriceSet) Age(now time.Time) time.Duration {
	return now.Sub(s.LastUpdated)
}
