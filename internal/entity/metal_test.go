package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurityScale(t *testing.T) {
	base := decimal.RequireFromString("65.00")

	assert.True(t, Purity24K.Scale(base).Equal(base))
	assert.True(t, Purity18K.Scale(base).Equal(decimal.RequireFromString("48.75")))

	// multiply before divide: 65 x 22 / 24, not 65 x (22/24)
	expected := base.Mul(decimal.NewFromInt(22)).Div(decimal.NewFromInt(24))
	assert.True(t, Purity22K.Scale(base).Equal(expected),
		"22k scaling must not round the purity fraction on its own, got %s", Purity22K.Scale(base))
}

func snapshot(metal Metal, price string, fetchedAt time.Time) PriceSnapshot {
	return PriceSnapshot{
		Metal:     metal,
		Purity:    Purity24K,
		Price:     decimal.RequireFromString(price),
		Currency:  "GBP",
		FetchedAt: fetchedAt,
	}
}

func TestNewCachedPriceSet(t *testing.T) {
	now := time.Now().UTC()
	later := now.Add(2 * time.Second)

	set, err := NewCachedPriceSet(snapshot(MetalGold, "65.00", now), snapshot(MetalPlatinum, "30.00", later))
	require.NoError(t, err)
	assert.Equal(t, "GBP", set.Currency)
	assert.Equal(t, later, set.LastUpdated, "last updated must be the later fetch time")
}

func TestNewCachedPriceSetRejectsInvalid(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name     string
		gold     PriceSnapshot
		platinum PriceSnapshot
	}{
		{
			name:     "swapped metals",
			gold:     snapshot(MetalPlatinum, "30.00", now),
			platinum: snapshot(MetalGold, "65.00", now),
		},
		{
			name:     "non-positive price",
			gold:     snapshot(MetalGold, "0", now),
			platinum: snapshot(MetalPlatinum, "30.00", now),
		},
		{
			name: "currency mismatch",
			gold: snapshot(MetalGold, "65.00", now),
			platinum: PriceSnapshot{
				Metal:     MetalPlatinum,
				Purity:    Purity24K,
				Price:     decimal.RequireFromString("30.00"),
				Currency:  "USD",
				FetchedAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCachedPriceSet(tt.gold, tt.platinum)
			require.Error(t, err)
		})
	}
}

func TestPriceForDerivesPurityVariants(t *testing.T) {
	now := time.Now().UTC()
	set, err := NewCachedPriceSet(snapshot(MetalGold, "65.00", now), snapshot(MetalPlatinum, "30.00", now))
	require.NoError(t, err)

	base := decimal.RequireFromString("65.00")

	for _, purity := range []Purity{Purity18K, Purity22K, Purity24K} {
		price, err := set.PriceFor(MetalGold, purity)
		require.NoError(t, err)
		expected := base.Mul(decimal.NewFromInt(int64(purity))).Div(decimal.NewFromInt(24))
		assert.True(t, price.Equal(expected),
			"derived %dk price must be the 24k base scaled by purity", purity)
	}

	_, err = set.PriceFor("SILVER", Purity24K)
	require.Error(t, err)
}

func TestMetalSymbol(t *testing.T) {
	assert.Equal(t, "XAU", MetalGold.Symbol())
	assert.Equal(t, "XPT", MetalPlatinum.Symbol())
	assert.Empty(t, Metal("COPPER").Symbol())
}
