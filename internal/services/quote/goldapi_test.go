package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/karatlabs/karat/internal/clients"
	"github.com/karatlabs/karat/internal/entity"
)

func newTestSource(t *testing.T, handler http.HandlerFunc, apiKey string) *GoldAPISource {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := clients.NewGoldAPIClient(srv.URL, apiKey, 5*time.Second)
	return NewGoldAPISource(client, zap.NewNop())
}

func TestFetchSpotPrice(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-access-token"))
		assert.Equal(t, "/api/XAU/GBP", r.URL.Path)
		fmt.Fprint(w, `{"metal":"XAU","currency":"GBP","price":2021.73,"price_gram_24k":65.0}`)
	}, "test-key")

	snap, err := source.FetchSpotPrice(context.Background(), entity.MetalGold, "GBP")
	require.NoError(t, err)
	assert.Equal(t, entity.MetalGold, snap.Metal)
	assert.Equal(t, entity.Purity24K, snap.Purity)
	assert.Equal(t, "GBP", snap.Currency)
	assert.True(t, snap.Price.Equal(decimal.NewFromFloat(65.0)))
	assert.WithinDuration(t, time.Now(), snap.FetchedAt, 5*time.Second)
}

func TestFetchSpotPriceFallsBackToOunceQuote(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"metal":"XPT","currency":"GBP","price":933.104304}`)
	}, "test-key")

	snap, err := source.FetchSpotPrice(context.Background(), entity.MetalPlatinum, "GBP")
	require.NoError(t, err)

	expected := decimal.NewFromFloat(933.104304).Div(decimal.NewFromFloat(31.1034768))
	assert.True(t, snap.Price.Sub(expected).Abs().LessThan(decimal.New(1, -6)),
		"expected ounce quote divided by grams per troy ounce, got %s", snap.Price)
}

func TestFetchSpotPriceForPurityScaling(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"metal":"XAU","currency":"GBP","price_gram_24k":65.0}`)
	}, "test-key")

	base, err := source.FetchSpotPrice(context.Background(), entity.MetalGold, "GBP")
	require.NoError(t, err)

	tests := []struct {
		purity   entity.Purity
		fraction string
	}{
		{entity.Purity18K, "18"},
		{entity.Purity22K, "22"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dk", tt.purity), func(t *testing.T) {
			snap, err := source.FetchSpotPriceForPurity(context.Background(), entity.MetalGold, tt.purity, "GBP")
			require.NoError(t, err)

			expected := base.Price.Mul(decimal.RequireFromString(tt.fraction)).Div(decimal.NewFromInt(24))
			assert.True(t, snap.Price.Equal(expected),
				"price(%dk) must equal price(24k) x %s/24, got %s", tt.purity, tt.fraction, snap.Price)
			assert.Equal(t, tt.purity, snap.Purity)
		})
	}
}

func TestFetchSpotPriceRetriesTransientFailures(t *testing.T) {
	var requests int
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"metal":"XAU","currency":"GBP","price_gram_24k":65.0}`)
	}, "test-key")

	snap, err := source.FetchSpotPrice(context.Background(), entity.MetalGold, "GBP")
	require.NoError(t, err)
	assert.Equal(t, 2, requests, "a transient 5xx must be retried")
	assert.True(t, snap.Price.Equal(decimal.NewFromFloat(65.0)))
}

func TestFetchSpotPriceDoesNotRetryCredentialFailures(t *testing.T) {
	var requests int
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}, "bad-key")

	_, err := source.FetchSpotPrice(context.Background(), entity.MetalGold, "GBP")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.Equal(t, 1, requests, "credential failures are permanent")
}

func TestFetchSpotPriceClassification(t *testing.T) {
	tests := []struct {
		name     string
		apiKey   string
		handler  http.HandlerFunc
		expected error
	}{
		{
			name:   "missing credential",
			apiKey: "",
			handler: func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected when credential is missing")
			},
			expected: ErrNotConfigured,
		},
		{
			name:   "rejected credential",
			apiKey: "bad-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			expected: ErrNotConfigured,
		},
		{
			name:   "upstream 5xx",
			apiKey: "test-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expected: ErrUpstreamUnavailable,
		},
		{
			name:   "rate limited",
			apiKey: "test-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			expected: ErrUpstreamUnavailable,
		},
		{
			name:   "malformed body",
			apiKey: "test-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"price": "sixty-five`)
			},
			expected: ErrInvalidResponse,
		},
		{
			name:   "non-positive price",
			apiKey: "test-key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"metal":"XAU","currency":"GBP","price":0}`)
			},
			expected: ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := newTestSource(t, tt.handler, tt.apiKey)

			_, err := source.FetchSpotPrice(context.Background(), entity.MetalGold, "GBP")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected), "expected %v, got %v", tt.expected, err)
		})
	}
}
