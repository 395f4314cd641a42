package health

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karatlabs/karat/internal/entity"
)

type stubCache struct {
	set entity.CachedPriceSet
	ok  bool
}

func (s *stubCache) Get(string) (entity.CachedPriceSet, bool) {
	return s.set, s.ok
}

type stubCredential struct {
	configured bool
}

func (s *stubCredential) Configured() bool {
	return s.configured
}

func setAgedBy(t *testing.T, age time.Duration) entity.CachedPriceSet {
	t.Helper()

	fetchedAt := time.Now().UTC().Add(-age)
	gold := entity.PriceSnapshot{
		Metal:     entity.MetalGold,
		Purity:    entity.Purity24K,
		Price:     decimal.RequireFromString("65.00"),
		Currency:  "GBP",
		FetchedAt: fetchedAt,
	}
	platinum := entity.PriceSnapshot{
		Metal:     entity.MetalPlatinum,
		Purity:    entity.Purity24K,
		Price:     decimal.RequireFromString("30.00"),
		Currency:  "GBP",
		FetchedAt: fetchedAt,
	}

	set, err := entity.NewCachedPriceSet(gold, platinum)
	require.NoError(t, err)
	return set
}

func TestHealthClassification(t *testing.T) {
	staleness := 24 * time.Hour

	tests := []struct {
		name       string
		cache      *stubCache
		configured bool
		expected   entity.HealthStatus
		cacheValid bool
	}{
		{
			name:       "fresh snapshot",
			cache:      &stubCache{ok: true},
			configured: true,
			expected:   entity.StatusHealthy,
			cacheValid: true,
		},
		{
			name:       "just inside the staleness bound",
			cache:      &stubCache{ok: true},
			configured: true,
			expected:   entity.StatusHealthy,
			cacheValid: true,
		},
		{
			name:       "stale snapshot",
			cache:      &stubCache{ok: true},
			configured: true,
			expected:   entity.StatusWarning,
			cacheValid: false,
		},
		{
			name:       "no cache entry",
			cache:      &stubCache{ok: false},
			configured: true,
			expected:   entity.StatusError,
			cacheValid: false,
		},
		{
			name:       "missing credential",
			cache:      &stubCache{ok: true},
			configured: false,
			expected:   entity.StatusError,
			cacheValid: true,
		},
	}

	ages := map[string]time.Duration{
		"fresh snapshot":                  time.Hour,
		"just inside the staleness bound": 23*time.Hour + 59*time.Minute,
		"stale snapshot":                  25 * time.Hour,
		"missing credential":              time.Hour,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cache.ok {
				tt.cache.set = setAgedBy(t, ages[tt.name])
			}

			reporter := NewReporter(tt.cache, &stubCredential{configured: tt.configured}, "GBP", staleness)
			h := reporter.Health()

			assert.Equal(t, tt.expected, h.Status)
			assert.Equal(t, tt.cacheValid, h.CacheValid)
			assert.Equal(t, tt.configured, h.QuoteSourceConfigured)
		})
	}
}

func TestHealthReportsAge(t *testing.T) {
	age := 2 * time.Hour
	cache := &stubCache{set: setAgedBy(t, age), ok: true}
	reporter := NewReporter(cache, &stubCredential{configured: true}, "GBP", 24*time.Hour)

	h := reporter.Health()
	assert.InDelta(t, age.Seconds(), h.LastUpdateAge.Seconds(), 5)
}
