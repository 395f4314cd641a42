package entity

import "time"

// HealthStatus is the derived operational classification of the engine.
type HealthStatus string

const (
	StatusHealthy HealthStatus = "HEALTHY"
	StatusWarning HealthStatus = "WARNING"
	StatusError   HealthStatus = "ERROR"
)

// Health is computed on demand from the price cache and configuration.
// It is never stored.
type Health struct {
	Status                HealthStatus  `json:"status"`
	CacheValid            bool          `json:"cache_valid"`
	LastUpdateAge         time.Duration `json:"-"`
	QuoteSourceConfigured bool          `json:"quote_source_configured"`
}
