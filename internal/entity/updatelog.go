package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trigger identifies what initiated an update run.
type Trigger string

const (
	TriggerScheduled Trigger = "SCHEDULED"
	TriggerManual    Trigger = "MANUAL"
)

// UpdateLogEntry records the outcome of one orchestrated price-update run.
// It is written exactly once, after the run completes, and never mutated.
// Price fields stay nil when the fetch phase failed.
type UpdateLogEntry struct {
	ID              string           `json:"id"`
	Timestamp       time.Time        `json:"timestamp"`
	Trigger         Trigger          `json:"trigger"`
	Success         bool             `json:"success"`
	Currency        string           `json:"currency,omitempty"`
	GoldPrice       *decimal.Decimal `json:"gold_price,omitempty"`
	PlatinumPrice   *decimal.Decimal `json:"platinum_price,omitempty"`
	ProductsTotal   int              `json:"products_total"`
	ProductsUpdated int              `json:"products_updated"`
	ProductsSkipped int              `json:"products_skipped"`
	Errors          []string         `json:"errors,omitempty"`
	DurationMs      int64            `json:"duration_ms"`
}
