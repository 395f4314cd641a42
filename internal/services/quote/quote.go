package quote

import (
	"context"

	"github.com/pkg/errors"

	"github.com/karatlabs/karat/internal/entity"
)

// Source provides current spot prices from the upstream market-data API.
// Implementations never write to the price cache.
type Source interface {
	// FetchSpotPrice returns the per-gram 24k reference price for a metal.
	FetchSpotPrice(ctx context.Context, metal entity.Metal, currency string) (entity.PriceSnapshot, error)
	// FetchSpotPriceForPurity scales the 24k price by the purity fraction.
	FetchSpotPriceForPurity(ctx context.Context, metal entity.Metal, purity entity.Purity, currency string) (entity.PriceSnapshot, error)
	// Configured reports whether the upstream credential is present.
	Configured() bool
}

// Failure classification. Callers distinguish these with errors.Is because
// the orchestrator surfaces different remediation for each kind.
var (
	// ErrNotConfigured means the provider credential is missing or rejected.
	// Permanent until an operator intervenes; never retried.
	ErrNotConfigured = errors.New("quote source is not configured")

	// ErrUpstreamUnavailable covers network failures and provider 5xx.
	// Transient; a later scheduled run may succeed.
	ErrUpstreamUnavailable = errors.New("quote source upstream unavailable")

	// ErrInvalidResponse means the provider broke its response contract.
	// Full response detail is logged server-side only.
	ErrInvalidResponse = errors.New("quote source returned an invalid response")
)
