package health

import (
	"time"

	"github.com/karatlabs/karat/internal/entity"
)

// cacheReader is the read side of the price cache.
type cacheReader interface {
	Get(currency string) (entity.CachedPriceSet, bool)
}

// credentialChecker reports whether the quote source has a usable credential.
type credentialChecker interface {
	Configured() bool
}

// Reporter derives the engine's health from the price cache and quote-source
// configuration at read time. It never writes.
type Reporter struct {
	cache     cacheReader
	quote     credentialChecker
	currency  string
	staleness time.Duration
	now       func() time.Time
}

// NewReporter creates a reporter for the operative currency.
func NewReporter(cache cacheReader, quote credentialChecker, currency string, staleness time.Duration) *Reporter {
	return &Reporter{
		cache:     cache,
		quote:     quote,
		currency:  currency,
		staleness: staleness,
		now:       time.Now,
	}
}

// Health classifies the engine: ERROR when there is no cached snapshot or no
// usable credential, WARNING when the snapshot has outlived the staleness
// threshold, HEALTHY otherwise.
func (r *Reporter) Health() entity.Health {
	configured := r.quote.Configured()
	set, ok := r.cache.Get(r.currency)

	h := entity.Health{
		QuoteSourceConfigured: configured,
	}

	if ok {
		h.LastUpdateAge = set.Age(r.now())
		h.CacheValid = h.LastUpdateAge <= r.staleness
	}

	switch {
	case !ok || !configured:
		h.Status = entity.StatusError
	case !h.CacheValid:
		h.Status = entity.StatusWarning
	default:
		h.Status = entity.StatusHealthy
	}
	return h
}
