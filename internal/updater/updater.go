package updater

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/karatlabs/karat/internal/entity"
	"github.com/karatlabs/karat/internal/services/catalog"
	"github.com/karatlabs/karat/internal/services/pricing"
	"github.com/karatlabs/karat/internal/services/quote"
)

// Phase tracks how far the current update run has progressed.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseFetching    Phase = "FETCHING"
	PhaseCaching     Phase = "CACHING"
	PhasePropagating Phase = "PROPAGATING"
	PhaseDone        Phase = "DONE"
	PhaseFailed      Phase = "FAILED"
)

// singleflightKey serializes all runs: scheduled and manual triggers funnel
// through the same in-flight guard regardless of currency.
const singleflightKey = "price-update"

const notConfiguredRemediation = "metal price API key is not configured: set GOLDAPI_KEY and restart the service"

// priceCache is the write side of the price cache the orchestrator commits to.
type priceCache interface {
	Put(currency string, set entity.CachedPriceSet) error
}

// logAppender records completed runs. Appends are fire-and-forget.
type logAppender interface {
	Append(entry entity.UpdateLogEntry)
}

// Options tune a single run.
type Options struct {
	// SkipPropagation stops after the cache commit, leaving catalog prices
	// untouched. Used by operators to refresh the snapshot alone.
	SkipPropagation bool
}

// Updater coordinates one end-to-end price update: fetch both metals, commit
// the snapshot atomically, recompute every dynamic product's display price,
// and record the attempt. At most one run is in flight at a time; overlapping
// callers are coalesced onto the in-flight run and share its result.
type Updater struct {
	quote            quote.Source
	cache            priceCache
	catalog          catalog.Store
	log              logAppender
	markup           pricing.Markup
	defaultCurrency  string
	fetchTimeout     time.Duration
	propagateTimeout time.Duration
	logger           *zap.Logger

	group singleflight.Group
	phase atomic.Value
}

// New creates an Updater.
func New(
	quoteSource quote.Source,
	cache priceCache,
	catalogStore catalog.Store,
	log logAppender,
	markup pricing.Markup,
	defaultCurrency string,
	fetchTimeout, propagateTimeout time.Duration,
	logger *zap.Logger,
) *Updater {
	u := &Updater{
		quote:            quoteSource,
		cache:            cache,
		catalog:          catalogStore,
		log:              log,
		markup:           markup,
		defaultCurrency:  defaultCurrency,
		fetchTimeout:     fetchTimeout,
		propagateTimeout: propagateTimeout,
		logger:           logger,
	}
	u.phase.Store(PhaseIdle)
	return u
}

// Phase returns the current run phase.
func (u *Updater) Phase() Phase {
	return u.phase.Load().(Phase)
}

func (u *Updater) setPhase(p Phase) {
	u.phase.Store(p)
	u.logger.Debug("update phase", zap.String("phase", string(p)))
}

// RunUpdate executes one update run, or joins the run already in flight.
// The returned entry is always populated and always appended to the update
// log, success or failure. The error reports the fetch-phase failure, if any;
// per-product propagation failures live in entry.Errors instead.
func (u *Updater) RunUpdate(ctx context.Context, currency string, trigger entity.Trigger, opts Options) (entity.UpdateLogEntry, error) {
	if currency == "" {
		currency = u.defaultCurrency
	}

	type result struct {
		entry entity.UpdateLogEntry
		err   error
	}

	v, _, shared := u.group.Do(singleflightKey, func() (interface{}, error) {
		entry, err := u.run(ctx, currency, trigger, opts)
		return result{entry: entry, err: err}, nil
	})

	res := v.(result)
	if shared {
		u.logger.Info("joined in-flight price update", zap.String("run_id", res.entry.ID))
	}
	return res.entry, res.err
}

func (u *Updater) run(ctx context.Context, currency string, trigger entity.Trigger, opts Options) (entity.UpdateLogEntry, error) {
	start := time.Now()
	entry := entity.UpdateLogEntry{
		ID:        uuid.NewString(),
		Timestamp: start.UTC(),
		Trigger:   trigger,
		Currency:  currency,
	}

	u.logger.Info("starting price update",
		zap.String("run_id", entry.ID),
		zap.String("currency", currency),
		zap.String("trigger", string(trigger)))

	set, err := u.fetchAndCommit(ctx, currency, &entry)
	if err != nil {
		return u.finish(entry, start, PhaseFailed), err
	}

	if opts.SkipPropagation {
		entry.Success = true
		return u.finish(entry, start, PhaseDone), nil
	}

	u.propagate(ctx, set, &entry)
	entry.Success = true
	return u.finish(entry, start, PhaseDone), nil
}

// fetchAndCommit fetches both metals and commits them as one atomic set.
// Any failure aborts before a single cache or catalog write happens.
func (u *Updater) fetchAndCommit(ctx context.Context, currency string, entry *entity.UpdateLogEntry) (entity.CachedPriceSet, error) {
	u.setPhase(PhaseFetching)

	fetchCtx, cancel := context.WithTimeout(ctx, u.fetchTimeout)
	defer cancel()

	gold, err := u.quote.FetchSpotPrice(fetchCtx, entity.MetalGold, currency)
	if err != nil {
		entry.Errors = append(entry.Errors, u.fetchFailure(entity.MetalGold, err))
		return entity.CachedPriceSet{}, err
	}

	platinum, err := u.quote.FetchSpotPrice(fetchCtx, entity.MetalPlatinum, currency)
	if err != nil {
		entry.Errors = append(entry.Errors, u.fetchFailure(entity.MetalPlatinum, err))
		return entity.CachedPriceSet{}, err
	}

	u.setPhase(PhaseCaching)

	set, err := entity.NewCachedPriceSet(gold, platinum)
	if err != nil {
		entry.Errors = append(entry.Errors, err.Error())
		return entity.CachedPriceSet{}, errors.Wrap(err, "assemble price set")
	}
	if err := u.cache.Put(currency, set); err != nil {
		entry.Errors = append(entry.Errors, err.Error())
		return entity.CachedPriceSet{}, errors.Wrap(err, "commit price set")
	}

	entry.GoldPrice = &set.Gold.Price
	entry.PlatinumPrice = &set.Platinum.Price
	return set, nil
}

// propagate recomputes and writes the display price of every dynamic product
// against the just-committed set. A single product's failure is recorded and
// never aborts the rest. A timeout mid-propagation keeps the completed subset.
func (u *Updater) propagate(ctx context.Context, set entity.CachedPriceSet, entry *entity.UpdateLogEntry) {
	u.setPhase(PhasePropagating)

	propCtx, cancel := context.WithTimeout(ctx, u.propagateTimeout)
	defer cancel()

	products, err := u.catalog.ListDynamic(propCtx)
	if err != nil {
		// nothing was propagated at all; flag it louder than a per-product error
		entry.Errors = append(entry.Errors, fmt.Sprintf("propagation failed: could not list dynamic products: %v", err))
		u.logger.Error("propagation failed", zap.String("run_id", entry.ID), zap.Error(err))
		return
	}
	entry.ProductsTotal = len(products)

	for i, p := range products {
		if propCtx.Err() != nil {
			entry.Errors = append(entry.Errors,
				fmt.Sprintf("propagation timed out after %d of %d products", i, len(products)))
			return
		}

		price, err := pricing.ComputeDisplayPrice(p, set, u.markup)
		if err != nil {
			var skip *pricing.SkipError
			if errors.As(err, &skip) {
				entry.ProductsSkipped++
				u.logger.Warn("skipping product",
					zap.String("product_id", skip.ProductID),
					zap.String("reason", skip.Reason))
				continue
			}
			entry.Errors = append(entry.Errors, fmt.Sprintf("product %s: %v", p.ID, err))
			continue
		}

		if err := u.catalog.WriteDisplayPrice(propCtx, p.ID, price); err != nil {
			entry.Errors = append(entry.Errors, fmt.Sprintf("product %s: %v", p.ID, err))
			continue
		}
		entry.ProductsUpdated++
	}
}

// finish stamps the duration, appends the entry to the run history and
// returns it. Appending is best-effort by contract of the log store.
func (u *Updater) finish(entry entity.UpdateLogEntry, start time.Time, phase Phase) entity.UpdateLogEntry {
	entry.DurationMs = time.Since(start).Milliseconds()
	u.setPhase(phase)
	u.log.Append(entry)

	u.logger.Info("price update finished",
		zap.String("run_id", entry.ID),
		zap.Bool("success", entry.Success),
		zap.Int("products_total", entry.ProductsTotal),
		zap.Int("products_updated", entry.ProductsUpdated),
		zap.Int("products_skipped", entry.ProductsSkipped),
		zap.Int("errors", len(entry.Errors)),
		zap.Int64("duration_ms", entry.DurationMs))
	return entry
}

func (u *Updater) fetchFailure(metal entity.Metal, err error) string {
	if errors.Is(err, quote.ErrNotConfigured) {
		return notConfiguredRemediation
	}
	return fmt.Sprintf("fetch %s price: %v", metal, err)
}
