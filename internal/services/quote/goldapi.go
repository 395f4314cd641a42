package quote

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/karatlabs/karat/internal/clients"
	"github.com/karatlabs/karat/internal/entity"
	"github.com/karatlabs/karat/pkg/retrier"
)

// gramsPerTroyOunce converts the provider's per-ounce quote to per-gram.
var gramsPerTroyOunce = decimal.NewFromFloat(31.1034768)

// GoldAPISource adapts the metals market-data API to the Source contract.
type GoldAPISource struct {
	client  *clients.GoldAPIClient
	logger  *zap.Logger
	retrier *retrier.Retrier
}

// NewGoldAPISource creates the adapter. Transient upstream failures are
// retried with backoff inside the caller's fetch deadline; credential and
// contract failures fail fast.
func NewGoldAPISource(client *clients.GoldAPIClient, logger *zap.Logger) *GoldAPISource {
	return &GoldAPISource{
		client: client,
		logger: logger,
		retrier: retrier.New(
			retrier.WithInitialInterval(200*time.Millisecond),
			retrier.WithMaxInterval(2*time.Second),
			retrier.WithMaxRetries(2),
			retrier.WithRetryIf(func(err error) bool {
				return errors.Is(err, ErrUpstreamUnavailable)
			}),
		),
	}
}

// Configured reports whether the provider credential is present.
func (s *GoldAPISource) Configured() bool {
	return s.client.Configured()
}

// FetchSpotPrice returns the per-gram 24k reference price for a metal.
func (s *GoldAPISource) FetchSpotPrice(ctx context.Context, metal entity.Metal, currency string) (entity.PriceSnapshot, error) {
	if !s.client.Configured() {
		return entity.PriceSnapshot{}, ErrNotConfigured
	}

	symbol := metal.Symbol()
	if symbol == "" {
		return entity.PriceSnapshot{}, errors.Wrapf(ErrInvalidResponse, "no provider symbol for metal %q", metal)
	}

	return retrier.DoWithData(s.retrier, ctx, func(ctx context.Context) (entity.PriceSnapshot, error) {
		return s.fetchOnce(ctx, metal, symbol, currency)
	})
}

func (s *GoldAPISource) fetchOnce(ctx context.Context, metal entity.Metal, symbol, currency string) (entity.PriceSnapshot, error) {
	raw, err := s.client.Spot(ctx, symbol, currency)
	if err != nil {
		return entity.PriceSnapshot{}, s.classify(err, symbol, currency)
	}

	perGram := decimal.NewFromFloat(raw.PriceGram24K)
	if !perGram.IsPositive() {
		// some plans omit the per-gram fields; derive from the ounce quote
		perGram = decimal.NewFromFloat(raw.Price).Div(gramsPerTroyOunce)
	}
	if !perGram.IsPositive() {
		s.logger.Error("quote provider returned non-positive price",
			zap.String("symbol", symbol),
			zap.String("currency", currency),
			zap.Float64("price", raw.Price),
			zap.Float64("price_gram_24k", raw.PriceGram24K))
		return entity.PriceSnapshot{}, errors.Wrapf(ErrInvalidResponse, "non-positive price for %s/%s", symbol, currency)
	}

	return entity.PriceSnapshot{
		Metal:     metal,
		Purity:    entity.Purity24K,
		Price:     perGram,
		Currency:  currency,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// FetchSpotPriceForPurity scales the 24k reference price by the purity
// fraction (22k = 24k x 22/24, 18k = 24k x 18/24).
func (s *GoldAPISource) FetchSpotPriceForPurity(ctx context.Context, metal entity.Metal, purity entity.Purity, currency string) (entity.PriceSnapshot, error) {
	snapshot, err := s.FetchSpotPrice(ctx, metal, currency)
	if err != nil {
		return entity.PriceSnapshot{}, err
	}

	snapshot.Purity = purity
	snapshot.Price = purity.Scale(snapshot.Price)
	return snapshot, nil
}

// classify maps transport-level failures onto the adapter's error taxonomy.
func (s *GoldAPISource) classify(err error, symbol, currency string) error {
	var statusErr *clients.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden:
			return errors.Wrapf(ErrNotConfigured, "provider rejected credential (HTTP %d)", statusErr.Code)
		case statusErr.Code >= http.StatusInternalServerError || statusErr.Code == http.StatusTooManyRequests:
			return errors.Wrapf(ErrUpstreamUnavailable, "HTTP %d for %s/%s", statusErr.Code, symbol, currency)
		default:
			s.logger.Error("unexpected quote provider response",
				zap.Int("status", statusErr.Code),
				zap.String("symbol", symbol),
				zap.String("currency", currency),
				zap.String("body", statusErr.Body))
			return errors.Wrapf(ErrInvalidResponse, "HTTP %d for %s/%s", statusErr.Code, symbol, currency)
		}
	}

	// a decode failure is a contract violation, anything else is transport
	var decodeErr *clients.DecodeError
	if errors.As(err, &decodeErr) {
		s.logger.Error("malformed quote provider response",
			zap.String("symbol", symbol),
			zap.String("currency", currency),
			zap.Error(decodeErr.Err))
		return errors.Wrapf(ErrInvalidResponse, "fetch %s/%s", symbol, currency)
	}
	return errors.Wrapf(ErrUpstreamUnavailable, "fetch %s/%s: %v", symbol, currency, err)
}
