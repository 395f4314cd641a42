package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultQuoteTimeout = 15 * time.Second
	maxQuoteBodySize    = 1 << 20
)

// SpotQuote is the raw provider payload for one metal/currency pair.
// Price is quoted per troy ounce; the per-gram fields are provider-derived.
type SpotQuote struct {
	Timestamp    int64   `json:"timestamp"`
	Metal        string  `json:"metal"`
	Currency     string  `json:"currency"`
	Price        float64 `json:"price"`
	PriceGram24K float64 `json:"price_gram_24k"`
	PriceGram22K float64 `json:"price_gram_22k"`
	PriceGram18K float64 `json:"price_gram_18k"`
}

// StatusError reports a non-2xx provider response. Body is kept for
// server-side logging only and must not be surfaced to callers verbatim.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quote provider returned HTTP %d", e.Code)
}

// DecodeError reports a 2xx response whose body did not match the contract.
type DecodeError struct {
	Symbol   string
	Currency string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed quote response for %s/%s: %v", e.Symbol, e.Currency, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// GoldAPIClient talks to the metals market-data REST API
// (GET {base}/api/{SYMBOL}/{CURRENCY} with an x-access-token header).
type GoldAPIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGoldAPIClient creates a client for the metals price API.
func NewGoldAPIClient(baseURL, apiKey string, timeout time.Duration) *GoldAPIClient {
	if timeout <= 0 {
		timeout = defaultQuoteTimeout
	}
	return &GoldAPIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a credential is present.
func (c *GoldAPIClient) Configured() bool {
	return c.apiKey != ""
}

// Spot fetches the current quote for one metal symbol in the given currency.
func (c *GoldAPIClient) Spot(ctx context.Context, symbol, currency string) (*SpotQuote, error) {
	url := fmt.Sprintf("%s/api/%s/%s", c.baseURL, symbol, currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build quote request")
	}
	req.Header.Set("x-access-token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "quote request for %s/%s", symbol, currency)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxQuoteBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read quote response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var quote SpotQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, &DecodeError{Symbol: symbol, Currency: currency, Err: err}
	}

	return &quote, nil
}
