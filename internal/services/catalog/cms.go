package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/karatlabs/karat/internal/entity"
)

const (
	defaultCMSTimeout = 20 * time.Second
	maxCMSBodySize    = 8 << 20
)

// CMSClient reads and writes product pricing fields through the content
// management API.
type CMSClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCMSClient creates a catalog store backed by the CMS REST API.
func NewCMSClient(baseURL string, timeout time.Duration) *CMSClient {
	if timeout <= 0 {
		timeout = defaultCMSTimeout
	}
	return &CMSClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListDynamic fetches the pricing projection of every dynamically priced
// product.
func (c *CMSClient) ListDynamic(ctx context.Context) ([]entity.Product, error) {
	endpoint := fmt.Sprintf("%s/api/products?pricing_model=%s", c.baseURL, url.QueryEscape(string(entity.PricingDynamic)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build product list request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "list dynamic products")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCMSBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read product list response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned HTTP %d listing products", resp.StatusCode)
	}

	var products []entity.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, errors.Wrap(err, "decode product list")
	}
	return products, nil
}

// WriteDisplayPrice persists one product's recomputed display price.
func (c *CMSClient) WriteDisplayPrice(ctx context.Context, id string, price decimal.Decimal) error {
	payload, err := json.Marshal(map[string]string{"display_price": price.StringFixed(2)})
	if err != nil {
		return errors.Wrap(err, "marshal display price")
	}

	endpoint := fmt.Sprintf("%s/api/products/%s/price", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "build price write request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "write display price for product %s", id)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxCMSBodySize))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("catalog returned HTTP %d writing price for product %s", resp.StatusCode, id)
	}
	return nil
}
