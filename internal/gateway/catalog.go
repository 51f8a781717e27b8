package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var _ Catalog = (*CatalogClient)(nil)

// CatalogClient calls the product service over HTTP. Each operation has its
// own circuit breaker so a failing batch endpoint does not trip the
// single-product price lookup.
type CatalogClient struct {
	base string
	http *http.Client
	lg   *zap.Logger

	price     *gobreaker.CircuitBreaker[int64]
	prices    *gobreaker.CircuitBreaker[map[int64]int64]
	stock     *gobreaker.CircuitBreaker[int]
	summaries *gobreaker.CircuitBreaker[map[int64]CatalogSummary]
}

// NewCatalogClient returns a CatalogClient for the product service at base.
func NewCatalogClient(base string, client *http.Client, cfg BreakerConfig, lg *zap.Logger) *CatalogClient {
	return &CatalogClient{
		base:      base,
		http:      client,
		lg:        lg,
		price:     newBreaker[int64]("catalog.unit-price", cfg, lg),
		prices:    newBreaker[map[int64]int64]("catalog.unit-prices", cfg, lg),
		stock:     newBreaker[int]("catalog.stock", cfg, lg),
		summaries: newBreaker[map[int64]CatalogSummary]("catalog.summaries", cfg, lg),
	}
}

// UnitPrice returns the current catalog price of one product.
func (c *CatalogClient) UnitPrice(ctx context.Context, productID int64) Result[int64] {
	return guard(c.price, c.lg, func() (int64, error) {
		var body struct {
			ID    int64 `json:"id"`
			Price int64 `json:"price"`
		}
		u := buildURL(c.base, fmt.Sprintf("/products/%d/price", productID), nil)
		if err := getJSON(ctx, c.http, u, &body); err != nil {
			return 0, err
		}
		return body.Price, nil
	})
}

// UnitPrices batch-resolves catalog prices for the given product ids.
func (c *CatalogClient) UnitPrices(ctx context.Context, productIDs []int64) Result[map[int64]int64] {
	return guard(c.prices, c.lg, func() (map[int64]int64, error) {
		out := make(map[int64]int64, len(productIDs))
		u := buildURL(c.base, "/products/price", url.Values{"ids": {idsParam(productIDs)}})
		if err := getJSON(ctx, c.http, u, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Stock returns the live stock count for one product.
func (c *CatalogClient) Stock(ctx context.Context, productID int64) Result[int] {
	return guard(c.stock, c.lg, func() (int, error) {
		var body struct {
			ID    int64 `json:"id"`
			Stock int   `json:"stock"`
		}
		u := buildURL(c.base, fmt.Sprintf("/products/%d/stock", productID), nil)
		if err := getJSON(ctx, c.http, u, &body); err != nil {
			return 0, err
		}
		return body.Stock, nil
	})
}

// Summaries batch-resolves name and thumbnail projections.
func (c *CatalogClient) Summaries(ctx context.Context, productIDs []int64) Result[map[int64]CatalogSummary] {
	return guard(c.summaries, c.lg, func() (map[int64]CatalogSummary, error) {
		out := make(map[int64]CatalogSummary, len(productIDs))
		u := buildURL(c.base, "/products/summary", url.Values{"ids": {idsParam(productIDs)}})
		if err := getJSON(ctx, c.http, u, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}
