// Package gateway holds the clients for the external catalog, member, and
// promotion services. Every remote call is wrapped by a circuit breaker and
// yields a Result: either the value, or Unavailable when the upstream is down
// or the breaker is open. The caller decides per call site whether
// Unavailable degrades to an empty context or fails the operation — "no
// discount" and "service down" are different outcomes.
package gateway

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/lotte-kokodo/order-service/internal/domain/pricing"
)

// ErrUnavailable is the error callers wrap when an Unavailable result is not
// semantically safe to degrade (price, stock, delivery identity).
var ErrUnavailable = errors.New("upstream unavailable")

// Result is the outcome of one circuit-breaker-guarded remote call.
// The zero value is Unavailable.
type Result[T any] struct {
	value T
	ok    bool
}

// Value wraps a successful call result.
func Value[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Unavailable marks a failed or short-circuited call.
func Unavailable[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the value and whether the call succeeded.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// OrEmpty returns the value on success and the zero value otherwise. Only
// appropriate where absence is a legitimate outcome (discounts, coupons).
func (r Result[T]) OrEmpty() T {
	return r.value
}

// DeliveryIdentity is the member projection consumed for order delivery.
type DeliveryIdentity struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// CatalogSummary is the product projection consumed by the order read path.
type CatalogSummary struct {
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
}

// Catalog exposes the product-service lookups used by ordering.
type Catalog interface {
	// UnitPrice returns the current catalog price of one product.
	UnitPrice(ctx context.Context, productID int64) Result[int64]
	// UnitPrices batch-resolves catalog prices.
	UnitPrices(ctx context.Context, productIDs []int64) Result[map[int64]int64]
	// Stock returns the live stock of one product.
	Stock(ctx context.Context, productID int64) Result[int]
	// Summaries batch-resolves name and thumbnail projections.
	Summaries(ctx context.Context, productIDs []int64) Result[map[int64]CatalogSummary]
}

// Identity exposes the member-service delivery lookup.
type Identity interface {
	DeliveryIdentity(ctx context.Context, memberID int64) Result[DeliveryIdentity]
}

// Promotion exposes the promotion-service discount and coupon lookups.
type Promotion interface {
	RateDiscounts(ctx context.Context, productIDs []int64) Result[map[int64]int64]
	FixedDiscountEligibility(ctx context.Context, productIDs, sellerIDs []int64) Result[map[int64]bool]
	RateCoupons(ctx context.Context, couponIDs []int64) Result[map[int64]pricing.RateCoupon]
	FixedCouponSellers(ctx context.Context, couponIDs []int64) Result[[]int64]
}
