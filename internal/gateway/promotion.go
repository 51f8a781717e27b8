package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/lotte-kokodo/order-service/internal/domain/pricing"
)

var _ Promotion = (*PromotionClient)(nil)

// PromotionClient calls the promotion service for discount policies and
// coupon resolution. All lookups are batch-shaped; absence of an id in a
// response map means no promotion applies to it.
type PromotionClient struct {
	base string
	http *http.Client
	lg   *zap.Logger

	rateDiscounts *gobreaker.CircuitBreaker[map[int64]int64]
	fixedDiscount *gobreaker.CircuitBreaker[map[int64]bool]
	rateCoupons   *gobreaker.CircuitBreaker[map[int64]pricing.RateCoupon]
	fixedCoupons  *gobreaker.CircuitBreaker[[]int64]
}

// NewPromotionClient returns a PromotionClient for the promotion service at base.
func NewPromotionClient(base string, client *http.Client, cfg BreakerConfig, lg *zap.Logger) *PromotionClient {
	return &PromotionClient{
		base:          base,
		http:          client,
		lg:            lg,
		rateDiscounts: newBreaker[map[int64]int64]("promotion.rate-discounts", cfg, lg),
		fixedDiscount: newBreaker[map[int64]bool]("promotion.fixed-discount", cfg, lg),
		rateCoupons:   newBreaker[map[int64]pricing.RateCoupon]("promotion.rate-coupons", cfg, lg),
		fixedCoupons:  newBreaker[[]int64]("promotion.fixed-coupons", cfg, lg),
	}
}

// RateDiscounts resolves product-id to percentage for active rate discount
// policies.
func (c *PromotionClient) RateDiscounts(ctx context.Context, productIDs []int64) Result[map[int64]int64] {
	return guard(c.rateDiscounts, c.lg, func() (map[int64]int64, error) {
		out := make(map[int64]int64, len(productIDs))
		u := buildURL(c.base, "/promotions/rate-discounts", url.Values{
			"productIds": {idsParam(productIDs)},
		})
		if err := getJSON(ctx, c.http, u, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// FixedDiscountEligibility resolves which sellers currently run a flat
// discount campaign covering the given products.
func (c *PromotionClient) FixedDiscountEligibility(ctx context.Context, productIDs, sellerIDs []int64) Result[map[int64]bool] {
	return guard(c.fixedDiscount, c.lg, func() (map[int64]bool, error) {
		out := make(map[int64]bool, len(sellerIDs))
		u := buildURL(c.base, "/promotions/fixed-discounts", url.Values{
			"productIds": {idsParam(productIDs)},
			"sellerIds":  {idsParam(sellerIDs)},
		})
		if err := getJSON(ctx, c.http, u, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// RateCoupons resolves rate coupons by id. Ids that do not resolve are
// simply absent from the returned map.
func (c *PromotionClient) RateCoupons(ctx context.Context, couponIDs []int64) Result[map[int64]pricing.RateCoupon] {
	return guard(c.rateCoupons, c.lg, func() (map[int64]pricing.RateCoupon, error) {
		out := make(map[int64]pricing.RateCoupon, len(couponIDs))
		u := buildURL(c.base, "/promotions/rate-coupons", url.Values{
			"couponIds": {idsParam(couponIDs)},
		})
		if err := getJSON(ctx, c.http, u, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// FixedCouponSellers resolves fixed coupons by id to the seller ids they
// apply to.
func (c *PromotionClient) FixedCouponSellers(ctx context.Context, couponIDs []int64) Result[[]int64] {
	return guard(c.fixedCoupons, c.lg, func() ([]int64, error) {
		var out []int64
		u := buildURL(c.base, "/promotions/fixed-coupons", url.Values{
			"couponIds": {idsParam(couponIDs)},
		})
		if err := getJSON(ctx, c.http, u, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}
