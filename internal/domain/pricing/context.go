// Package pricing implements the order price calculation: per-product rate
// discounts, per-seller fixed discounts, order-level rate coupons, and fixed
// coupons stacked into a single deterministic total.
//
// All money values are integers in the smallest currency unit. Fractional
// intermediate results are rounded down.
package pricing

// Line is one priced, quantified product entry to be totalled. Lines carry
// their product and seller identity explicitly so the calculation never
// depends on positional alignment with another sequence.
type Line struct {
	ProductID int64
	SellerID  int64
	UnitPrice int64
	Quantity  int
}

// RateCoupon is an order-level percentage reduction redeemed by id.
type RateCoupon struct {
	ID      int64
	Name    string
	Percent int64
}

// Context carries the discount and coupon state resolved from the promotion
// service for one calculation. It is read-only input; absence of an entry
// always means "no applicable discount", never an error. A nil map behaves
// like an empty one.
type Context struct {
	// RateDiscounts maps product id to discount percentage. Zero means none.
	RateDiscounts map[int64]int64
	// FixedDiscountSellers marks sellers currently running a flat
	// per-unit discount campaign.
	FixedDiscountSellers map[int64]bool
	// RateCoupons maps coupon id to the resolved coupon.
	RateCoupons map[int64]RateCoupon
	// FixedCouponSellers lists sellers for which a fixed-amount coupon
	// applies, once per qualifying seller.
	FixedCouponSellers []int64
}
