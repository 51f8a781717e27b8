package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InvalidQuantityError indicates a line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// InvalidUnitPriceError indicates a line with a negative unit price.
type InvalidUnitPriceError struct {
	ProductID int64
}

func (e *InvalidUnitPriceError) Error() string {
	return fmt.Sprintf("unit price must not be negative for product %d", e.ProductID)
}

// InvalidPercentError indicates a discount or coupon percentage outside [0, 100].
type InvalidPercentError struct {
	Percent int64
}

func (e *InvalidPercentError) Error() string {
	return fmt.Sprintf("percentage %d outside [0, 100]", e.Percent)
}

// Calculator computes order totals. The flat amounts for seller fixed
// discounts and fixed coupons are configuration, not call input.
type Calculator struct {
	fixedDiscountUnit int64
	fixedCouponAmount int64
}

// NewCalculator returns a Calculator with the given flat amounts:
// fixedDiscountUnit is subtracted per unit on lines of an eligible seller,
// fixedCouponAmount once per qualifying seller of a fixed coupon.
func NewCalculator(fixedDiscountUnit, fixedCouponAmount int64) Calculator {
	return Calculator{
		fixedDiscountUnit: fixedDiscountUnit,
		fixedCouponAmount: fixedCouponAmount,
	}
}

// TotalPrice totals the given lines under the discount context.
//
// Per line: unitPrice*qty, reduced by the product's rate discount (rounded
// down), then by the seller's flat per-unit discount when eligible. The line
// amounts are summed, any rate coupons reduce the subtotal by their combined
// percentage (rounded down), one fixed coupon amount is subtracted per
// qualifying seller, and the result is clamped to zero.
//
// The function is pure and deterministic: accumulation only iterates the
// ordered lines, never a context map. Empty lines total zero. Product or
// seller ids absent from the context simply get no discount.
func (c Calculator) TotalPrice(lines []Line, dc Context) (int64, error) {
	var subtotal int64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return 0, &InvalidQuantityError{ProductID: line.ProductID}
		}
		if line.UnitPrice < 0 {
			return 0, &InvalidUnitPriceError{ProductID: line.ProductID}
		}

		amount := line.UnitPrice * int64(line.Quantity)

		if p := dc.RateDiscounts[line.ProductID]; p != 0 {
			reduced, err := applyPercent(amount, p)
			if err != nil {
				return 0, err
			}
			amount = reduced
		}

		if dc.FixedDiscountSellers[line.SellerID] {
			amount -= c.fixedDiscountUnit * int64(line.Quantity)
		}

		subtotal += amount
	}

	if len(dc.RateCoupons) > 0 {
		var percent int64
		for _, coupon := range dc.RateCoupons {
			if coupon.Percent < 0 || coupon.Percent > 100 {
				return 0, &InvalidPercentError{Percent: coupon.Percent}
			}
			percent += coupon.Percent
		}
		if percent > 100 {
			percent = 100
		}
		reduced, err := applyPercent(subtotal, percent)
		if err != nil {
			return 0, err
		}
		subtotal = reduced
	}

	subtotal -= c.fixedCouponAmount * qualifyingSellers(lines, dc.FixedCouponSellers)

	if subtotal < 0 {
		subtotal = 0
	}
	return subtotal, nil
}

// applyPercent reduces amount by p percent, rounding down to the nearest
// currency unit.
func applyPercent(amount, p int64) (int64, error) {
	if p < 0 || p > 100 {
		return 0, &InvalidPercentError{Percent: p}
	}
	reduced := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(100 - p)).
		Div(hundred).
		Floor()
	return reduced.IntPart(), nil
}

// qualifyingSellers counts distinct fixed-coupon sellers that actually have a
// line in the order. A coupon seller with no line contributes nothing.
func qualifyingSellers(lines []Line, couponSellers []int64) int64 {
	if len(couponSellers) == 0 {
		return 0
	}
	lineSellers := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		lineSellers[line.SellerID] = struct{}{}
	}

	var n int64
	seen := make(map[int64]struct{}, len(couponSellers))
	for _, sellerID := range couponSellers {
		if _, dup := seen[sellerID]; dup {
			continue
		}
		seen[sellerID] = struct{}{}
		if _, ok := lineSellers[sellerID]; ok {
			n++
		}
	}
	return n
}
