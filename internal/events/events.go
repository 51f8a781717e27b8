// Package events publishes the post-commit side-effect events of order
// creation to RabbitMQ: stock decrements for the inventory side and coupon
// consumption for the promotion side.
//
// Publication is decoupled from the order transaction. The payloads carry the
// order id so consumers can apply them idempotently under at-least-once
// delivery.
package events

import (
	"sort"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/google/uuid"
)

const (
	// TopicStockDecrement receives quantities to subtract per product.
	TopicStockDecrement = "stock-decrement"
	// TopicCouponConsumption receives the coupons applied to an order.
	TopicCouponConsumption = "coupon-consumption"
)

// StockDecrement is the payload of TopicStockDecrement.
type StockDecrement struct {
	EventID    string
	OrderID    int64
	Quantities map[int64]int
}

// CouponConsumption is the payload of TopicCouponConsumption.
type CouponConsumption struct {
	EventID         string
	OrderID         int64
	MemberID        int64
	FixedCouponIDs  []int64
	RateCouponNames []string
}

// NewStockDecrement builds the event with a fresh event id.
func NewStockDecrement(orderID int64, quantities map[int64]int) StockDecrement {
	return StockDecrement{
		EventID:    uuid.NewString(),
		OrderID:    orderID,
		Quantities: quantities,
	}
}

// NewCouponConsumption builds the event with a fresh event id.
func NewCouponConsumption(orderID, memberID int64, fixedCouponIDs []int64, rateCouponNames []string) CouponConsumption {
	return CouponConsumption{
		EventID:         uuid.NewString(),
		OrderID:         orderID,
		MemberID:        memberID,
		FixedCouponIDs:  fixedCouponIDs,
		RateCouponNames: rateCouponNames,
	}
}

// Encode renders the event as JSON.
func (e StockDecrement) Encode() []byte {
	enc := &jx.Encoder{}
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("eventId", func(enc *jx.Encoder) { enc.Str(e.EventID) })
		enc.Field("orderId", func(enc *jx.Encoder) { enc.Int64(e.OrderID) })
		enc.Field("quantities", func(enc *jx.Encoder) {
			enc.Obj(func(enc *jx.Encoder) {
				for _, productID := range sortedKeys(e.Quantities) {
					qty := e.Quantities[productID]
					enc.Field(strconv.FormatInt(productID, 10), func(enc *jx.Encoder) {
						enc.Int(qty)
					})
				}
			})
		})
	})
	return enc.Bytes()
}

// Encode renders the event as JSON.
func (e CouponConsumption) Encode() []byte {
	enc := &jx.Encoder{}
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("eventId", func(enc *jx.Encoder) { enc.Str(e.EventID) })
		enc.Field("orderId", func(enc *jx.Encoder) { enc.Int64(e.OrderID) })
		enc.Field("memberId", func(enc *jx.Encoder) { enc.Int64(e.MemberID) })
		enc.Field("fixedCouponIds", func(enc *jx.Encoder) {
			enc.Arr(func(enc *jx.Encoder) {
				for _, id := range e.FixedCouponIDs {
					enc.Int64(id)
				}
			})
		})
		enc.Field("rateCouponNames", func(enc *jx.Encoder) {
			enc.Arr(func(enc *jx.Encoder) {
				for _, name := range e.RateCouponNames {
					enc.Str(name)
				}
			})
		})
	})
	return enc.Bytes()
}

// sortedKeys keeps the encoded payload stable for consumers and tests.
func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
