// Package order implements the order-creation core: the orchestration of
// catalog, member, and promotion lookups into a priced, persisted Order and
// the post-commit side-effect events.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an Order. Orders are immutable after
// creation except for status transitions.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Order is the persisted aggregate produced by the orchestrator. TotalPrice
// is whatever the price calculator produced for Lines at creation time; it is
// never recomputed.
type Order struct {
	ID              int64
	MemberID        int64
	DeliveryName    string
	DeliveryAddress string
	TotalPrice      int64
	Status          Status
	OrderedAt       time.Time
	// IdempotencyKey dedupes retried create calls. Empty means the caller
	// supplied none and no dedupe applies.
	IdempotencyKey string
	Lines          []Line
}

// Line is one priced product entry within an Order. UnitPrice is a snapshot
// of the catalog price at order time; later catalog changes do not affect it.
type Line struct {
	ID        int64
	OrderID   int64
	MemberID  int64
	ProductID int64
	SellerID  int64
	Quantity  int
	UnitPrice int64
}

// ErrNotFound is returned when an order does not exist or is not owned by
// the requesting member.
var ErrNotFound = errors.New("order not found")

// ErrDuplicateIdempotencyKey is returned by Repository.Create and
// CreateWithCartTransition when the order's idempotency key is already
// recorded.
var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

// CartNotFoundError indicates a requested cart id that does not resolve to an
// IN_CART item owned by the caller.
type CartNotFoundError struct {
	CartID int64
}

func (e *CartNotFoundError) Error() string {
	return fmt.Sprintf("cart %d not found", e.CartID)
}

// ProductPriceMissingError indicates the catalog batch response omitted a
// product the order references. Absence of a price is never a legitimate
// pricing outcome.
type ProductPriceMissingError struct {
	ProductID int64
}

func (e *ProductPriceMissingError) Error() string {
	return fmt.Sprintf("unit price missing for product %d", e.ProductID)
}

// SellerMappingError indicates the supplied product-to-seller mapping does
// not cover a product in the order.
type SellerMappingError struct {
	ProductID int64
}

func (e *SellerMappingError) Error() string {
	return fmt.Sprintf("no seller mapped for product %d", e.ProductID)
}

// MissingCatalogEntryError indicates the detail view could not resolve a
// purchased line against the catalog.
type MissingCatalogEntryError struct {
	ProductID int64
}

func (e *MissingCatalogEntryError) Error() string {
	return fmt.Sprintf("catalog entry missing for product %d", e.ProductID)
}

// Repository defines the write-side persistence operations for orders.
type Repository interface {
	// Create persists the order and its lines, filling o.ID and line ids.
	Create(ctx context.Context, o *Order) error
	// CreateWithCartTransition persists the order and transitions the
	// given cart items to ORDER_PROCESS in the same transaction: either
	// both commit or neither does.
	CreateWithCartTransition(ctx context.Context, o *Order, cartIDs []int64) error
	// FindByIdempotencyKey returns the member's order recorded under key,
	// or ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, memberID int64, key string) (*Order, error)
}

// PageRow is one order row of the paginated listing, denormalized with the
// distinct line count and the first line's product id.
type PageRow struct {
	OrderID        int64
	Status         Status
	TotalPrice     int64
	OrderedAt      time.Time
	FirstProductID int64
	LineCount      int
}

// QueryRepository defines the read-side operations used by QueryService.
type QueryRepository interface {
	// PageByMember returns one page of the member's orders ordered by
	// recency, plus the total order count. Page is zero-based.
	PageByMember(ctx context.Context, memberID int64, page, size int) ([]PageRow, int64, error)
	// LinesByOrder returns every line of the member's order, or an empty
	// slice when the order does not exist or is not theirs.
	LinesByOrder(ctx context.Context, memberID, orderID int64) ([]Line, error)
	// ExistsByMemberAndProduct reports whether the member ever ordered
	// the product.
	ExistsByMemberAndProduct(ctx context.Context, memberID, productID int64) (bool, error)
}

// Events receives post-commit side-effect notifications. Implementations
// must not block order creation; delivery failures are theirs to log.
type Events interface {
	// StockDecrement announces quantities to subtract per product.
	StockDecrement(ctx context.Context, orderID int64, quantities map[int64]int)
	// CouponConsumption announces applied coupons for the member.
	CouponConsumption(ctx context.Context, orderID, memberID int64, fixedCouponIDs []int64, rateCouponNames []string)
}
