// Package cart holds the cart item model and the quantity guard that keeps
// cart quantities within live stock.
package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of a cart item. Items move to ORDER_PROCESS
// exactly when they are folded into an order; the ordering core never
// deletes them.
type Status string

const (
	StatusInCart       Status = "IN_CART"
	StatusOrderProcess Status = "ORDER_PROCESS"
)

// Item is one member's cart entry for a product.
type Item struct {
	ID        int64
	MemberID  int64
	ProductID int64
	Quantity  int
	Status    Status
}

// ErrNotFound is returned when a cart item does not exist or is not owned by
// the requesting member.
var ErrNotFound = errors.New("cart item not found")

// InsufficientStockError reports that live stock is below the requested
// quantity. Available carries the clamped quantity the cart item was
// corrected to, so the caller can reconcile its state.
type InsufficientStockError struct {
	CartID    int64
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for cart %d: %d available", e.CartID, e.Available)
}

// Repository defines persistence operations for cart items.
type Repository interface {
	// FindByID returns the cart item, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*Item, error)
	// FindInCart returns the member's IN_CART items among ids. Ids that
	// do not resolve are simply absent from the result.
	FindInCart(ctx context.Context, memberID int64, ids []int64) ([]Item, error)
	// ListInCart returns all of the member's IN_CART items.
	ListInCart(ctx context.Context, memberID int64) ([]Item, error)
	// UpdateQuantity persists a new quantity for the item.
	UpdateQuantity(ctx context.Context, id int64, quantity int) error
}
