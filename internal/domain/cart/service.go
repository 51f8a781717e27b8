package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/lotte-kokodo/order-service/internal/gateway"
)

// StockGateway is the slice of the catalog gateway the quantity guard needs.
type StockGateway interface {
	Stock(ctx context.Context, productID int64) gateway.Result[int]
}

// Service guards cart quantity changes against live stock.
type Service struct {
	carts   Repository
	catalog StockGateway
}

// NewService creates a cart Service.
func NewService(carts Repository, catalog StockGateway) *Service {
	return &Service{carts: carts, catalog: catalog}
}

// UpdateQuantityRequest holds the input for a quantity change.
type UpdateQuantityRequest struct {
	MemberID int64
	CartID   int64
	Quantity int
}

// UpdateQuantity sets the cart item's quantity after checking live stock.
//
// When the stock lookup is unavailable the operation fails fast: proceeding
// as if stock were unlimited would let the cart exceed what can be ordered.
// When stock is below the requested quantity the item is clamped to the
// available amount, persisted, and InsufficientStockError carries the clamp
// back to the caller. Otherwise the requested quantity is stored.
func (s *Service) UpdateQuantity(ctx context.Context, req UpdateQuantityRequest) (int, error) {
	if req.Quantity <= 0 {
		return 0, errors.Errorf("quantity must be greater than 0, got %d", req.Quantity)
	}

	item, err := s.carts.FindByID(ctx, req.CartID)
	if err != nil {
		return 0, err
	}
	if item.MemberID != req.MemberID {
		return 0, ErrNotFound
	}

	stock, ok := s.catalog.Stock(ctx, item.ProductID).Get()
	if !ok {
		return 0, errors.Wrapf(gateway.ErrUnavailable, "stock for product %d", item.ProductID)
	}
	// Negative stock is the catalog's "unknown" sentinel, not a real count.
	if stock < 0 {
		return 0, errors.Wrapf(gateway.ErrUnavailable, "stock unknown for product %d", item.ProductID)
	}

	if stock < req.Quantity {
		zctx.From(ctx).Warn("cart quantity clamped to stock",
			zap.Int64("cart_id", req.CartID),
			zap.Int64("product_id", item.ProductID),
			zap.Int("requested", req.Quantity),
			zap.Int("stock", stock),
		)
		if err := s.carts.UpdateQuantity(ctx, req.CartID, stock); err != nil {
			return 0, errors.Wrap(err, "clamp cart quantity")
		}
		return stock, &InsufficientStockError{CartID: req.CartID, Available: stock}
	}

	if err := s.carts.UpdateQuantity(ctx, req.CartID, req.Quantity); err != nil {
		return 0, errors.Wrap(err, "update cart quantity")
	}
	return req.Quantity, nil
}

// List returns the member's current IN_CART items.
func (s *Service) List(ctx context.Context, memberID int64) ([]Item, error) {
	return s.carts.ListInCart(ctx, memberID)
}
