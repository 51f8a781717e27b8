package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotte-kokodo/order-service/internal/domain/cart"
)

const (
	findCartByIDSQL = `SELECT id, member_id, product_id, quantity, status
		FROM cart_items WHERE id = $1`

	findInCartSQL = `SELECT id, member_id, product_id, quantity, status
		FROM cart_items
		WHERE member_id = $1 AND id = ANY($2) AND status = $3
		ORDER BY id`

	listInCartSQL = `SELECT id, member_id, product_id, quantity, status
		FROM cart_items
		WHERE member_id = $1 AND status = $2
		ORDER BY id`

	updateCartQuantitySQL = `UPDATE cart_items SET quantity = $2 WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// FindByID returns the cart item, or cart.ErrNotFound.
func (r *CartRepository) FindByID(ctx context.Context, id int64) (*cart.Item, error) {
	rows, err := r.pool.Query(ctx, findCartByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "query cart %d", id)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "scan cart %d", id)
	}
	return &item, nil
}

// FindInCart returns the member's IN_CART items among ids.
func (r *CartRepository) FindInCart(ctx context.Context, memberID int64, ids []int64) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, findInCartSQL, memberID, ids, string(cart.StatusInCart))
	if err != nil {
		return nil, errors.Wrap(err, "query cart items")
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// ListInCart returns all of the member's IN_CART items.
func (r *CartRepository) ListInCart(ctx context.Context, memberID int64) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listInCartSQL, memberID, string(cart.StatusInCart))
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// UpdateQuantity persists a new quantity for the item.
func (r *CartRepository) UpdateQuantity(ctx context.Context, id int64, quantity int) error {
	tag, err := r.pool.Exec(ctx, updateCartQuantitySQL, id, quantity)
	if err != nil {
		return errors.Wrapf(err, "update cart %d quantity", id)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		item   cart.Item
		status string
	)
	err := row.Scan(&item.ID, &item.MemberID, &item.ProductID, &item.Quantity, &status)
	item.Status = cart.Status(status)
	return item, err
}
