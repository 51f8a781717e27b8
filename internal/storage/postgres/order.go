package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotte-kokodo/order-service/internal/domain/cart"
	"github.com/lotte-kokodo/order-service/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (member_id, delivery_name, delivery_address, total_price, status, ordered_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	insertLineSQL = `INSERT INTO order_lines (order_id, member_id, product_id, seller_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	transitionCartsSQL = `UPDATE cart_items SET status = $1
		WHERE id = ANY($2) AND status = $3`

	findByIdempotencyKeySQL = `SELECT id, member_id, delivery_name, delivery_address, total_price, status, ordered_at, idempotency_key
		FROM orders WHERE member_id = $1 AND idempotency_key = $2`

	linesByOrderSQL = `SELECT id, order_id, member_id, product_id, seller_id, quantity, unit_price
		FROM order_lines WHERE member_id = $1 AND order_id = $2 ORDER BY id`

	pageByMemberSQL = `SELECT o.id, o.status, o.total_price, o.ordered_at,
			(SELECT l.product_id FROM order_lines l WHERE l.order_id = o.id ORDER BY l.id LIMIT 1),
			(SELECT COUNT(*) FROM order_lines l WHERE l.order_id = o.id)
		FROM orders o
		WHERE o.member_id = $1
		ORDER BY o.ordered_at DESC, o.id DESC
		LIMIT $2 OFFSET $3`

	countByMemberSQL = `SELECT COUNT(*) FROM orders WHERE member_id = $1`

	existsByMemberAndProductSQL = `SELECT EXISTS (
		SELECT 1 FROM order_lines WHERE member_id = $1 AND product_id = $2)`
)

var (
	_ order.Repository      = (*OrderRepository)(nil)
	_ order.QueryRepository = (*OrderRepository)(nil)
)

// OrderRepository implements the order write and read repositories backed by
// PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and its lines in one transaction, filling the
// generated ids.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	return r.create(ctx, o, nil)
}

// CreateWithCartTransition persists the order and moves the source cart items
// to ORDER_PROCESS in the same transaction. If any cart item is no longer
// IN_CART the whole transaction rolls back.
func (r *OrderRepository) CreateWithCartTransition(ctx context.Context, o *order.Order, cartIDs []int64) error {
	return r.create(ctx, o, cartIDs)
}

func (r *OrderRepository) create(ctx context.Context, o *order.Order, cartIDs []int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.MemberID, o.DeliveryName, o.DeliveryAddress, o.TotalPrice,
		string(o.Status), o.OrderedAt, o.IdempotencyKey,
	).Scan(&o.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrDuplicateIdempotencyKey
		}
		return errors.Wrap(err, "insert order")
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		err = tx.QueryRow(ctx, insertLineSQL,
			o.ID, line.MemberID, line.ProductID, line.SellerID, line.Quantity, line.UnitPrice,
		).Scan(&line.ID)
		if err != nil {
			return errors.Wrapf(err, "insert line for product %d", line.ProductID)
		}
	}

	if len(cartIDs) > 0 {
		tag, err := tx.Exec(ctx, transitionCartsSQL,
			string(cart.StatusOrderProcess), cartIDs, string(cart.StatusInCart))
		if err != nil {
			return errors.Wrap(err, "transition cart items")
		}
		if tag.RowsAffected() != int64(len(cartIDs)) {
			return errors.Errorf("expected %d cart items to transition, got %d",
				len(cartIDs), tag.RowsAffected())
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit")
}

// FindByIdempotencyKey returns the member's order recorded under key with its
// lines, or order.ErrNotFound.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, memberID int64, key string) (*order.Order, error) {
	var o order.Order
	var status string
	err := r.pool.QueryRow(ctx, findByIdempotencyKeySQL, memberID, key).Scan(
		&o.ID, &o.MemberID, &o.DeliveryName, &o.DeliveryAddress,
		&o.TotalPrice, &status, &o.OrderedAt, &o.IdempotencyKey,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "find order by idempotency key")
	}
	o.Status = order.Status(status)

	lines, err := r.LinesByOrder(ctx, memberID, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

// PageByMember returns one zero-based page of the member's orders by recency
// plus the total count.
func (r *OrderRepository) PageByMember(ctx context.Context, memberID int64, page, size int) ([]order.PageRow, int64, error) {
	rows, err := r.pool.Query(ctx, pageByMemberSQL, memberID, size, page*size)
	if err != nil {
		return nil, 0, errors.Wrap(err, "page orders")
	}
	pageRows, err := pgx.CollectRows(rows, scanPageRow)
	if err != nil {
		return nil, 0, errors.Wrap(err, "scan order page")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, countByMemberSQL, memberID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	return pageRows, total, nil
}

// LinesByOrder returns all lines of the member's order ordered by id.
func (r *OrderRepository) LinesByOrder(ctx context.Context, memberID, orderID int64) ([]order.Line, error) {
	rows, err := r.pool.Query(ctx, linesByOrderSQL, memberID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "query order lines")
	}
	lines, err := pgx.CollectRows(rows, scanLine)
	if err != nil {
		return nil, errors.Wrap(err, "scan order lines")
	}
	return lines, nil
}

// ExistsByMemberAndProduct reports whether the member ever ordered the product.
func (r *OrderRepository) ExistsByMemberAndProduct(ctx context.Context, memberID, productID int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, existsByMemberAndProductSQL, memberID, productID).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check purchase")
	}
	return exists, nil
}

func scanPageRow(row pgx.CollectableRow) (order.PageRow, error) {
	var (
		pr     order.PageRow
		status string
		count  int64
	)
	err := row.Scan(&pr.OrderID, &status, &pr.TotalPrice, &pr.OrderedAt, &pr.FirstProductID, &count)
	pr.Status = order.Status(status)
	pr.LineCount = int(count)
	return pr, err
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var line order.Line
	err := row.Scan(&line.ID, &line.OrderID, &line.MemberID, &line.ProductID,
		&line.SellerID, &line.Quantity, &line.UnitPrice)
	return line, err
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
