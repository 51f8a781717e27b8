package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/lotte-kokodo/order-service/internal/gateway"
)

// PageSize is the fixed page size of the order listing.
const PageSize = 5

// Summary is one order row of the listing, denormalized against the catalog.
type Summary struct {
	OrderID    int64
	Name       string
	Status     Status
	TotalPrice int64
	Thumbnail  string
	OrderedAt  time.Time
}

// Page is one page of a member's orders.
type Page struct {
	Orders     []Summary
	TotalCount int64
}

// LineDetail is one line of the order detail view, enriched with catalog
// name and thumbnail.
type LineDetail struct {
	LineID    int64
	ProductID int64
	Name      string
	Thumbnail string
	UnitPrice int64
	Quantity  int
}

// QueryService is the read path for orders. It shares the gateway circuit
// breaker discipline with the orchestrator but has softer degradation rules
// on the listing.
type QueryService struct {
	orders  QueryRepository
	catalog gateway.Catalog
}

// NewQueryService creates the order read service.
func NewQueryService(orders QueryRepository, catalog gateway.Catalog) *QueryService {
	return &QueryService{orders: orders, catalog: catalog}
}

// ListOrders returns one page (size 5, zero-based) of the member's orders by
// recency. The display name is the first product's name, suffixed with the
// count of further lines when the order has more than one.
//
// The catalog lookup is batch and breaker-guarded; an order whose product is
// missing from the catalog response is skipped rather than failing the page.
func (s *QueryService) ListOrders(ctx context.Context, memberID int64, page int) (*Page, error) {
	if page < 0 {
		page = 0
	}
	rows, total, err := s.orders.PageByMember(ctx, memberID, page, PageSize)
	if err != nil {
		return nil, errors.Wrap(err, "page orders")
	}

	productIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		productIDs = append(productIDs, row.FirstProductID)
	}

	summaries := s.catalog.Summaries(ctx, productIDs).OrEmpty()

	orders := make([]Summary, 0, len(rows))
	for _, row := range rows {
		product, ok := summaries[row.FirstProductID]
		if !ok {
			zctx.From(ctx).Warn("order skipped from listing, catalog entry missing",
				zap.Int64("order_id", row.OrderID),
				zap.Int64("product_id", row.FirstProductID),
			)
			continue
		}

		name := product.Name
		if row.LineCount > 1 {
			name = fmt.Sprintf("%s and %d more", product.Name, row.LineCount-1)
		}

		orders = append(orders, Summary{
			OrderID:    row.OrderID,
			Name:       name,
			Status:     row.Status,
			TotalPrice: row.TotalPrice,
			Thumbnail:  product.Thumbnail,
			OrderedAt:  row.OrderedAt,
		})
	}

	return &Page{Orders: orders, TotalCount: total}, nil
}

// OrderDetail returns every line of the member's order enriched with catalog
// data. Unlike the listing, the detail view must not silently drop lines the
// customer paid for: an unavailable catalog or a missing entry is an error.
func (s *QueryService) OrderDetail(ctx context.Context, memberID, orderID int64) ([]LineDetail, error) {
	lines, err := s.orders.LinesByOrder(ctx, memberID, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "load order lines")
	}
	if len(lines) == 0 {
		return nil, ErrNotFound
	}

	productIDs := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, dup := seen[line.ProductID]; dup {
			continue
		}
		seen[line.ProductID] = struct{}{}
		productIDs = append(productIDs, line.ProductID)
	}

	summaries, ok := s.catalog.Summaries(ctx, productIDs).Get()
	if !ok {
		return nil, errors.Wrapf(gateway.ErrUnavailable, "catalog summaries for order %d", orderID)
	}

	details := make([]LineDetail, 0, len(lines))
	for _, line := range lines {
		product, ok := summaries[line.ProductID]
		if !ok {
			return nil, &MissingCatalogEntryError{ProductID: line.ProductID}
		}
		details = append(details, LineDetail{
			LineID:    line.ID,
			ProductID: line.ProductID,
			Name:      product.Name,
			Thumbnail: product.Thumbnail,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	return details, nil
}

// HasPurchased reports whether the member has ever ordered the product.
func (s *QueryService) HasPurchased(ctx context.Context, memberID, productID int64) (bool, error) {
	return s.orders.ExistsByMemberAndProduct(ctx, memberID, productID)
}
