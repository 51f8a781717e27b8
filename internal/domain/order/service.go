package order

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lotte-kokodo/order-service/internal/domain/cart"
	"github.com/lotte-kokodo/order-service/internal/domain/pricing"
	"github.com/lotte-kokodo/order-service/internal/gateway"
)

// ErrEmptyCart is returned when a cart checkout names no cart ids.
var ErrEmptyCart = errors.New("cart ids required")

// Service orchestrates order creation: it sequences the external lookups,
// prices the order, persists the aggregate, and hands the side-effect events
// off after commit.
type Service struct {
	calc      pricing.Calculator
	catalog   gateway.Catalog
	identity  gateway.Identity
	promotion gateway.Promotion
	orders    Repository
	carts     cart.Repository
	events    Events
	now       func() time.Time
}

// NewService creates the order orchestrator.
func NewService(
	calc pricing.Calculator,
	catalog gateway.Catalog,
	identity gateway.Identity,
	promotion gateway.Promotion,
	orders Repository,
	carts cart.Repository,
	events Events,
) *Service {
	return &Service{
		calc:      calc,
		catalog:   catalog,
		identity:  identity,
		promotion: promotion,
		orders:    orders,
		carts:     carts,
		events:    events,
		now:       time.Now,
	}
}

// SingleProductRequest holds the input for a direct single-product order.
type SingleProductRequest struct {
	MemberID  int64
	ProductID int64
	SellerID  int64
	Quantity  int
	// RateCouponID and FixedCouponID are optional; nil means no coupon.
	RateCouponID  *int64
	FixedCouponID *int64
	// IdempotencyKey, when set, dedupes client retries of the same
	// checkout intent.
	IdempotencyKey string
}

// CartRequest holds the input for a cart checkout.
type CartRequest struct {
	MemberID int64
	CartIDs  []int64
	// ProductSellers maps every product in the carts to its seller.
	ProductSellers map[int64]int64
	RateCouponIDs  []int64
	FixedCouponIDs []int64
	IdempotencyKey string
}

// OrderSingleProduct prices and persists an order for one product, then
// emits the stock-decrement and, when coupons applied, coupon-consumption
// events.
//
// The catalog price and delivery identity are required: if either upstream is
// unavailable the order fails with ErrUnavailable. Promotion lookups degrade
// to an empty discount context instead, since "no discount" is a legitimate
// outcome.
func (s *Service) OrderSingleProduct(ctx context.Context, req SingleProductRequest) (*Order, error) {
	if req.Quantity <= 0 {
		return nil, &pricing.InvalidQuantityError{ProductID: req.ProductID}
	}
	if o, ok, err := s.replayIdempotent(ctx, req.MemberID, req.IdempotencyKey); err != nil {
		return nil, err
	} else if ok {
		return o, nil
	}

	var (
		priceRes       gateway.Result[int64]
		identityRes    gateway.Result[gateway.DeliveryIdentity]
		rateDiscRes    gateway.Result[map[int64]int64]
		fixedDiscRes   gateway.Result[map[int64]bool]
		rateCouponRes  gateway.Result[map[int64]pricing.RateCoupon]
		fixedCouponRes gateway.Result[[]int64]
	)

	// The lookups are independent; fan out and wait. Each call carries its
	// own timeout via the gateway's HTTP client and breaker.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		priceRes = s.catalog.UnitPrice(gctx, req.ProductID)
		return nil
	})
	g.Go(func() error {
		identityRes = s.identity.DeliveryIdentity(gctx, req.MemberID)
		return nil
	})
	g.Go(func() error {
		rateDiscRes = s.promotion.RateDiscounts(gctx, []int64{req.ProductID})
		return nil
	})
	g.Go(func() error {
		fixedDiscRes = s.promotion.FixedDiscountEligibility(gctx, []int64{req.ProductID}, []int64{req.SellerID})
		return nil
	})
	if req.RateCouponID != nil {
		id := *req.RateCouponID
		g.Go(func() error {
			rateCouponRes = s.promotion.RateCoupons(gctx, []int64{id})
			return nil
		})
	}
	if req.FixedCouponID != nil {
		id := *req.FixedCouponID
		g.Go(func() error {
			fixedCouponRes = s.promotion.FixedCouponSellers(gctx, []int64{id})
			return nil
		})
	}
	_ = g.Wait()

	unitPrice, ok := priceRes.Get()
	if !ok {
		return nil, errors.Wrapf(gateway.ErrUnavailable, "unit price for product %d", req.ProductID)
	}
	identity, ok := identityRes.Get()
	if !ok {
		return nil, errors.Wrapf(gateway.ErrUnavailable, "delivery identity for member %d", req.MemberID)
	}

	dc := pricing.Context{
		RateDiscounts:        rateDiscRes.OrEmpty(),
		FixedDiscountSellers: fixedDiscRes.OrEmpty(),
		RateCoupons:          rateCouponRes.OrEmpty(),
		FixedCouponSellers:   fixedCouponRes.OrEmpty(),
	}

	lines := []Line{{
		MemberID:  req.MemberID,
		ProductID: req.ProductID,
		SellerID:  req.SellerID,
		Quantity:  req.Quantity,
		UnitPrice: unitPrice,
	}}

	o, err := s.persist(ctx, req.MemberID, req.IdempotencyKey, identity, lines, dc, nil)
	if err != nil {
		return nil, err
	}

	s.events.StockDecrement(ctx, o.ID, map[int64]int{req.ProductID: req.Quantity})
	s.emitCouponConsumption(ctx, o, fixedIDList(req.FixedCouponID), dc)

	return o, nil
}

// OrderCartProducts checks out the member's cart items as one order. The new
// order and the IN_CART to ORDER_PROCESS transition of every source item
// commit in a single transaction.
func (s *Service) OrderCartProducts(ctx context.Context, req CartRequest) (*Order, error) {
	if len(req.CartIDs) == 0 {
		return nil, ErrEmptyCart
	}
	if o, ok, err := s.replayIdempotent(ctx, req.MemberID, req.IdempotencyKey); err != nil {
		return nil, err
	} else if ok {
		return o, nil
	}

	items, err := s.carts.FindInCart(ctx, req.MemberID, req.CartIDs)
	if err != nil {
		return nil, errors.Wrap(err, "load cart items")
	}
	byID := make(map[int64]cart.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, id := range req.CartIDs {
		if _, ok := byID[id]; !ok {
			return nil, &CartNotFoundError{CartID: id}
		}
	}

	// Distinct product ids in cart order; sellers from the supplied mapping.
	productIDs := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}
		productIDs = append(productIDs, item.ProductID)
	}
	sellerIDs := make([]int64, 0, len(productIDs))
	for _, productID := range productIDs {
		sellerID, ok := req.ProductSellers[productID]
		if !ok {
			return nil, &SellerMappingError{ProductID: productID}
		}
		sellerIDs = append(sellerIDs, sellerID)
	}

	var (
		pricesRes      gateway.Result[map[int64]int64]
		identityRes    gateway.Result[gateway.DeliveryIdentity]
		rateDiscRes    gateway.Result[map[int64]int64]
		fixedDiscRes   gateway.Result[map[int64]bool]
		rateCouponRes  gateway.Result[map[int64]pricing.RateCoupon]
		fixedCouponRes gateway.Result[[]int64]
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pricesRes = s.catalog.UnitPrices(gctx, productIDs)
		return nil
	})
	g.Go(func() error {
		identityRes = s.identity.DeliveryIdentity(gctx, req.MemberID)
		return nil
	})
	g.Go(func() error {
		rateDiscRes = s.promotion.RateDiscounts(gctx, productIDs)
		return nil
	})
	g.Go(func() error {
		fixedDiscRes = s.promotion.FixedDiscountEligibility(gctx, productIDs, sellerIDs)
		return nil
	})
	if len(req.RateCouponIDs) > 0 {
		g.Go(func() error {
			rateCouponRes = s.promotion.RateCoupons(gctx, req.RateCouponIDs)
			return nil
		})
	}
	if len(req.FixedCouponIDs) > 0 {
		g.Go(func() error {
			fixedCouponRes = s.promotion.FixedCouponSellers(gctx, req.FixedCouponIDs)
			return nil
		})
	}
	_ = g.Wait()

	prices, ok := pricesRes.Get()
	if !ok {
		return nil, errors.Wrap(gateway.ErrUnavailable, "unit prices for cart products")
	}
	identity, ok := identityRes.Get()
	if !ok {
		return nil, errors.Wrapf(gateway.ErrUnavailable, "delivery identity for member %d", req.MemberID)
	}

	lines := make([]Line, 0, len(items))
	for _, item := range items {
		unitPrice, ok := prices[item.ProductID]
		if !ok {
			return nil, &ProductPriceMissingError{ProductID: item.ProductID}
		}
		lines = append(lines, Line{
			MemberID:  req.MemberID,
			ProductID: item.ProductID,
			SellerID:  req.ProductSellers[item.ProductID],
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		})
	}

	dc := pricing.Context{
		RateDiscounts:        rateDiscRes.OrEmpty(),
		FixedDiscountSellers: fixedDiscRes.OrEmpty(),
		RateCoupons:          rateCouponRes.OrEmpty(),
		FixedCouponSellers:   fixedCouponRes.OrEmpty(),
	}

	o, err := s.persist(ctx, req.MemberID, req.IdempotencyKey, identity, lines, dc, req.CartIDs)
	if err != nil {
		return nil, err
	}

	// Quantities for the same product are summed across cart items.
	quantities := make(map[int64]int, len(productIDs))
	for _, item := range items {
		quantities[item.ProductID] += item.Quantity
	}
	s.events.StockDecrement(ctx, o.ID, quantities)
	s.emitCouponConsumption(ctx, o, req.FixedCouponIDs, dc)

	return o, nil
}

// persist prices the lines and writes the order; cartIDs, when non-empty,
// are transitioned to ORDER_PROCESS in the same transaction.
func (s *Service) persist(
	ctx context.Context,
	memberID int64,
	idempotencyKey string,
	identity gateway.DeliveryIdentity,
	lines []Line,
	dc pricing.Context,
	cartIDs []int64,
) (*Order, error) {
	total, err := s.calc.TotalPrice(pricingLines(lines), dc)
	if err != nil {
		return nil, errors.Wrap(err, "calculate total price")
	}

	o := &Order{
		MemberID:        memberID,
		DeliveryName:    identity.Name,
		DeliveryAddress: identity.Address,
		TotalPrice:      total,
		Status:          StatusCreated,
		OrderedAt:       s.now(),
		IdempotencyKey:  idempotencyKey,
		Lines:           lines,
	}

	if len(cartIDs) == 0 {
		err = s.orders.Create(ctx, o)
	} else {
		err = s.orders.CreateWithCartTransition(ctx, o, cartIDs)
	}
	if err != nil {
		// A concurrent retry won the insert; hand back its order.
		if errors.Is(err, ErrDuplicateIdempotencyKey) && idempotencyKey != "" {
			return s.orders.FindByIdempotencyKey(ctx, memberID, idempotencyKey)
		}
		return nil, errors.Wrap(err, "create order")
	}

	zctx.From(ctx).Info("order created",
		zap.Int64("order_id", o.ID),
		zap.Int64("member_id", memberID),
		zap.Int64("total_price", total),
		zap.Int("lines", len(lines)),
	)
	return o, nil
}

// replayIdempotent returns the already-recorded order for the key, if any.
func (s *Service) replayIdempotent(ctx context.Context, memberID int64, key string) (*Order, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	o, err := s.orders.FindByIdempotencyKey(ctx, memberID, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "idempotency lookup")
	}
	zctx.From(ctx).Info("idempotent replay of order create",
		zap.Int64("order_id", o.ID),
		zap.String("idempotency_key", key),
	)
	return o, true, nil
}

// emitCouponConsumption announces applied coupons. No coupon in the resolved
// context means nothing was applied and no event is emitted; fixed coupon ids
// are announced only when they resolved to at least one seller.
func (s *Service) emitCouponConsumption(ctx context.Context, o *Order, fixedCouponIDs []int64, dc pricing.Context) {
	if len(dc.RateCoupons) == 0 && len(dc.FixedCouponSellers) == 0 {
		return
	}

	rateNames := make([]string, 0, len(dc.RateCoupons))
	for _, coupon := range dc.RateCoupons {
		rateNames = append(rateNames, coupon.Name)
	}
	sort.Strings(rateNames)

	var fixedIDs []int64
	if len(dc.FixedCouponSellers) > 0 {
		fixedIDs = fixedCouponIDs
	}

	s.events.CouponConsumption(ctx, o.ID, o.MemberID, fixedIDs, rateNames)
}

func pricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, line := range lines {
		out[i] = pricing.Line{
			ProductID: line.ProductID,
			SellerID:  line.SellerID,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		}
	}
	return out
}

func fixedIDList(id *int64) []int64 {
	if id == nil {
		return nil
	}
	return []int64{*id}
}
