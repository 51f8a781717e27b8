// Package api exposes the ordering core over HTTP. Handlers stay thin: they
// decode the request, delegate to a domain service, and map domain errors to
// status codes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/lotte-kokodo/order-service/internal/domain/cart"
	"github.com/lotte-kokodo/order-service/internal/domain/order"
	"github.com/lotte-kokodo/order-service/internal/domain/pricing"
	"github.com/lotte-kokodo/order-service/internal/gateway"
)

// memberHeader carries the authenticated member id, injected by the edge
// gateway in front of this service.
const memberHeader = "X-Member-ID"

// idempotencyHeader carries the optional client-chosen dedupe key for order
// creation.
const idempotencyHeader = "Idempotency-Key"

// OrderService is the write side of ordering consumed by the handlers.
type OrderService interface {
	OrderSingleProduct(ctx context.Context, req order.SingleProductRequest) (*order.Order, error)
	OrderCartProducts(ctx context.Context, req order.CartRequest) (*order.Order, error)
}

// OrderQueries is the read side of ordering consumed by the handlers.
type OrderQueries interface {
	ListOrders(ctx context.Context, memberID int64, page int) (*order.Page, error)
	OrderDetail(ctx context.Context, memberID, orderID int64) ([]order.LineDetail, error)
	HasPurchased(ctx context.Context, memberID, productID int64) (bool, error)
}

// CartService is the cart surface consumed by the handlers.
type CartService interface {
	UpdateQuantity(ctx context.Context, req cart.UpdateQuantityRequest) (int, error)
	List(ctx context.Context, memberID int64) ([]cart.Item, error)
}

// Handler routes the order and cart endpoints.
type Handler struct {
	orders OrderService
	query  OrderQueries
	carts  CartService
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(orders OrderService, query OrderQueries, carts CartService) *Handler {
	return &Handler{orders: orders, query: query, carts: carts}
}

// Routes registers every endpoint on mux under /api.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("POST /api/orders/cart", h.placeCartOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.orderDetail)
	mux.HandleFunc("GET /api/orders/purchased/{productID}", h.hasPurchased)
	mux.HandleFunc("GET /api/carts", h.listCart)
	mux.HandleFunc("PATCH /api/carts/{id}/quantity", h.updateCartQuantity)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// memberID extracts the authenticated member id from the request. A missing
// or malformed header means the edge did not authenticate the call.
func memberID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get(memberHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP responses. Unknown errors are
// logged and become an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "a dependent service is unavailable, try again later")
		return
	case errors.Is(err, order.ErrNotFound), errors.Is(err, cart.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		invalidQty   *pricing.InvalidQuantityError
		cartNotFound *order.CartNotFoundError
		sellerMap    *order.SellerMappingError
		priceMissing *order.ProductPriceMissingError
		entryMissing *order.MissingCatalogEntryError
	)
	switch {
	case errors.As(err, &invalidQty),
		errors.As(err, &cartNotFound),
		errors.As(err, &sellerMap),
		errors.As(err, &priceMissing):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.As(err, &entryMissing):
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
