package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lotte-kokodo/order-service/internal/domain/order"
)

type singleOrderRequest struct {
	ProductID     int64  `json:"productId"`
	SellerID      int64  `json:"sellerId"`
	Quantity      int    `json:"quantity"`
	RateCouponID  *int64 `json:"rateCouponId,omitempty"`
	FixedCouponID *int64 `json:"fixedCouponId,omitempty"`
}

type cartOrderRequest struct {
	CartIDs        []int64          `json:"cartIds"`
	ProductSellers map[string]int64 `json:"productSellers"`
	RateCouponIDs  []int64          `json:"rateCouponIds,omitempty"`
	FixedCouponIDs []int64          `json:"fixedCouponIds,omitempty"`
}

type orderResponse struct {
	OrderID    int64     `json:"orderId"`
	Status     string    `json:"status"`
	TotalPrice int64     `json:"totalPrice"`
	OrderedAt  time.Time `json:"orderedAt"`
}

type orderSummaryResponse struct {
	OrderID    int64     `json:"orderId"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	TotalPrice int64     `json:"totalPrice"`
	Thumbnail  string    `json:"thumbnail"`
	OrderedAt  time.Time `json:"orderedAt"`
}

type orderPageResponse struct {
	Orders     []orderSummaryResponse `json:"orders"`
	TotalCount int64                  `json:"totalCount"`
}

type orderLineResponse struct {
	LineID    int64  `json:"lineId"`
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	member, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member identity")
		return
	}
	var req singleOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.orders.OrderSingleProduct(r.Context(), order.SingleProductRequest{
		MemberID:       member,
		ProductID:      req.ProductID,
		SellerID:       req.SellerID,
		Quantity:       req.Quantity,
		RateCouponID:   req.RateCouponID,
		FixedCouponID:  req.FixedCouponID,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) placeCartOrder(w http.ResponseWriter, r *http.Request) {
	member, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member identity")
		return
	}
	var req cartOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// JSON object keys are strings; the domain maps product ids.
	sellers := make(map[int64]int64, len(req.ProductSellers))
	for key, sellerID := range req.ProductSellers {
		productID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "productSellers keys must be product ids")
			return
		}
		sellers[productID] = sellerID
	}

	o, err := h.orders.OrderCartProducts(r.Context(), order.CartRequest{
		MemberID:       member,
		CartIDs:        req.CartIDs,
		ProductSellers: sellers,
		RateCouponIDs:  req.RateCouponIDs,
		FixedCouponIDs: req.FixedCouponIDs,
		IdempotencyKey: r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	member, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member identity")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	result, err := h.query.ListOrders(r.Context(), member, page)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	orders := make([]orderSummaryResponse, 0, len(result.Orders))
	for _, s := range result.Orders {
		orders = append(orders, orderSummaryResponse{
			OrderID:    s.OrderID,
			Name:       s.Name,
			Status:     string(s.Status),
			TotalPrice: s.TotalPrice,
			Thumbnail:  s.Thumbnail,
			OrderedAt:  s.OrderedAt,
		})
	}
	writeJSON(w, http.StatusOK, orderPageResponse{Orders: orders, TotalCount: result.TotalCount})
}

func (h *Handler) orderDetail(w http.ResponseWriter, r *http.Request) {
	member, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member identity")
		return
	}
	orderID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	lines, err := h.query.OrderDetail(r.Context(), member, orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]orderLineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, orderLineResponse{
			LineID:    line.LineID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Thumbnail: line.Thumbnail,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) hasPurchased(w http.ResponseWriter, r *http.Request) {
	member, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member identity")
		return
	}
	productID, ok := pathID(r, "productID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	purchased, err := h.query.HasPurchased(r.Context(), member, productID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"purchased": purchased})
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		OrderID:    o.ID,
		Status:     string(o.Status),
		TotalPrice: o.TotalPrice,
		OrderedAt:  o.OrderedAt,
	}
}
