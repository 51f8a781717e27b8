package api

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/lotte-kokodo/order-service/internal/domain/cart"
)

type cartItemResponse struct {
	CartID    int64  `json:"cartId"`
	ProductID int64  `json:"productId"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type updateQuantityResponse struct {
	CartID   int64 `json:"cartId"`
	Quantity int   `json:"quantity"`
	// Clamped is set when stock was below the request and the quantity was
	// lowered to match.
	Clamped bool `json:"clamped"`
}

func (h *Handler) listCart(w http.ResponseWriter, r *http.Request) {
	member, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member identity")
		return
	}

	items, err := h.carts.List(r.Context(), member)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, cartItemResponse{
			CartID:    item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Status:    string(item.Status),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updateCartQuantity(w http.ResponseWriter, r *http.Request) {
	member, ok := memberID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing member identity")
		return
	}
	cartID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid cart id")
		return
	}
	var req updateQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	got, err := h.carts.UpdateQuantity(r.Context(), cart.UpdateQuantityRequest{
		MemberID: member,
		CartID:   cartID,
		Quantity: req.Quantity,
	})
	if err != nil {
		// The clamp is a success with a caveat, not a failure.
		var stockErr *cart.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeJSON(w, http.StatusOK, updateQuantityResponse{
				CartID:   cartID,
				Quantity: got,
				Clamped:  true,
			})
			return
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateQuantityResponse{CartID: cartID, Quantity: got})
}
