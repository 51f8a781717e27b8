package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotte-kokodo/order-service/internal/domain/cart"
	"github.com/lotte-kokodo/order-service/internal/domain/order"
	"github.com/lotte-kokodo/order-service/internal/gateway"
)

// --- Mock implementations ---

type mockOrderService struct {
	lastSingle order.SingleProductRequest
	lastCart   order.CartRequest
	order      *order.Order
	err        error
}

func (m *mockOrderService) OrderSingleProduct(_ context.Context, req order.SingleProductRequest) (*order.Order, error) {
	m.lastSingle = req
	return m.order, m.err
}

func (m *mockOrderService) OrderCartProducts(_ context.Context, req order.CartRequest) (*order.Order, error) {
	m.lastCart = req
	return m.order, m.err
}

type mockOrderQueries struct {
	page    *order.Page
	details []order.LineDetail
	err     error
}

func (m *mockOrderQueries) ListOrders(_ context.Context, _ int64, _ int) (*order.Page, error) {
	return m.page, m.err
}

func (m *mockOrderQueries) OrderDetail(_ context.Context, _, _ int64) ([]order.LineDetail, error) {
	return m.details, m.err
}

func (m *mockOrderQueries) HasPurchased(_ context.Context, _, _ int64) (bool, error) {
	return true, m.err
}

type mockCartService struct {
	items    []cart.Item
	quantity int
	err      error
}

func (m *mockCartService) UpdateQuantity(_ context.Context, _ cart.UpdateQuantityRequest) (int, error) {
	return m.quantity, m.err
}

func (m *mockCartService) List(_ context.Context, _ int64) ([]cart.Item, error) {
	return m.items, m.err
}

// --- Helpers ---

func newServer(orders *mockOrderService, queries *mockOrderQueries, carts *mockCartService) *httptest.Server {
	if orders == nil {
		orders = &mockOrderService{}
	}
	if queries == nil {
		queries = &mockOrderQueries{}
	}
	if carts == nil {
		carts = &mockCartService{}
	}
	mux := http.NewServeMux()
	NewHandler(orders, queries, carts).Routes(mux)
	return httptest.NewServer(mux)
}

func doRequest(t *testing.T, method, url, member, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if member != "" {
		req.Header.Set(memberHeader, member)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// --- Tests ---

func TestPlaceOrder(t *testing.T) {
	t.Run("creates and returns the order", func(t *testing.T) {
		svc := &mockOrderService{order: &order.Order{ID: 42, Status: order.StatusCreated, TotalPrice: 75000}}
		srv := newServer(svc, nil, nil)
		defer srv.Close()

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/orders", "1",
			`{"productId":10,"sellerId":100,"quantity":15}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var got orderResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.EqualValues(t, 42, got.OrderID)
		assert.EqualValues(t, 75000, got.TotalPrice)
		assert.Equal(t, "CREATED", got.Status)

		assert.EqualValues(t, 1, svc.lastSingle.MemberID)
		assert.Equal(t, 15, svc.lastSingle.Quantity)
	})

	t.Run("forwards the idempotency key", func(t *testing.T) {
		svc := &mockOrderService{order: &order.Order{ID: 1}}
		srv := newServer(svc, nil, nil)
		defer srv.Close()

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/orders",
			strings.NewReader(`{"productId":10,"sellerId":100,"quantity":1}`))
		require.NoError(t, err)
		req.Header.Set(memberHeader, "1")
		req.Header.Set(idempotencyHeader, "req-7")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "req-7", svc.lastSingle.IdempotencyKey)
	})

	t.Run("rejects an unauthenticated call", func(t *testing.T) {
		srv := newServer(nil, nil, nil)
		defer srv.Close()

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/orders", "",
			`{"productId":10,"quantity":1}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("maps upstream unavailability to 503", func(t *testing.T) {
		svc := &mockOrderService{err: gateway.ErrUnavailable}
		srv := newServer(svc, nil, nil)
		defer srv.Close()

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/orders", "1",
			`{"productId":10,"sellerId":100,"quantity":1}`)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestPlaceCartOrder(t *testing.T) {
	t.Run("parses seller mapping keys", func(t *testing.T) {
		svc := &mockOrderService{order: &order.Order{ID: 1, TotalPrice: 70000}}
		srv := newServer(svc, nil, nil)
		defer srv.Close()

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/orders/cart", "1",
			`{"cartIds":[1,2,3],"productSellers":{"10":100,"20":100,"30":200}}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		assert.Equal(t, []int64{1, 2, 3}, svc.lastCart.CartIDs)
		assert.Equal(t, map[int64]int64{10: 100, 20: 100, 30: 200}, svc.lastCart.ProductSellers)
	})

	t.Run("maps a foreign cart id to 422", func(t *testing.T) {
		svc := &mockOrderService{err: &order.CartNotFoundError{CartID: 2}}
		srv := newServer(svc, nil, nil)
		defer srv.Close()

		resp := doRequest(t, http.MethodPost, srv.URL+"/api/orders/cart", "1",
			`{"cartIds":[1,2],"productSellers":{}}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestListOrders(t *testing.T) {
	queries := &mockOrderQueries{page: &order.Page{
		Orders: []order.Summary{
			{OrderID: 1, Name: "keyboard and 2 more", Status: order.StatusCreated, TotalPrice: 70000},
		},
		TotalCount: 7,
	}}
	srv := newServer(nil, queries, nil)
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/orders?page=0", "1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got orderPageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.EqualValues(t, 7, got.TotalCount)
	require.Len(t, got.Orders, 1)
	assert.Equal(t, "keyboard and 2 more", got.Orders[0].Name)
}

func TestOrderDetail(t *testing.T) {
	t.Run("returns enriched lines", func(t *testing.T) {
		queries := &mockOrderQueries{details: []order.LineDetail{
			{LineID: 11, ProductID: 10, Name: "keyboard", UnitPrice: 5000, Quantity: 1},
		}}
		srv := newServer(nil, queries, nil)
		defer srv.Close()

		resp := doRequest(t, http.MethodGet, srv.URL+"/api/orders/1", "1", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got []orderLineResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "keyboard", got[0].Name)
	})

	t.Run("maps a missing order to 404", func(t *testing.T) {
		queries := &mockOrderQueries{err: order.ErrNotFound}
		srv := newServer(nil, queries, nil)
		defer srv.Close()

		resp := doRequest(t, http.MethodGet, srv.URL+"/api/orders/99", "1", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUpdateCartQuantity(t *testing.T) {
	t.Run("returns the stored quantity", func(t *testing.T) {
		carts := &mockCartService{quantity: 7}
		srv := newServer(nil, nil, carts)
		defer srv.Close()

		resp := doRequest(t, http.MethodPatch, srv.URL+"/api/carts/1/quantity", "1", `{"quantity":7}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got updateQuantityResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, 7, got.Quantity)
		assert.False(t, got.Clamped)
	})

	t.Run("reports a clamp as success", func(t *testing.T) {
		carts := &mockCartService{quantity: 4, err: &cart.InsufficientStockError{CartID: 1, Available: 4}}
		srv := newServer(nil, nil, carts)
		defer srv.Close()

		resp := doRequest(t, http.MethodPatch, srv.URL+"/api/carts/1/quantity", "1", `{"quantity":10}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got updateQuantityResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, 4, got.Quantity)
		assert.True(t, got.Clamped)
	})
}
