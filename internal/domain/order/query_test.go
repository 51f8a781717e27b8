package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotte-kokodo/order-service/internal/gateway"
)

type mockQueryRepo struct {
	rows      []PageRow
	total     int64
	pageErr   error
	lines     map[int64][]Line
	purchased map[int64]bool
}

func (m *mockQueryRepo) PageByMember(_ context.Context, _ int64, _, _ int) ([]PageRow, int64, error) {
	if m.pageErr != nil {
		return nil, 0, m.pageErr
	}
	return m.rows, m.total, nil
}

func (m *mockQueryRepo) LinesByOrder(_ context.Context, _, orderID int64) ([]Line, error) {
	return m.lines[orderID], nil
}

func (m *mockQueryRepo) ExistsByMemberAndProduct(_ context.Context, _, productID int64) (bool, error) {
	return m.purchased[productID], nil
}

func TestQueryServiceListOrders(t *testing.T) {
	orderedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("formats single and multi line orders", func(t *testing.T) {
		repo := &mockQueryRepo{
			rows: []PageRow{
				{OrderID: 1, Status: StatusCreated, TotalPrice: 70000, OrderedAt: orderedAt, FirstProductID: 10, LineCount: 3},
				{OrderID: 2, Status: StatusPaid, TotalPrice: 5000, OrderedAt: orderedAt, FirstProductID: 20, LineCount: 1},
			},
			total: 12,
		}
		catalog := &mockCatalog{summaries: map[int64]gateway.CatalogSummary{
			10: {Name: "keyboard", Thumbnail: "kb.png"},
			20: {Name: "mouse", Thumbnail: "m.png"},
		}}
		svc := NewQueryService(repo, catalog)

		page, err := svc.ListOrders(context.Background(), 1, 0)
		require.NoError(t, err)

		assert.EqualValues(t, 12, page.TotalCount)
		require.Len(t, page.Orders, 2)
		assert.Equal(t, "keyboard and 2 more", page.Orders[0].Name)
		assert.Equal(t, "kb.png", page.Orders[0].Thumbnail)
		assert.Equal(t, "mouse", page.Orders[1].Name)
		assert.Equal(t, StatusPaid, page.Orders[1].Status)
	})

	t.Run("skips orders whose product left the catalog", func(t *testing.T) {
		repo := &mockQueryRepo{
			rows: []PageRow{
				{OrderID: 1, FirstProductID: 10, LineCount: 1},
				{OrderID: 2, FirstProductID: 99, LineCount: 1},
			},
			total: 2,
		}
		catalog := &mockCatalog{summaries: map[int64]gateway.CatalogSummary{10: {Name: "keyboard"}}}
		svc := NewQueryService(repo, catalog)

		page, err := svc.ListOrders(context.Background(), 1, 0)
		require.NoError(t, err)
		require.Len(t, page.Orders, 1)
		assert.EqualValues(t, 1, page.Orders[0].OrderID)
		assert.EqualValues(t, 2, page.TotalCount, "total count still reflects every order")
	})

	t.Run("degrades to an empty page when the catalog is down", func(t *testing.T) {
		repo := &mockQueryRepo{
			rows:  []PageRow{{OrderID: 1, FirstProductID: 10, LineCount: 1}},
			total: 1,
		}
		svc := NewQueryService(repo, &mockCatalog{unavailable: true})

		page, err := svc.ListOrders(context.Background(), 1, 0)
		require.NoError(t, err)
		assert.Empty(t, page.Orders)
		assert.EqualValues(t, 1, page.TotalCount)
	})

	t.Run("clamps a negative page to the first", func(t *testing.T) {
		repo := &mockQueryRepo{total: 0}
		svc := NewQueryService(repo, &mockCatalog{})

		page, err := svc.ListOrders(context.Background(), 1, -3)
		require.NoError(t, err)
		assert.Empty(t, page.Orders)
	})
}

func TestQueryServiceOrderDetail(t *testing.T) {
	t.Run("enriches every line with catalog data", func(t *testing.T) {
		repo := &mockQueryRepo{lines: map[int64][]Line{
			1: {
				{ID: 11, ProductID: 10, UnitPrice: 5000, Quantity: 1},
				{ID: 12, ProductID: 20, UnitPrice: 10000, Quantity: 2},
			},
		}}
		catalog := &mockCatalog{summaries: map[int64]gateway.CatalogSummary{
			10: {Name: "keyboard", Thumbnail: "kb.png"},
			20: {Name: "mouse", Thumbnail: "m.png"},
		}}
		svc := NewQueryService(repo, catalog)

		details, err := svc.OrderDetail(context.Background(), 1, 1)
		require.NoError(t, err)
		require.Len(t, details, 2)
		assert.Equal(t, "keyboard", details[0].Name)
		assert.EqualValues(t, 5000, details[0].UnitPrice)
		assert.Equal(t, "mouse", details[1].Name)
		assert.Equal(t, 2, details[1].Quantity)
	})

	t.Run("returns not found for an unknown or foreign order", func(t *testing.T) {
		svc := NewQueryService(&mockQueryRepo{}, &mockCatalog{})
		_, err := svc.OrderDetail(context.Background(), 1, 99)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("fails when the catalog is down", func(t *testing.T) {
		repo := &mockQueryRepo{lines: map[int64][]Line{
			1: {{ID: 11, ProductID: 10, UnitPrice: 5000, Quantity: 1}},
		}}
		svc := NewQueryService(repo, &mockCatalog{unavailable: true})

		_, err := svc.OrderDetail(context.Background(), 1, 1)
		require.ErrorIs(t, err, gateway.ErrUnavailable)
	})

	t.Run("fails on a line whose catalog entry is missing", func(t *testing.T) {
		repo := &mockQueryRepo{lines: map[int64][]Line{
			1: {
				{ID: 11, ProductID: 10, UnitPrice: 5000, Quantity: 1},
				{ID: 12, ProductID: 99, UnitPrice: 1000, Quantity: 1},
			},
		}}
		catalog := &mockCatalog{summaries: map[int64]gateway.CatalogSummary{10: {Name: "keyboard"}}}
		svc := NewQueryService(repo, catalog)

		_, err := svc.OrderDetail(context.Background(), 1, 1)
		var missing *MissingCatalogEntryError
		require.ErrorAs(t, err, &missing)
		assert.EqualValues(t, 99, missing.ProductID)
	})
}

func TestQueryServiceHasPurchased(t *testing.T) {
	svc := NewQueryService(&mockQueryRepo{purchased: map[int64]bool{10: true}}, &mockCatalog{})

	ok, err := svc.HasPurchased(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPurchased(context.Background(), 1, 20)
	require.NoError(t, err)
	assert.False(t, ok)
}
