package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ListOrdersFilters(t *testing.T) {
	m, p, u := newFixture(t, 20)
	ctx := context.Background()

	var ids []string
	for i := 1; i <= 3; i++ {
		now := fixedNow.Add(time.Duration(i) * time.Minute)
		p.Now = func() time.Time { return now }
		got, err := p.Place(ctx, product(t, m), u, PlaceRequest{NumberOfItems: i})
		require.NoError(t, err)
		ids = append(ids, got.Order.ID)
	}
	_, err := p.Cancel(ctx, u, ids[0])
	require.NoError(t, err)

	all, err := m.ListOrders(ctx, u.ID, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})

	cancelled, err := m.ListOrders(ctx, u.ID, ListFilter{Status: StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, ids[0], cancelled[0].ID)

	byPrefix, err := m.ListOrders(ctx, u.ID, ListFilter{Query: ids[1]})
	require.NoError(t, err)
	require.Len(t, byPrefix, 1)

	since, err := m.ListOrders(ctx, u.ID, ListFilter{Since: fixedNow.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, since, 2)

	window, err := m.ListOrders(ctx, u.ID, ListFilter{Since: fixedNow.Add(2 * time.Minute), Until: fixedNow.Add(3 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, ids[1], window[0].ID)

	limited, err := m.ListOrders(ctx, u.ID, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	other, err := m.ListOrders(ctx, "someone-else", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)

	sum, err := m.UserSummary(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.OrderCount)
	assert.Equal(t, 5, sum.ItemCount)
	assert.True(t, decimal.RequireFromString("17.50").Equal(sum.TotalSum))
}

func TestMemoryStore_ListProductsFilters(t *testing.T) {
	m := NewMemoryStore()
	m.PutProduct(Product{ID: "b", Name: "Bolt", Description: "steel fastener", Active: true})
	m.PutProduct(Product{ID: "a", Name: "Anvil", Description: "heavy", Active: true})
	m.PutProduct(Product{ID: "c", Name: "Crate", Description: "holds bolts"})

	active, err := m.ListProducts(context.Background(), ProductFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Anvil", active[0].Name)

	all, err := m.ListProducts(context.Background(), ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bolts, err := m.ListProducts(context.Background(), ProductFilter{Query: "BOLT"})
	require.NoError(t, err)
	require.Len(t, bolts, 2)
	assert.Equal(t, []string{"Bolt", "Crate"}, []string{bolts[0].Name, bolts[1].Name})

	activeBolts, err := m.ListProducts(context.Background(), ProductFilter{ActiveOnly: true, Query: "bolt"})
	require.NoError(t, err)
	require.Len(t, activeBolts, 1)
	assert.Equal(t, "b", activeBolts[0].ID)
}

func TestMemoryStore_InactiveUserIsMissing(t *testing.T) {
	m := NewMemoryStore()
	m.PutUser(User{ID: "u9", Username: "ghost"})
	_, err := m.GetUser(context.Background(), "u9")
	assert.ErrorIs(t, err, ErrUserMissing)
}

func TestMemoryStore_DebitNeverGoesNegative(t *testing.T) {
	m, _, _ := newFixture(t, 3)
	err := m.WithinTx(context.Background(), func(tx Tx) error {
		left, err := tx.DebitStock(context.Background(), "p1", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, left)
		_, err = tx.DebitStock(context.Background(), "p1", 2)
		return err
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3, product(t, m).Quantity)
}
