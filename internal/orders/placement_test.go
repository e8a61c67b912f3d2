package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, qty int) (*MemoryStore, *Placer, *User) {
	t.Helper()
	m := NewMemoryStore()
	m.PutProduct(Product{ID: "p1", Name: "Widget", Price: decimal.RequireFromString("3.50"), Quantity: qty, Active: true})
	u := User{ID: "u1", Username: "alice", Email: "alice@example.com", Active: true}
	m.PutUser(u)

	var seq atomic.Int64
	p := NewPlacer(m)
	p.Now = func() time.Time { return fixedNow }
	p.NewID = func() string { return fmt.Sprintf("ord-%d", seq.Add(1)) }
	return m, p, &u
}

func product(t *testing.T, m *MemoryStore) *Product {
	t.Helper()
	p, err := m.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	return p
}

func orderCount(t *testing.T, m *MemoryStore) int {
	t.Helper()
	list, err := m.ListOrders(context.Background(), "u1", ListFilter{})
	require.NoError(t, err)
	return len(list)
}

func TestPlace_DebitsStockAndCreatesPendingOrder(t *testing.T) {
	m, p, u := newFixture(t, 5)

	got, err := p.Place(context.Background(), product(t, m), u, PlaceRequest{NumberOfItems: 3, Manifest: "gift wrap"})
	require.NoError(t, err)

	assert.Equal(t, 2, product(t, m).Quantity)
	assert.Equal(t, StatusPending, got.Order.Status)
	assert.Equal(t, 3, got.Order.NumberOfItems)
	assert.Equal(t, "gift wrap", got.Order.Manifest)
	assert.Equal(t, fixedNow, got.Order.Timestamp)
	assert.True(t, got.Order.OwnedBy(u))
	assert.Nil(t, got.Order.InactiveAt)
	assert.True(t, decimal.RequireFromString("10.50").Equal(got.Order.TotalCost))

	stored, err := m.GetOrder(context.Background(), got.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)

	assert.Equal(t, 1, got.Summary.OrderCount)
	assert.Equal(t, 3, got.Summary.ItemCount)
	assert.True(t, decimal.RequireFromString("10.50").Equal(got.Summary.TotalSum))
}

func TestPlace_RejectsWithoutChangingState(t *testing.T) {
	tests := []struct {
		name  string
		stock int
		items int
		code  string
	}{
		{name: "insufficient stock", stock: 2, items: 5, code: CodeInsufficientStock},
		{name: "empty order", stock: 5, items: 0, code: CodeEmptyOrder},
		{name: "negative quantity", stock: 5, items: -1, code: CodeNegativeQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, p, u := newFixture(t, tt.stock)

			_, err := p.Place(context.Background(), product(t, m), u, PlaceRequest{NumberOfItems: tt.items})

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.code, ve.Code)
			assert.Equal(t, tt.stock, product(t, m).Quantity)
			assert.Zero(t, orderCount(t, m))
		})
	}
}

func TestPlace_RepeatedRejectionIsStable(t *testing.T) {
	m, p, u := newFixture(t, 2)
	for i := 0; i < 3; i++ {
		_, err := p.Place(context.Background(), product(t, m), u, PlaceRequest{NumberOfItems: 5})
		assert.ErrorIs(t, err, ErrInsufficientStock)
	}
	assert.Equal(t, 2, product(t, m).Quantity)
	assert.Zero(t, orderCount(t, m))
}

func TestPlace_ConcurrentPlacementsNeverOversell(t *testing.T) {
	m, p, u := newFixture(t, 5)

	// both requests validate against the same stock read
	snapshot := product(t, m)

	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		okCount  atomic.Int32
		errsMu   sync.Mutex
		failures []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			pr := *snapshot
			_, err := p.Place(context.Background(), &pr, u, PlaceRequest{NumberOfItems: 3})
			if err == nil {
				okCount.Add(1)
				return
			}
			errsMu.Lock()
			failures = append(failures, err)
			errsMu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), okCount.Load())
	require.Len(t, failures, 1)
	var ve *ValidationError
	require.ErrorAs(t, failures[0], &ve)
	assert.Equal(t, CodeInsufficientStock, ve.Code)
	assert.Equal(t, 2, product(t, m).Quantity)
	assert.Equal(t, 1, orderCount(t, m))
}

func TestPlace_ManyConcurrentBuyersSellExactlyTheStock(t *testing.T) {
	m, p, u := newFixture(t, 10)

	var (
		wg   sync.WaitGroup
		sold atomic.Int32
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pr, err := m.GetProduct(context.Background(), "p1")
			if err != nil {
				return
			}
			if _, err := p.Place(context.Background(), pr, u, PlaceRequest{NumberOfItems: 1}); err == nil {
				sold.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrInsufficientStock)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), sold.Load())
	assert.Equal(t, 0, product(t, m).Quantity)
	assert.Equal(t, 10, orderCount(t, m))
}

// failingInsert lets the debit succeed and then fails the order insert.
type failingInsert struct{ *MemoryStore }

func (f failingInsert) WithinTx(ctx context.Context, fn func(Tx) error) error {
	return f.MemoryStore.WithinTx(ctx, func(tx Tx) error {
		return fn(failingTx{tx})
	})
}

type failingTx struct{ Tx }

func (failingTx) InsertOrder(context.Context, *Order) error {
	return fmt.Errorf("insert: %w", ErrConflict)
}

func TestPlace_InsertFailureRollsBackDebit(t *testing.T) {
	m, _, u := newFixture(t, 5)
	p := NewPlacer(failingInsert{m})

	_, err := p.Place(context.Background(), product(t, m), u, PlaceRequest{NumberOfItems: 3})
	require.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, 5, product(t, m).Quantity)
	assert.Zero(t, orderCount(t, m))
}

func TestPlace_MissingOrInactiveParties(t *testing.T) {
	m, p, u := newFixture(t, 5)
	ctx := context.Background()

	_, err := p.Place(ctx, nil, u, PlaceRequest{NumberOfItems: 1})
	assert.ErrorIs(t, err, ErrProductMissing)

	_, err = p.Place(ctx, product(t, m), nil, PlaceRequest{NumberOfItems: 1})
	assert.ErrorIs(t, err, ErrUserMissing)

	inactive := *u
	inactive.Active = false
	_, err = p.Place(ctx, product(t, m), &inactive, PlaceRequest{NumberOfItems: 1})
	assert.ErrorIs(t, err, ErrUserMissing)

	off := product(t, m)
	off.Active = false
	_, err = p.Place(ctx, off, u, PlaceRequest{NumberOfItems: 1})
	assert.ErrorIs(t, err, ErrProductInactive)

	assert.Equal(t, 5, product(t, m).Quantity)
	assert.Zero(t, orderCount(t, m))
}

func TestPlace_ProductDeletedAfterRead(t *testing.T) {
	m, p, u := newFixture(t, 5)
	ghost := &Product{ID: "gone", Price: decimal.NewFromInt(1), Quantity: 5, Active: true}

	_, err := p.Place(context.Background(), ghost, u, PlaceRequest{NumberOfItems: 1})
	assert.ErrorIs(t, err, ErrProductMissing)
	assert.Zero(t, orderCount(t, m))
}

func TestPlace_CancelledContext(t *testing.T) {
	m, p, u := newFixture(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Place(ctx, product(t, m), u, PlaceRequest{NumberOfItems: 1})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 5, product(t, m).Quantity)
}

func TestCancel_RestocksAndMarksInactive(t *testing.T) {
	m, p, u := newFixture(t, 5)
	ctx := context.Background()
	placed, err := p.Place(ctx, product(t, m), u, PlaceRequest{NumberOfItems: 3})
	require.NoError(t, err)

	o, err := p.Cancel(ctx, u, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	require.NotNil(t, o.InactiveAt)
	assert.Equal(t, fixedNow, *o.InactiveAt)
	assert.Equal(t, 5, product(t, m).Quantity)

	sum, err := m.UserSummary(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, sum.OrderCount)

	_, err = p.Cancel(ctx, u, placed.Order.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, 5, product(t, m).Quantity)
}

func TestCancel_OtherUsersOrder(t *testing.T) {
	m, p, u := newFixture(t, 5)
	ctx := context.Background()
	placed, err := p.Place(ctx, product(t, m), u, PlaceRequest{NumberOfItems: 1})
	require.NoError(t, err)

	bob := User{ID: "u2", Username: "bob", Active: true}
	m.PutUser(bob)
	_, err = p.Cancel(ctx, &bob, placed.Order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 4, product(t, m).Quantity)

	staff := User{ID: "s1", Username: "ops", Active: true, Staff: true}
	o, err := p.Cancel(ctx, &staff, placed.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, 5, product(t, m).Quantity)
}

func TestCancel_UnknownOrder(t *testing.T) {
	_, p, u := newFixture(t, 5)
	_, err := p.Cancel(context.Background(), u, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestTransition(t *testing.T) {
	m, p, u := newFixture(t, 5)
	ctx := context.Background()
	placed, err := p.Place(ctx, product(t, m), u, PlaceRequest{NumberOfItems: 2})
	require.NoError(t, err)
	id := placed.Order.ID

	o, err := p.Transition(ctx, id, StatusInTransit)
	require.NoError(t, err)
	assert.Equal(t, StatusInTransit, o.Status)
	assert.Nil(t, o.InactiveAt)

	o, err = p.Transition(ctx, id, StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.NotNil(t, o.InactiveAt)
	// delivered orders keep their stock debit
	assert.Equal(t, 3, product(t, m).Quantity)

	_, err = p.Transition(ctx, id, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	stored, err := m.GetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, stored.Status)
}
