package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore keeps everything in process. A single mutex is the transaction
// boundary: WithinTx holds it for the whole unit of work and only applies the
// staged writes when fn succeeds.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]Product
	users    map[string]User
	orders   map[string]Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: map[string]Product{},
		users:    map[string]User{},
		orders:   map[string]Order{},
	}
}

func (m *MemoryStore) PutProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemoryStore) PutUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryStore) GetProduct(_ context.Context, id string) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, ErrProductMissing
	}
	return &p, nil
}

func (m *MemoryStore) ListProducts(_ context.Context, f ProductFilter) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(f.Query)
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		if f.ActiveOnly && !p.Active {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, ErrUserMissing
	}
	return &u, nil
}

func (m *MemoryStore) GetOrder(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.TotalCost = m.costOf(o)
	return &o, nil
}

func (m *MemoryStore) ListOrders(_ context.Context, userID string, f ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == nil || *o.UserID != userID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Query != "" && !strings.HasPrefix(o.ID, f.Query) {
			continue
		}
		if !f.Since.IsZero() && o.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && !o.Timestamp.Before(f.Until) {
			continue
		}
		o.TotalCost = m.costOf(o)
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UserSummary(_ context.Context, userID string) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{TotalSum: decimal.Zero}
	for _, o := range m.orders {
		if o.UserID == nil || *o.UserID != userID || o.Status == StatusCancelled {
			continue
		}
		s.OrderCount++
		s.ItemCount += o.NumberOfItems
		s.TotalSum = s.TotalSum.Add(m.costOf(o))
	}
	return s, nil
}

func (m *MemoryStore) costOf(o Order) decimal.Decimal {
	p, ok := m.products[o.ProductID]
	if !ok {
		return decimal.Zero
	}
	return p.Price.Mul(decimal.NewFromInt(int64(o.NumberOfItems)))
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		m:      m,
		stock:  map[string]int{},
		orders: map[string]Order{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id, q := range tx.stock {
		p := m.products[id]
		p.Quantity = q
		p.UpdatedAt = time.Now().UTC()
		m.products[id] = p
	}
	for id, o := range tx.orders {
		m.orders[id] = o
	}
	return nil
}

// memTx stages writes; reads see staged values first. The store mutex is held
// by WithinTx for the lifetime of a memTx.
type memTx struct {
	m      *MemoryStore
	stock  map[string]int
	orders map[string]Order
}

func (t *memTx) quantity(productID string) (int, error) {
	if q, ok := t.stock[productID]; ok {
		return q, nil
	}
	p, ok := t.m.products[productID]
	if !ok {
		return 0, ErrProductMissing
	}
	return p.Quantity, nil
}

func (t *memTx) DebitStock(_ context.Context, productID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("debit of %d items: %w", n, ErrEmptyOrder)
	}
	q, err := t.quantity(productID)
	if err != nil {
		return 0, err
	}
	if q < n {
		return 0, ErrInsufficientStock
	}
	t.stock[productID] = q - n
	return q - n, nil
}

func (t *memTx) CreditStock(_ context.Context, productID string, n int) error {
	q, err := t.quantity(productID)
	if err != nil {
		return err
	}
	t.stock[productID] = q + n
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	if _, ok := t.m.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, ErrConflict)
	}
	if _, ok := t.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, ErrConflict)
	}
	if o.UserID != nil {
		if _, ok := t.m.users[*o.UserID]; !ok {
			return fmt.Errorf("user %s: %w", *o.UserID, ErrConflict)
		}
	}
	if _, ok := t.m.products[o.ProductID]; !ok {
		return ErrProductMissing
	}
	t.orders[o.ID] = *o
	return nil
}

func (t *memTx) LockOrder(_ context.Context, orderID string) (*Order, error) {
	o, ok := t.orders[orderID]
	if !ok {
		o, ok = t.m.orders[orderID]
	}
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.TotalCost = t.m.costOf(o)
	return &o, nil
}

func (t *memTx) SetStatus(ctx context.Context, orderID string, s Status, inactiveAt *time.Time) error {
	o, err := t.LockOrder(ctx, orderID)
	if err != nil {
		return err
	}
	o.Status = s
	o.InactiveAt = inactiveAt
	o.TotalCost = decimal.Decimal{}
	t.orders[orderID] = *o
	return nil
}
