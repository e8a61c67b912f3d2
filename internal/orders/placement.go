package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the persistence boundary of the order workflow. Every write goes
// through WithinTx so that stock and order rows change together or not at all.
type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]Product, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, error)
	UserSummary(ctx context.Context, userID string) (Summary, error)
	WithinTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is one unit of work. Implementations roll back when fn returns an error.
type Tx interface {
	// DebitStock subtracts n from the product's quantity as a relative update
	// and returns the remaining quantity. It fails with ErrInsufficientStock
	// instead of letting quantity drop below zero.
	DebitStock(ctx context.Context, productID string, n int) (int, error)
	CreditStock(ctx context.Context, productID string, n int) error
	InsertOrder(ctx context.Context, o *Order) error
	LockOrder(ctx context.Context, orderID string) (*Order, error)
	SetStatus(ctx context.Context, orderID string, s Status, inactiveAt *time.Time) error
}

type Placer struct {
	Store Store
	Now   func() time.Time
	NewID func() string
}

func NewPlacer(s Store) *Placer {
	return &Placer{
		Store: s,
		Now:   func() time.Time { return time.Now().UTC() },
		NewID: uuid.NewString,
	}
}

// Place validates req against product and, in one transaction, debits stock
// and records a pending order. On any error nothing is persisted.
func (p *Placer) Place(ctx context.Context, product *Product, user *User, req PlaceRequest) (*Placement, error) {
	if product == nil {
		return nil, ErrProductMissing
	}
	if user == nil || !user.Active {
		return nil, ErrUserMissing
	}
	if !product.Active {
		return nil, ErrProductInactive
	}
	if err := Validate(req, product); err != nil {
		return nil, err
	}

	uid := user.ID
	o := Order{
		ID:            p.NewID(),
		ProductID:     product.ID,
		UserID:        &uid,
		NumberOfItems: req.NumberOfItems,
		Manifest:      req.Manifest,
		Status:        StatusPending,
		Timestamp:     p.Now(),
	}

	var remaining int
	err := p.Store.WithinTx(ctx, func(tx Tx) error {
		n, err := tx.DebitStock(ctx, product.ID, o.NumberOfItems)
		if err != nil {
			return err
		}
		remaining = n
		return tx.InsertOrder(ctx, &o)
	})
	if err != nil {
		// stock moved between validation and commit
		if errors.Is(err, ErrInsufficientStock) {
			return nil, invalid(CodeInsufficientStock, ErrInsufficientStock)
		}
		return nil, fmt.Errorf("place order: %w", err)
	}
	o.TotalCost = product.Price.Mul(decimal.NewFromInt(int64(o.NumberOfItems)))

	slog.InfoContext(ctx, "order placed",
		"order_id", o.ID, "product_id", o.ProductID, "user_id", uid,
		"number_of_items", o.NumberOfItems, "remaining", remaining)

	sum, err := p.Store.UserSummary(ctx, uid)
	if err != nil {
		slog.WarnContext(ctx, "order summary unavailable", "user_id", uid, "err", err)
		sum = Summary{}
	}
	return &Placement{Order: o, Summary: sum}, nil
}

// Cancel moves the user's own order to cancelled and puts its items back in
// stock. Staff may cancel any order.
func (p *Placer) Cancel(ctx context.Context, user *User, orderID string) (*Order, error) {
	if user == nil || !user.Active {
		return nil, ErrUserMissing
	}
	var out *Order
	err := p.Store.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.OwnedBy(user) && !user.Staff {
			return ErrForbidden
		}
		if err := p.transition(ctx, tx, o, StatusCancelled); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition applies an administrative status change.
func (p *Placer) Transition(ctx context.Context, orderID string, to Status) (*Order, error) {
	var out *Order
	err := p.Store.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := p.transition(ctx, tx, o, to); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Placer) transition(ctx context.Context, tx Tx, o *Order, to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, o.Status, to)
	}
	if to == StatusCancelled {
		if err := tx.CreditStock(ctx, o.ProductID, o.NumberOfItems); err != nil {
			return err
		}
	}
	var inactiveAt *time.Time
	if to.Inactive() {
		now := p.Now()
		inactiveAt = &now
	}
	if err := tx.SetStatus(ctx, o.ID, to, inactiveAt); err != nil {
		return err
	}
	o.Status = to
	o.InactiveAt = inactiveAt
	return nil
}
