package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type pgTx struct{ tx pgx.Tx }

// DebitStock: relative update guarded by quantity >= n. No row back means either
// the product vanished or a concurrent placement already took the stock.
func (t *pgTx) DebitStock(ctx context.Context, productID string, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("debit of %d items: %w", n, ErrEmptyOrder)
	}
	var remaining int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`, productID, n).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrProductMissing
	}
	return 0, ErrInsufficientStock
}

func (t *pgTx) CreditStock(ctx context.Context, productID string, n int) error {
	ct, err := t.tx.Exec(ctx, `UPDATE products SET quantity = quantity + $2, updated_at = NOW() WHERE id=$1`, productID, n)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrProductMissing
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(order_id, product_id, user_id, number_of_items, manifest, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.ProductID, o.UserID, o.NumberOfItems, o.Manifest, string(o.Status), o.Timestamp)
	return err
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, orderSelect+` WHERE o.order_id=$1 FOR UPDATE OF o`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (t *pgTx) SetStatus(ctx context.Context, orderID string, s Status, inactiveAt *time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2, inactive_at=$3 WHERE order_id=$1`, orderID, string(s), inactiveAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}
