package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const productColumns = `id, name, slug, description, price::text, quantity, active, created_at, updated_at`

const orderSelect = `
	SELECT o.order_id, o.product_id, o.user_id, o.number_of_items, o.manifest, o.status,
	       o.created_at, o.inactive_at, (p.price * o.number_of_items)::text
	FROM orders o
	JOIN products p ON p.id = o.product_id`

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &price, &p.Quantity, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	p.Price = d
	return &p, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o      Order
		status string
		cost   string
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.UserID, &o.NumberOfItems, &o.Manifest, &status,
		&o.Timestamp, &o.InactiveAt, &cost); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	d, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("order %s total cost: %w", o.ID, err)
	}
	o.TotalCost = d
	return &o, nil
}

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductMissing
	}
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context, f ProductFilter) ([]Product, error) {
	q := `SELECT ` + productColumns + ` FROM products WHERE TRUE`
	var args []any
	if f.ActiveOnly {
		q += ` AND active`
	}
	if f.Query != "" {
		args = append(args, "%"+escapeLike(f.Query)+"%")
		q += fmt.Sprintf(` AND (name ILIKE $%[1]d OR description ILIKE $%[1]d)`, len(args))
	}
	rows, err := r.DB.Query(ctx, q+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `SELECT id, username, email, active, staff FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.Active, &u.Staff)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserMissing
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrUserMissing
	}
	return &u, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, orderSelect+` WHERE o.order_id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return o, err
}

func (r *Repo) ListOrders(ctx context.Context, userID string, f ListFilter) ([]Order, error) {
	q := orderSelect + ` WHERE o.user_id = $1`
	args := []any{userID}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += fmt.Sprintf(` AND o.status = $%d`, len(args))
	}
	if f.Query != "" {
		args = append(args, escapeLike(f.Query)+"%")
		q += fmt.Sprintf(` AND o.order_id LIKE $%d`, len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		q += fmt.Sprintf(` AND o.created_at >= $%d`, len(args))
	}
	if !f.Until.IsZero() {
		args = append(args, f.Until)
		q += fmt.Sprintf(` AND o.created_at < $%d`, len(args))
	}
	q += ` ORDER BY o.created_at DESC, o.order_id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func (r *Repo) UserSummary(ctx context.Context, userID string) (Summary, error) {
	var (
		s     Summary
		total string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(o.number_of_items), 0), COALESCE(SUM(p.price * o.number_of_items), 0)::text
		FROM orders o
		JOIN products p ON p.id = o.product_id
		WHERE o.user_id = $1 AND o.status <> 'cancelled'`, userID).Scan(&s.OrderCount, &s.ItemCount, &total)
	if err != nil {
		return Summary{}, err
	}
	if s.TotalSum, err = decimal.NewFromString(total); err != nil {
		return Summary{}, err
	}
	return s, nil
}

// WithinTx runs fn in a READ COMMITTED transaction. The stock debit is a
// conditional relative UPDATE, which Postgres re-checks after waiting on the
// row lock, so no stronger isolation is needed.
func (r *Repo) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapPgErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgErr(err)
	}
	return nil
}

// Postgres error codes that mean "this unit of work lost a race".
var conflictCodes = map[string]bool{
	"23503": true, // foreign_key_violation
	"23505": true, // unique_violation
	"23514": true, // check_violation
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && conflictCodes[pgErr.Code] {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
