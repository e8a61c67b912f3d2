package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// products.quantity carries a CHECK so that a debit racing past the
// application check aborts the transaction instead of committing negative stock.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		email      TEXT NOT NULL DEFAULT '',
		active     BOOLEAN NOT NULL DEFAULT true,
		staff      BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		slug        TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		price       NUMERIC(12,2) NOT NULL CHECK (price > 0),
		quantity    INTEGER NOT NULL DEFAULT 0 CONSTRAINT products_quantity_non_negative CHECK (quantity >= 0),
		active      BOOLEAN NOT NULL DEFAULT true,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id        TEXT PRIMARY KEY,
		product_id      TEXT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
		user_id         TEXT REFERENCES users(id) ON DELETE SET NULL,
		number_of_items INTEGER NOT NULL CHECK (number_of_items > 0),
		manifest        TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'pending'
		                CHECK (status IN ('pending', 'in_transit', 'delivered', 'cancelled')),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		inactive_at     TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
