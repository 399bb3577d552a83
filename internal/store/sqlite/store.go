// Package sqlite provides the SQLite-backed order and catalog store.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — settlement writes while list/get handlers read. The store also
// carries the two guarantees the settlement flow leans on: a UNIQUE index on
// orders.payment_ref (one payment confirmation settles at most one order,
// enforced by the database rather than in-process state, since handlers run
// concurrently and possibly on multiple machines), and a conditional
// mark-paid UPDATE guarded by is_paid = 0 so the unpaid→paid transition
// happens exactly once even under racing callers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jcmexdev/ecommerce-checkout/internal/domain"

	// Register the pure-Go SQLite driver.
	// We use modernc.org/sqlite instead of mattn/go-sqlite3 to avoid CGO
	// requirements, making it easier to build and run in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
const schema = `
CREATE TABLE IF NOT EXISTS products (
    -- Catalog product id. The catalog is owned by an external system; this
    -- table is a read-only mirror as far as the checkout core is concerned.
    id     TEXT PRIMARY KEY,
    name   TEXT NOT NULL,

    -- Authoritative unit price, canonical 2-decimal TEXT (e.g. "25.00").
    price  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,

    -- Monetary columns are canonical 2-decimal TEXT. Fixed at creation;
    -- total_price = items_price + tax_price + shipping_price.
    items_price     TEXT NOT NULL,
    tax_price       TEXT NOT NULL,
    shipping_price  TEXT NOT NULL,
    total_price     TEXT NOT NULL,

    is_paid         INTEGER NOT NULL DEFAULT 0,
    paid_at         TEXT,

    -- External payment reference. NULL until settled; the UNIQUE index
    -- below is the replay guard — a reference can settle one order, ever.
    payment_ref         TEXT,
    payment_status      TEXT,
    payment_payer_email TEXT,
    payment_settled_at  TEXT,

    is_delivered    INTEGER NOT NULL DEFAULT 0,
    delivered_at    TEXT,

    -- Wall-clock timestamp (RFC3339 stored as TEXT, SQLite idiom).
    created_at      TEXT NOT NULL
);

-- SQLite unique indexes ignore NULLs, so unpaid orders don't collide.
CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_ref ON orders(payment_ref);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id, created_at);

CREATE TABLE IF NOT EXISTS order_items (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id    TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id  TEXT NOT NULL,
    name        TEXT NOT NULL,
    quantity    INTEGER NOT NULL,

    -- Catalog price snapshot at order-creation time. Later catalog price
    -- changes must not retroactively alter existing orders.
    unit_price  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
`

// Store is the SQLite implementation of the catalog and order ports.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema. WAL mode is enabled for better concurrent read/write
// performance.
//
//	st, err := sqlite.Open("./data/checkout.db")
func Open(path string) (*Store, error) {
	// The pure-Go driver uses _pragma query parameters to configure connection state.
	// WAL enables concurrent readers. foreign_keys=on enforces the order_items FK.
	// busy_timeout waits for locks instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3" for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertProduct writes a catalog entry. The catalog is externally owned; this
// exists for seeding demo data and tests.
func (s *Store) UpsertProduct(ctx context.Context, p domain.CatalogProduct) error {
	const q = `
		INSERT INTO products (id, name, price) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price`

	if _, err := s.db.ExecContext(ctx, q, p.ID, p.Name, p.Price.String()); err != nil {
		return fmt.Errorf("sqlite: upsert product %q: %w", p.ID, err)
	}
	return nil
}

// FindByIDs fetches all catalog products for the given ids in a single query.
// Missing ids simply produce fewer rows; the pricer detects that by count.
func (s *Store) FindByIDs(ctx context.Context, ids []string) ([]domain.CatalogProduct, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	q := fmt.Sprintf("SELECT id, name, price FROM products WHERE id IN (%s)", placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: find products: %w", err)
	}
	defer rows.Close()

	var out []domain.CatalogProduct
	for rows.Next() {
		var p domain.CatalogProduct
		var price string
		if err := rows.Scan(&p.ID, &p.Name, &price); err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		if p.Price, err = domain.ParseMoney(price); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertOrder persists a priced order and its lines in one transaction.
func (s *Store) InsertOrder(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin insert order: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO orders
			(id, user_id, items_price, tax_price, shipping_price, total_price, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, q,
		o.ID,
		o.UserID,
		o.ItemsPrice.String(),
		o.TaxPrice.String(),
		o.ShippingPrice.String(),
		o.TotalPrice.String(),
		formatTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert order %q: %w", o.ID, err)
	}

	const qi = `
		INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
		VALUES (?, ?, ?, ?, ?)`

	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx, qi, o.ID, it.ProductID, it.Name, it.Quantity, it.Price.String()); err != nil {
			return fmt.Errorf("sqlite: insert order item %q/%q: %w", o.ID, it.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit order %q: %w", o.ID, err)
	}
	return nil
}

// GetOrder loads a single order with its lines. Returns
// domain.ErrOrderNotFound when no row exists.
func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	const q = `
		SELECT id, user_id, items_price, tax_price, shipping_price, total_price,
		       is_paid, paid_at, payment_ref, payment_status, payment_payer_email,
		       payment_settled_at, is_delivered, delivered_at, created_at
		FROM   orders
		WHERE  id = ?`

	o, err := scanOrder(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if o.Items, err = s.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// PaymentRefUsed reports whether any order has already been settled with the
// given payment reference. Advisory only: the UNIQUE index on payment_ref is
// what actually guarantees at-most-once under concurrent settlement.
func (s *Store) PaymentRefUsed(ctx context.Context, ref string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM orders WHERE payment_ref = ?)`

	var used bool
	if err := s.db.QueryRowContext(ctx, q, ref).Scan(&used); err != nil {
		return false, fmt.Errorf("sqlite: check payment ref: %w", err)
	}
	return used, nil
}

// MarkPaid performs the atomic unpaid→paid transition. The UPDATE is guarded
// by is_paid = 0, so of any number of concurrent callers exactly one
// succeeds; the rest see domain.ErrAlreadyPaid. A payment reference already
// on another order trips the unique index and maps to
// domain.ErrDuplicateTransaction.
func (s *Store) MarkPaid(ctx context.Context, orderID string, res domain.PaymentResult, paidAt time.Time) (*domain.Order, error) {
	const q = `
		UPDATE orders
		SET    is_paid = 1,
		       paid_at = ?,
		       payment_ref = ?,
		       payment_status = ?,
		       payment_payer_email = ?,
		       payment_settled_at = ?
		WHERE  id = ? AND is_paid = 0`

	result, err := s.db.ExecContext(ctx, q,
		formatTime(paidAt),
		res.Ref,
		res.Status,
		res.PayerEmail,
		formatTime(res.SettledAt),
		orderID,
	)
	if err != nil {
		if isUniqueViolation(err, "orders.payment_ref") {
			return nil, fmt.Errorf("%w: ref %s", domain.ErrDuplicateTransaction, res.Ref)
		}
		return nil, fmt.Errorf("sqlite: mark order %q paid: %w", orderID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: mark order %q paid: %w", orderID, err)
	}
	if n == 0 {
		// Either the order does not exist or it is already paid;
		// distinguish so callers can map to the right failure.
		if _, err := s.GetOrder(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyPaid, orderID)
	}

	return s.GetOrder(ctx, orderID)
}

// MarkDelivered flips the delivery flag. No business rules beyond existence.
func (s *Store) MarkDelivered(ctx context.Context, orderID string, at time.Time) (*domain.Order, error) {
	const q = `UPDATE orders SET is_delivered = 1, delivered_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, q, formatTime(at), orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: mark order %q delivered: %w", orderID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("sqlite: mark order %q delivered: %w", orderID, err)
	} else if n == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}

	return s.GetOrder(ctx, orderID)
}

// ListOrdersByUser returns a user's orders, oldest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.list(ctx, `WHERE user_id = ?`, userID)
}

// ListOrders returns every order, oldest first.
func (s *Store) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.list(ctx, ``)
}

func (s *Store) list(ctx context.Context, where string, args ...any) ([]*domain.Order, error) {
	q := `
		SELECT id, user_id, items_price, tax_price, shipping_price, total_price,
		       is_paid, paid_at, payment_ref, payment_status, payment_payer_email,
		       payment_settled_at, is_delivered, delivered_at, created_at
		FROM   orders ` + where + ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}

	for _, o := range out {
		if o.Items, err = s.loadItems(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadItems(ctx context.Context, orderID string) ([]domain.OrderLineItem, error) {
	const q = `
		SELECT product_id, name, quantity, unit_price
		FROM   order_items
		WHERE  order_id = ?
		ORDER  BY id`

	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load items for %q: %w", orderID, err)
	}
	defer rows.Close()

	var items []domain.OrderLineItem
	for rows.Next() {
		var it domain.OrderLineItem
		var price string
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &price); err != nil {
			return nil, fmt.Errorf("sqlite: scan item for %q: %w", orderID, err)
		}
		if it.Price, err = domain.ParseMoney(price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// isUniqueViolation matches the driver's constraint error for a specific
// index. modernc.org/sqlite reports these as "constraint failed: UNIQUE
// constraint failed: <table>.<column>"; matching on the message keeps us off
// driver-internal error types.
func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
