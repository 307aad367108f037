package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/port"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type MySQLAdapter struct {
	db *sql.DB
	mysqlRepositories
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{
		db:                db,
		mysqlRepositories: mysqlRepositories{q: db},
	}
}

func (m *MySQLAdapter) WithTx(ctx context.Context, fn func(ctx context.Context, tx port.Repositories) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, mysqlRepositories{q: tx, forUpdate: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// mysqlRepositories runs every collection against either the pool or an
// open transaction. Inside a transaction reads take row locks.
type mysqlRepositories struct {
	q         querier
	forUpdate bool
}

const orderColumns = `id, user_id, cart_id, cart_items, address_info, order_status, payment_method,
	payment_status, total_amount, order_date, order_update_date, payment_id, payer_id`

func (r mysqlRepositories) lockClause() string {
	if r.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                domain.Order
		items, addressJS []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &o.CartID, &items, &addressJS, &o.OrderStatus, &o.PaymentMethod,
		&o.PaymentStatus, &o.TotalAmount, &o.OrderDate, &o.OrderUpdateDate, &o.PaymentID, &o.PayerID)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.CartItems); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	if err := json.Unmarshal(addressJS, &o.AddressInfo); err != nil {
		return nil, fmt.Errorf("decode address info: %w", err)
	}
	return &o, nil
}

func (r mysqlRepositories) FindOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`+r.lockClause(), id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	return o, nil
}

func (r mysqlRepositories) FindOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE user_id = ?
		ORDER BY order_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

func (r mysqlRepositories) SaveOrder(ctx context.Context, o domain.Order) error {
	items, err := json.Marshal(nonNilItems(o.CartItems))
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	address, err := json.Marshal(o.AddressInfo)
	if err != nil {
		return fmt.Errorf("encode address info: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			user_id = VALUES(user_id), cart_id = VALUES(cart_id), cart_items = VALUES(cart_items),
			address_info = VALUES(address_info), order_status = VALUES(order_status),
			payment_method = VALUES(payment_method), payment_status = VALUES(payment_status),
			total_amount = VALUES(total_amount), order_date = VALUES(order_date),
			order_update_date = VALUES(order_update_date), payment_id = VALUES(payment_id),
			payer_id = VALUES(payer_id)`,
		o.ID, o.UserID, o.CartID, items, address, o.OrderStatus, o.PaymentMethod,
		o.PaymentStatus, o.TotalAmount, o.OrderDate, o.OrderUpdateDate, o.PaymentID, o.PayerID,
	)
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	return nil
}

func (r mysqlRepositories) FindCart(ctx context.Context, id string) (*domain.Cart, error) {
	var (
		c     domain.Cart
		items []byte
	)
	err := r.q.QueryRowContext(ctx, `SELECT id, user_id, items FROM carts WHERE id = ?`+r.lockClause(), id).
		Scan(&c.ID, &c.UserID, &items)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cart: %w", err)
	}
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	return &c, nil
}

func (r mysqlRepositories) SaveCart(ctx context.Context, c domain.Cart) error {
	items, err := json.Marshal(nonNilItems(c.Items))
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	_, err = r.q.ExecContext(ctx, `
		INSERT INTO carts (id, user_id, items) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE user_id = VALUES(user_id), items = VALUES(items)`,
		c.ID, c.UserID, items,
	)
	if err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}
	return nil
}

func (r mysqlRepositories) DeleteCart(ctx context.Context, id string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM carts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r mysqlRepositories) FindProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.q.QueryRowContext(ctx, `
		SELECT id, title, price, total_stock, version, updated_at
		FROM products WHERE id = ?`+r.lockClause(), id,
	).Scan(&p.ID, &p.Title, &p.Price, &p.TotalStock, &p.Version, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return &p, nil
}

// SaveProduct inserts a product with version 0 and otherwise updates it
// only while the stored version still matches.
func (r mysqlRepositories) SaveProduct(ctx context.Context, p domain.Product) error {
	if p.Version == 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO products (id, title, price, total_stock, version, updated_at)
			VALUES (?, ?, ?, ?, 1, NOW(6))`,
			p.ID, p.Title, p.Price, p.TotalStock,
		)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET title = ?, price = ?, total_stock = ?, version = version + 1, updated_at = NOW(6)
		WHERE id = ? AND version = ?`,
		p.Title, p.Price, p.TotalStock, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func nonNilItems(items []domain.LineItem) []domain.LineItem {
	if items == nil {
		return []domain.LineItem{}
	}
	return items
}
