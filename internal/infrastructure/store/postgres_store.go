package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/product"
	"github.com/example/ec-shop/internal/domain/user"
	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL. Units of work are sql
// transactions; the stock counter CAS is an UPDATE guarded by the product
// version column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, is_admin FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	var p product.Product
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, price, image, count_in_stock, version
		 FROM products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image, &p.CountInStock, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, product.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetCartProduct(ctx context.Context, id string) (*cart.CartProduct, error) {
	var cp cart.CartProduct
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, quantity, selected_size, selected_colour, reserved
		 FROM cart_products WHERE id = $1`,
		id,
	).Scan(&cp.ID, &cp.UserID, &cp.ProductID, &cp.Quantity, &cp.SelectedSize, &cp.SelectedColour, &cp.Reserved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cart.ErrCartProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// CommitOrder applies one order-creation attempt in a single transaction:
// version-checked stock decrements, exactly one order insert, item inserts,
// and removal of the consumed cart products.
func (s *PostgresStore) CommitOrder(ctx context.Context, commit OrderCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range commit.Reservations {
		res, err := tx.ExecContext(ctx,
			`UPDATE products
			 SET count_in_stock = count_in_stock - $1, version = version + 1
			 WHERE id = $2 AND version = $3`,
			r.Quantity, r.ProductID, r.ExpectedVersion,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("reserving stock for product %s: %w", r.ProductID, ErrVersionConflict)
		}
	}

	if err := insertOrder(ctx, tx, commit.Order); err != nil {
		return err
	}

	if len(commit.RemoveCartProductIDs) > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_products WHERE id = ANY($1)`,
			pq.Array(commit.RemoveCartProductIDs),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertOrder(ctx context.Context, tx *sql.Tx, o *order.Order) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, address1, address2, city, zip, country, phone,
		                     total_price, status, status_history, date_ordered, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.UserID,
		o.Shipping.Address1, o.Shipping.Address2, o.Shipping.City,
		o.Shipping.Zip, o.Shipping.Country, o.Shipping.Phone,
		o.TotalPrice, string(o.Status), pq.Array(statusStrings(o.StatusHistory)),
		o.DateOrdered, o.Version,
	)
	if err != nil {
		return err
	}

	for _, item := range o.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity, product_price, product_name, product_image)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, o.ID, item.ProductID, item.Quantity,
			item.ProductPrice, item.ProductName, item.ProductImage,
		); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOrderStatus persists the order's status and history, checked against
// the version the caller loaded. Zero rows affected means another writer got
// there first.
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, o *order.Order) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, status_history = $2, version = version + 1
		 WHERE id = $3 AND version = $4`,
		string(o.Status), pq.Array(statusStrings(o.StatusHistory)), o.ID, o.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("updating order %s: %w", o.ID, ErrVersionConflict)
	}
	o.Version++
	return nil
}

// CloseOrder persists a terminal status change and restores the order's
// reserved stock in the same transaction.
func (s *PostgresStore) CloseOrder(ctx context.Context, o *order.Order, releases []StockRelease) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders
		 SET status = $1, status_history = $2, version = version + 1
		 WHERE id = $3 AND version = $4`,
		string(o.Status), pq.Array(statusStrings(o.StatusHistory)), o.ID, o.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("closing order %s: %w", o.ID, ErrVersionConflict)
	}

	for _, r := range releases {
		if _, err := tx.ExecContext(ctx,
			`UPDATE products
			 SET count_in_stock = count_in_stock + $1, version = version + 1
			 WHERE id = $2`,
			r.Quantity, r.ProductID,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	o.Version++
	return nil
}

// DeleteOrder removes an order and cascades to its items.
func (s *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrOrderNotFound
	}

	return tx.Commit()
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	o, err := s.scanOrder(s.db.QueryRowContext(ctx, selectOrder+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]order.Order, error) {
	return s.listOrders(ctx, selectOrder+` ORDER BY date_ordered DESC`)
}

func (s *PostgresStore) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return s.listOrders(ctx, selectOrder+` WHERE user_id = $1 ORDER BY date_ordered DESC`, userID)
}

func (s *PostgresStore) CountOrders(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n)
	return n, err
}

func (s *PostgresStore) ListStalePendingOrders(ctx context.Context, cutoff time.Time) ([]order.Order, error) {
	return s.listOrders(ctx,
		selectOrder+` WHERE status = 'pending' AND date_ordered < $1 ORDER BY date_ordered ASC`,
		cutoff,
	)
}

const selectOrder = `
	SELECT id, user_id, address1, address2, city, zip, country, phone,
	       total_price, status, status_history, date_ordered, version
	FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	var status string
	var history []string
	err := row.Scan(
		&o.ID, &o.UserID,
		&o.Shipping.Address1, &o.Shipping.Address2, &o.Shipping.City,
		&o.Shipping.Zip, &o.Shipping.Country, &o.Shipping.Phone,
		&o.TotalPrice, &status, pq.Array(&history), &o.DateOrdered, &o.Version,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	o.StatusHistory = toStatuses(history)
	return &o, nil
}

func (s *PostgresStore) listOrders(ctx context.Context, query string, args ...any) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := s.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := s.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *PostgresStore) loadItems(ctx context.Context, o *order.Order) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, quantity, product_price, product_name, product_image
		 FROM order_items WHERE order_id = $1`,
		o.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity,
			&item.ProductPrice, &item.ProductName, &item.ProductImage); err != nil {
			return err
		}
		o.Items = append(o.Items, item)
	}
	return rows.Err()
}

func statusStrings(history []order.Status) []string {
	out := make([]string, len(history))
	for i, s := range history {
		out[i] = string(s)
	}
	return out
}

func toStatuses(history []string) []order.Status {
	out := make([]order.Status, len(history))
	for i, s := range history {
		out[i] = order.Status(s)
	}
	return out
}

// ConnectPostgres establishes a connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
