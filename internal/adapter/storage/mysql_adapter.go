package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

var (
	_ port.UnitOfWork = (*MySQLAdapter)(nil)
	_ port.Tx         = (*mysqlTx)(nil)
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Begin(ctx context.Context) (port.Tx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &mysqlTx{tx: tx}, nil
}

// UpsertProduct writes the catalog entry and resets its ledger row.
func (m *MySQLAdapter) UpsertProduct(ctx context.Context, p domain.Product) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, unit_price) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), unit_price = VALUES(unit_price)`,
		p.ID, p.Name, p.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventories (product_id, available_quantity, sold_count, version) VALUES (?, ?, ?, 0)
		ON DUPLICATE KEY UPDATE available_quantity = VALUES(available_quantity),
			sold_count = VALUES(sold_count), version = version + 1, updated_at = NOW(6)`,
		p.ID, p.Inventory.Available, p.Inventory.Sold,
	)
	if err != nil {
		return fmt.Errorf("upsert inventory: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO customers (id, email) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE email = VALUES(email)`,
		c.ID, c.Email,
	)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpsertAddress(ctx context.Context, a domain.Address) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO addresses (id, customer_id, line1, line2, city, country, zip_code)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE customer_id = VALUES(customer_id), line1 = VALUES(line1),
			line2 = VALUES(line2), city = VALUES(city), country = VALUES(country), zip_code = VALUES(zip_code)`,
		a.ID, a.CustomerID, a.Line1, a.Line2, a.City, a.Country, a.ZipCode,
	)
	if err != nil {
		return fmt.Errorf("upsert address: %w", err)
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

// classify turns lock contention reported by MySQL into ErrOptimisticLock so
// the caller can retry the unit of work.
func classify(op string, err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout) {
		return fmt.Errorf("%s: %w: %v", op, port.ErrOptimisticLock, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (t *mysqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

func (t *mysqlTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (t *mysqlTx) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := t.tx.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.unit_price, i.available_quantity, i.sold_count, i.version, i.updated_at
		FROM products p JOIN inventories i ON i.product_id = p.id
		WHERE p.id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Inventory.Available, &p.Inventory.Sold,
		&p.Inventory.Version, &p.Inventory.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("product", productID)
	}
	if err != nil {
		return nil, classify("query product", err)
	}

	p.Inventory.ProductID = p.ID
	return &p, nil
}

func (t *mysqlTx) LockInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := t.tx.QueryRowContext(ctx, `
		SELECT product_id, available_quantity, sold_count, version, updated_at
		FROM inventories WHERE product_id = ? FOR UPDATE`, productID,
	).Scan(&inv.ProductID, &inv.Available, &inv.Sold, &inv.Version, &inv.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("product", productID)
	}
	if err != nil {
		return nil, classify("lock inventory", err)
	}

	return &inv, nil
}

func (t *mysqlTx) SaveInventory(ctx context.Context, inv *domain.Inventory) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE inventories
		SET available_quantity = ?, sold_count = ?, version = version + 1, updated_at = NOW(6)
		WHERE product_id = ? AND version = ?`,
		inv.Available, inv.Sold, inv.ProductID, inv.Version,
	)
	if err != nil {
		return classify("update inventory", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrOptimisticLock
	}

	inv.Version++
	return nil
}

func (t *mysqlTx) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var c domain.Customer
	err := t.tx.QueryRowContext(ctx, `SELECT id, email FROM customers WHERE id = ?`, customerID).
		Scan(&c.ID, &c.Email)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("customer", customerID)
	}
	if err != nil {
		return nil, classify("query customer", err)
	}
	return &c, nil
}

func (t *mysqlTx) GetAddress(ctx context.Context, addressID string) (*domain.Address, error) {
	var a domain.Address
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, customer_id, line1, line2, city, country, zip_code
		FROM addresses WHERE id = ?`, addressID,
	).Scan(&a.ID, &a.CustomerID, &a.Line1, &a.Line2, &a.City, &a.Country, &a.ZipCode)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("address", addressID)
	}
	if err != nil {
		return nil, classify("query address", err)
	}
	return &a, nil
}

func (t *mysqlTx) CreateCart(ctx context.Context, cart *domain.Cart) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO carts (id, owner_id, created_at) VALUES (?, ?, ?)`,
		cart.ID, cart.OwnerID, cart.CreatedAt.UTC(),
	)
	if err != nil {
		return classify("insert cart", err)
	}
	return nil
}

func (t *mysqlTx) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := t.tx.QueryRowContext(ctx, `SELECT id, owner_id, created_at FROM carts WHERE id = ?`, cartID).
		Scan(&cart.ID, &cart.OwnerID, &cart.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("cart", cartID)
	}
	if err != nil {
		return nil, classify("query cart", err)
	}

	if cart.Items, err = t.cartItems(ctx, cart.ID); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (t *mysqlTx) cartItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, p.unit_price
		FROM cart_items ci JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = ? ORDER BY ci.product_id`, cartID,
	)
	if err != nil {
		return nil, classify("query cart items", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (t *mysqlTx) ListCarts(ctx context.Context, ownerID string) ([]*domain.Cart, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, owner_id, created_at FROM carts
		WHERE owner_id = ? ORDER BY created_at, id`, ownerID,
	)
	if err != nil {
		return nil, classify("query carts", err)
	}

	carts := make([]*domain.Cart, 0)
	for rows.Next() {
		var c domain.Cart
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan cart: %w", err)
		}
		carts = append(carts, &c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate carts: %w", err)
	}
	rows.Close()

	// the connection is busy while rows are open, so items are loaded afterwards
	for _, c := range carts {
		if c.Items, err = t.cartItems(ctx, c.ID); err != nil {
			return nil, err
		}
	}
	return carts, nil
}

func (t *mysqlTx) DeleteCart(ctx context.Context, cartID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return classify("delete cart items", err)
	}

	result, err := t.tx.ExecContext(ctx, `DELETE FROM carts WHERE id = ?`, cartID)
	if err != nil {
		return classify("delete cart", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NewNotFound("cart", cartID)
	}
	return nil
}

func (t *mysqlTx) SaveCartItem(ctx context.Context, item *domain.CartItem) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity)`,
		item.ID, item.CartID, item.ProductID, item.Quantity,
	)
	if err != nil {
		return classify("save cart item", err)
	}
	return nil
}

func (t *mysqlTx) DeleteCartItem(ctx context.Context, cartID, itemID string) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND cart_id = ?`, itemID, cartID)
	if err != nil {
		return classify("delete cart item", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NewNotFound("cart item", itemID)
	}
	return nil
}

func (t *mysqlTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, owner_id, address_id, status, placed_at, payment_deadline, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.OwnerID, nullString(order.AddressID), order.Status,
		nullTime(order.PlacedAt), nullTime(order.PaymentDeadline), order.UpdatedAt.UTC(),
	)
	if err != nil {
		return classify("insert order", err)
	}

	for _, it := range order.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			it.ID, order.ID, it.ProductID, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return classify("insert order item", err)
		}
	}
	return nil
}

const orderColumns = `id, owner_id, address_id, status, placed_at, payment_deadline, updated_at`

func scanOrder(scan func(dest ...any) error) (*domain.Order, error) {
	var (
		o                 domain.Order
		addressID         sql.NullString
		placedAt, dueDate sql.NullTime
	)
	if err := scan(&o.ID, &o.OwnerID, &addressID, &o.Status, &placedAt, &dueDate, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.AddressID = addressID.String
	o.PlacedAt = placedAt.Time
	o.PaymentDeadline = dueDate.Time
	return &o, nil
}

func (t *mysqlTx) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)

	o, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("order", orderID)
	}
	if err != nil {
		return nil, classify("query order", err)
	}

	if o.Items, err = t.orderItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *mysqlTx) orderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items WHERE order_id = ? ORDER BY product_id`, orderID,
	)
	if err != nil {
		return nil, classify("query order items", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

var orderSortClauses = map[domain.OrderSort]string{
	"":                             "placed_at ASC, id ASC",
	domain.SortPlacedAtAsc:         "placed_at ASC, id ASC",
	domain.SortPlacedAtDesc:        "placed_at DESC, id ASC",
	domain.SortPaymentDeadlineAsc:  "payment_deadline ASC, placed_at ASC, id ASC",
	domain.SortPaymentDeadlineDesc: "payment_deadline DESC, placed_at ASC, id ASC",
}

func (t *mysqlTx) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []any
	)
	addBound := func(cond string, v time.Time) {
		if !v.IsZero() {
			where = append(where, cond)
			args = append(args, v.UTC())
		}
	}

	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	addBound("placed_at > ?", filter.PlacedAfter)
	addBound("placed_at < ?", filter.PlacedBefore)
	addBound("payment_deadline > ?", filter.DeadlineAfter)
	addBound("payment_deadline < ?", filter.DeadlineBefore)

	orderBy, ok := orderSortClauses[filter.Sort]
	if !ok {
		return nil, fmt.Errorf("unsupported order sort %q", filter.Sort)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderBy

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("query orders", err)
	}

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	rows.Close()

	for _, o := range orders {
		if o.Items, err = t.orderItems(ctx, o.ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (t *mysqlTx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	order.UpdatedAt = time.Now().UTC()
	result, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET address_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		nullString(order.AddressID), order.Status, order.UpdatedAt, order.ID,
	)
	if err != nil {
		return classify("update order", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NewNotFound("order", order.ID)
	}
	return nil
}

func (t *mysqlTx) DeleteOrder(ctx context.Context, orderID string) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = ?`, orderID); err != nil {
		return classify("delete order items", err)
	}

	result, err := t.tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, orderID)
	if err != nil {
		return classify("delete order", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.NewNotFound("order", orderID)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime stores the zero time of a pending order as NULL.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
