package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

var (
	_ port.UnitOfWork      = (*MemoryStore)(nil)
	_ port.Tx              = (*memoryTx)(nil)
	_ port.CacheRepository = (*MemoryCache)(nil)
)

type cartRow struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time
}

type memoryState struct {
	products  map[string]domain.Product
	customers map[string]domain.Customer
	addresses map[string]domain.Address
	carts     map[string]cartRow
	cartItems map[string]domain.CartItem
	orders    map[string]domain.Order
}

func newMemoryState() *memoryState {
	return &memoryState{
		products:  make(map[string]domain.Product),
		customers: make(map[string]domain.Customer),
		addresses: make(map[string]domain.Address),
		carts:     make(map[string]cartRow),
		cartItems: make(map[string]domain.CartItem),
		orders:    make(map[string]domain.Order),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.addresses {
		c.addresses[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	return c
}

// MemoryStore keeps everything in process. A transaction works on a private
// copy of the state and holds the store lock until it commits or rolls back,
// so transactions are fully serialized.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func (m *MemoryStore) Begin(ctx context.Context) (port.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	m.mu.Lock()
	return &memoryTx{store: m, state: m.state.clone()}, nil
}

func (m *MemoryStore) UpsertProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.Inventory.ProductID = p.ID
	m.state.products[p.ID] = p
	return nil
}

func (m *MemoryStore) UpsertCustomer(ctx context.Context, c domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.customers[c.ID] = c
	return nil
}

func (m *MemoryStore) UpsertAddress(ctx context.Context, a domain.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.addresses[a.ID] = a
	return nil
}

type memoryTx struct {
	store *MemoryStore
	state *memoryState
	done  bool
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.store.state = tx.state
	tx.store.mu.Unlock()
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}

func (tx *memoryTx) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	p, ok := tx.state.products[productID]
	if !ok {
		return nil, domain.NewNotFound("product", productID)
	}
	return &p, nil
}

func (tx *memoryTx) LockInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	p, ok := tx.state.products[productID]
	if !ok {
		return nil, domain.NewNotFound("product", productID)
	}
	inv := p.Inventory
	return &inv, nil
}

func (tx *memoryTx) SaveInventory(ctx context.Context, inv *domain.Inventory) error {
	p, ok := tx.state.products[inv.ProductID]
	if !ok {
		return domain.NewNotFound("product", inv.ProductID)
	}
	if p.Inventory.Version != inv.Version {
		return port.ErrOptimisticLock
	}
	if inv.Available < 0 {
		return fmt.Errorf("update inventory %s: negative stock %d", inv.ProductID, inv.Available)
	}

	inv.Version++
	inv.UpdatedAt = time.Now().UTC()
	p.Inventory = *inv
	tx.state.products[p.ID] = p
	return nil
}

func (tx *memoryTx) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	c, ok := tx.state.customers[customerID]
	if !ok {
		return nil, domain.NewNotFound("customer", customerID)
	}
	return &c, nil
}

func (tx *memoryTx) GetAddress(ctx context.Context, addressID string) (*domain.Address, error) {
	a, ok := tx.state.addresses[addressID]
	if !ok {
		return nil, domain.NewNotFound("address", addressID)
	}
	return &a, nil
}

func (tx *memoryTx) CreateCart(ctx context.Context, cart *domain.Cart) error {
	if _, ok := tx.state.carts[cart.ID]; ok {
		return fmt.Errorf("insert cart: duplicate id %s", cart.ID)
	}
	tx.state.carts[cart.ID] = cartRow{ID: cart.ID, OwnerID: cart.OwnerID, CreatedAt: cart.CreatedAt}
	return nil
}

func (tx *memoryTx) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	row, ok := tx.state.carts[cartID]
	if !ok {
		return nil, domain.NewNotFound("cart", cartID)
	}
	return tx.loadCart(row), nil
}

func (tx *memoryTx) loadCart(row cartRow) *domain.Cart {
	cart := &domain.Cart{ID: row.ID, OwnerID: row.OwnerID, CreatedAt: row.CreatedAt}
	for _, it := range tx.state.cartItems {
		if it.CartID != row.ID {
			continue
		}
		if p, ok := tx.state.products[it.ProductID]; ok {
			it.UnitPrice = p.UnitPrice
		}
		cart.Items = append(cart.Items, it)
	}
	sort.Slice(cart.Items, func(i, j int) bool {
		return cart.Items[i].ProductID < cart.Items[j].ProductID
	})
	return cart
}

func (tx *memoryTx) ListCarts(ctx context.Context, ownerID string) ([]*domain.Cart, error) {
	carts := make([]*domain.Cart, 0)
	for _, row := range tx.state.carts {
		if row.OwnerID == ownerID {
			carts = append(carts, tx.loadCart(row))
		}
	}
	sort.Slice(carts, func(i, j int) bool {
		if !carts[i].CreatedAt.Equal(carts[j].CreatedAt) {
			return carts[i].CreatedAt.Before(carts[j].CreatedAt)
		}
		return carts[i].ID < carts[j].ID
	})
	return carts, nil
}

func (tx *memoryTx) DeleteCart(ctx context.Context, cartID string) error {
	if _, ok := tx.state.carts[cartID]; !ok {
		return domain.NewNotFound("cart", cartID)
	}
	for id, it := range tx.state.cartItems {
		if it.CartID == cartID {
			delete(tx.state.cartItems, id)
		}
	}
	delete(tx.state.carts, cartID)
	return nil
}

func (tx *memoryTx) SaveCartItem(ctx context.Context, item *domain.CartItem) error {
	if _, ok := tx.state.carts[item.CartID]; !ok {
		return domain.NewNotFound("cart", item.CartID)
	}
	for id, it := range tx.state.cartItems {
		if id != item.ID && it.CartID == item.CartID && it.ProductID == item.ProductID {
			return fmt.Errorf("save cart item: product %s already in cart %s", item.ProductID, item.CartID)
		}
	}
	tx.state.cartItems[item.ID] = *item
	return nil
}

func (tx *memoryTx) DeleteCartItem(ctx context.Context, cartID, itemID string) error {
	it, ok := tx.state.cartItems[itemID]
	if !ok || it.CartID != cartID {
		return domain.NewNotFound("cart item", itemID)
	}
	delete(tx.state.cartItems, itemID)
	return nil
}

func (tx *memoryTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, ok := tx.state.orders[order.ID]; ok {
		return fmt.Errorf("insert order: duplicate id %s", order.ID)
	}
	o := *order
	o.Items = append([]domain.OrderItem(nil), order.Items...)
	tx.state.orders[o.ID] = o
	return nil
}

func (tx *memoryTx) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, ok := tx.state.orders[orderID]
	if !ok {
		return nil, domain.NewNotFound("order", orderID)
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

func (tx *memoryTx) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0)
	for _, o := range tx.state.orders {
		if !filter.Match(&o) {
			continue
		}
		o.Items = append([]domain.OrderItem(nil), o.Items...)
		orders = append(orders, &o)
	}
	domain.SortOrders(orders, filter.Sort)
	return orders, nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	if _, ok := tx.state.orders[order.ID]; !ok {
		return domain.NewNotFound("order", order.ID)
	}
	order.UpdatedAt = time.Now().UTC()
	o := *order
	o.Items = append([]domain.OrderItem(nil), order.Items...)
	tx.state.orders[o.ID] = o
	return nil
}

func (tx *memoryTx) DeleteOrder(ctx context.Context, orderID string) error {
	if _, ok := tx.state.orders[orderID]; !ok {
		return domain.NewNotFound("order", orderID)
	}
	delete(tx.state.orders, orderID)
	return nil
}

// MemoryCache is the in-process stand-in for RedisAdapter.
type MemoryCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	keys map[string]time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{ttl: idempotencyKeyTTL, keys: make(map[string]time.Time)}
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if exp, ok := c.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.keys[key] = now.Add(c.ttl)
	return true, nil
}

func (c *MemoryCache) ReleaseIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}
