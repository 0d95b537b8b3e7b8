package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Mock Notifier
type mockNotifier struct {
	mu   sync.Mutex
	sent []domain.OrderConfirmation
	err  error
}

func (m *mockNotifier) SendOrderConfirmation(ctx context.Context, c domain.OrderConfirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return m.err
}

func (m *mockNotifier) Sent() []domain.OrderConfirmation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderConfirmation(nil), m.sent...)
}

type testEnv struct {
	store      *storage.MemoryStore
	cache      *storage.MemoryCache
	notifier   *mockNotifier
	dispatcher *NotificationDispatcher
	carts      *CartService
	checkout   *CheckoutService
	orders     *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithUoW(t, nil)
}

// newTestEnvWithUoW lets a test wrap the store's unit of work; nil uses the
// store directly.
func newTestEnvWithUoW(t *testing.T, wrap func(port.UnitOfWork) port.UnitOfWork) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	store := storage.NewMemoryStore()
	var uow port.UnitOfWork = store
	if wrap != nil {
		uow = wrap(store)
	}

	env := &testEnv{
		store:    store,
		cache:    storage.NewMemoryCache(),
		notifier: &mockNotifier{},
	}
	env.dispatcher = NewNotificationDispatcher(env.notifier, logger, 100)
	env.dispatcher.Start(2)
	t.Cleanup(env.dispatcher.Close)

	env.carts = NewCartService(uow, logger)
	env.checkout = NewCheckoutService(uow, env.cache, env.dispatcher, logger, CheckoutConfig{})
	env.orders = NewOrderService(uow, logger)
	return env
}

func (e *testEnv) seedProduct(t *testing.T, id, price string, available int) {
	t.Helper()
	require.NoError(t, e.store.UpsertProduct(context.Background(), domain.Product{
		ID:        id,
		Name:      "product " + id,
		UnitPrice: decimal.RequireFromString(price),
		Inventory: domain.Inventory{Available: available},
	}))
}

// setStock changes the ledger behind the carts' back, as another checkout would.
func (e *testEnv) setStock(t *testing.T, productID string, available int) {
	t.Helper()
	ctx := context.Background()
	tx, err := e.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	inv, err := tx.LockInventory(ctx, productID)
	require.NoError(t, err)
	inv.Available = available
	require.NoError(t, tx.SaveInventory(ctx, inv))
	require.NoError(t, tx.Commit())
}

// seedCustomer creates a customer with one address "addr-<id>".
func (e *testEnv) seedCustomer(t *testing.T, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.UpsertCustomer(ctx, domain.Customer{ID: id, Email: id + "@mail.com"}))
	require.NoError(t, e.store.UpsertAddress(ctx, domain.Address{
		ID:         "addr-" + id,
		CustomerID: id,
		Line1:      "address 1/1",
		City:       "Warsaw",
		Country:    "PL",
		ZipCode:    "00-001",
	}))
}

func (e *testEnv) inventory(t *testing.T, productID string) domain.Inventory {
	t.Helper()
	ctx := context.Background()
	tx, err := e.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	inv, err := tx.LockInventory(ctx, productID)
	require.NoError(t, err)
	return *inv
}

func (e *testEnv) countOrders(t *testing.T) int {
	t.Helper()
	orders, err := e.orders.ListOrders(context.Background(), domain.OrderFilter{})
	require.NoError(t, err)
	return len(orders)
}

func (e *testEnv) cartWith(t *testing.T, customerID string, lines map[string]int) *domain.Cart {
	t.Helper()
	ctx := context.Background()
	cart, err := e.carts.CreateCart(ctx, customerID)
	require.NoError(t, err)

	for productID, qty := range lines {
		_, err := e.carts.AddItem(ctx, AddItemInput{
			CartID:     cart.ID,
			CustomerID: customerID,
			ProductID:  productID,
			Quantity:   qty,
		})
		require.NoError(t, err)
	}

	cart, err = e.carts.GetCart(ctx, cart.ID, customerID)
	require.NoError(t, err)
	return cart
}

// seedPendingOrder stores an order that never went through acceptance.
func (e *testEnv) seedPendingOrder(t *testing.T, customerID string, items []domain.OrderItem) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order := domain.NewOrder(customerID, "addr-"+customerID, items)

	tx, err := e.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, tx.CreateOrder(ctx, order))
	require.NoError(t, tx.Commit())
	return order
}
