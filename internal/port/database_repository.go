package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

// ErrOptimisticLock is returned when a concurrent writer won the race for a
// row. The whole unit of work may be retried.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

// UnitOfWork opens transactions. Callers must always defer Rollback; it is a
// no-op once Commit succeeded.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

type Tx interface {
	CatalogRepository
	CartRepository
	OrderRepository

	Commit() error
	Rollback() error
}

type CatalogRepository interface {
	// GetProduct returns the product with a snapshot of its inventory; no lock is taken
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// LockInventory reads the ledger row and holds it until the transaction ends
	LockInventory(ctx context.Context, productID string) (*domain.Inventory, error)

	// SaveInventory writes the ledger row back with a version check
	SaveInventory(ctx context.Context, inv *domain.Inventory) error

	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	GetAddress(ctx context.Context, addressID string) (*domain.Address, error)
}

type CartRepository interface {
	CreateCart(ctx context.Context, cart *domain.Cart) error

	// GetCart loads the cart with all of its items
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)

	ListCarts(ctx context.Context, ownerID string) ([]*domain.Cart, error)

	// DeleteCart removes the cart and every item in it
	DeleteCart(ctx context.Context, cartID string) error

	// SaveCartItem inserts or updates the item by ID
	SaveCartItem(ctx context.Context, item *domain.CartItem) error

	DeleteCartItem(ctx context.Context, cartID, itemID string) error
}

type OrderRepository interface {
	// CreateOrder persists the order with its items
	CreateOrder(ctx context.Context, order *domain.Order) error

	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	UpdateOrder(ctx context.Context, order *domain.Order) error

	// DeleteOrder removes the order and its items
	DeleteOrder(ctx context.Context, orderID string) error
}
