package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestCreateCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCustomer(t, "customer-1")

	cart, err := env.carts.CreateCart(ctx, "customer-1")
	require.NoError(t, err)
	assert.NotEmpty(t, cart.ID)
	assert.Equal(t, "customer-1", cart.OwnerID)
	assert.Empty(t, cart.Items)

	_, err = env.carts.CreateCart(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	carts, err := env.carts.ListCarts(ctx, "customer-1")
	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.Equal(t, cart.ID, carts[0].ID)
}

func TestAddItem_MergesSameProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "p-1", "2.50", 10)
	env.seedCustomer(t, "customer-1")
	cart := env.cartWith(t, "customer-1", map[string]int{"p-1": 3})

	item, err := env.carts.AddItem(ctx, AddItemInput{
		CartID:     cart.ID,
		CustomerID: "customer-1",
		ProductID:  "p-1",
		Quantity:   4,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)
	assert.Equal(t, cart.Items[0].ID, item.ID)

	items, err := env.carts.ListItems(ctx, cart.ID, "customer-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
	assert.Equal(t, "17.50", items[0].LineTotal().StringFixed(2))

	// adding to the cart never touches the ledger
	assert.Equal(t, 10, env.inventory(t, "p-1").Available)
}

func TestAddItem_Rejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedProduct(t, "p-1", "1.00", 10)
	env.seedCustomer(t, "owner")
	env.seedCustomer(t, "intruder")
	cart := env.cartWith(t, "owner", map[string]int{"p-1": 6})

	tests := []struct {
		name    string
		input   AddItemInput
		checkFn func(t *testing.T, err error)
	}{
		{
			name:  "over the remaining stock",
			input: AddItemInput{CartID: cart.ID, CustomerID: "owner", ProductID: "p-1", Quantity: 5},
			checkFn: func(t *testing.T, err error) {
				var maxErr *domain.MaxQuantityExceededError
				require.True(t, errors.As(err, &maxErr), "got %v", err)
				assert.Equal(t, 4, maxErr.Max)
				assert.Equal(t, 5, maxErr.Requested)
			},
		},
		{
			name:  "zero quantity",
			input: AddItemInput{CartID: cart.ID, CustomerID: "owner", ProductID: "p-1", Quantity: 0},
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
			},
		},
		{
			name:  "someone else's cart",
			input: AddItemInput{CartID: cart.ID, CustomerID: "intruder", ProductID: "p-1", Quantity: 1},
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrPermissionDenied)
			},
		},
		{
			name:  "unknown product",
			input: AddItemInput{CartID: cart.ID, CustomerID: "owner", ProductID: "p-404", Quantity: 1},
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.carts.AddItem(context.Background(), tt.input)
			require.Error(t, err)
			tt.checkFn(t, err)
		})
	}

	items, err := env.carts.ListItems(context.Background(), cart.ID, "owner")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 6, items[0].Quantity)
}

func TestUpdateItemQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "p-1", "1.00", 100)
	env.seedCustomer(t, "customer-1")
	cart := env.cartWith(t, "customer-1", map[string]int{"p-1": 1})
	itemID := cart.Items[0].ID

	_, err := env.carts.UpdateItemQuantity(ctx, UpdateItemInput{
		CartID:     cart.ID,
		ItemID:     itemID,
		CustomerID: "customer-1",
		Quantity:   100,
	})
	var maxErr *domain.MaxQuantityExceededError
	require.True(t, errors.As(err, &maxErr), "got %v", err)
	assert.Equal(t, 99, maxErr.Max)

	item, err := env.carts.UpdateItemQuantity(ctx, UpdateItemInput{
		CartID:     cart.ID,
		ItemID:     itemID,
		CustomerID: "customer-1",
		Quantity:   99,
	})
	require.NoError(t, err)
	assert.Equal(t, 99, item.Quantity)

	got, err := env.carts.GetItem(ctx, cart.ID, itemID, "customer-1")
	require.NoError(t, err)
	assert.Equal(t, 99, got.Quantity)

	_, err = env.carts.UpdateItemQuantity(ctx, UpdateItemInput{
		CartID:     cart.ID,
		ItemID:     "missing",
		CustomerID: "customer-1",
		Quantity:   1,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveItemAndDeleteCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "p-1", "1.00", 10)
	env.seedProduct(t, "p-2", "1.00", 10)
	env.seedCustomer(t, "owner")
	env.seedCustomer(t, "intruder")
	cart := env.cartWith(t, "owner", map[string]int{"p-1": 1, "p-2": 2})

	assert.ErrorIs(t, env.carts.RemoveItem(ctx, cart.ID, cart.Items[0].ID, "intruder"), domain.ErrPermissionDenied)
	require.NoError(t, env.carts.RemoveItem(ctx, cart.ID, cart.Items[0].ID, "owner"))
	assert.ErrorIs(t, env.carts.RemoveItem(ctx, cart.ID, cart.Items[0].ID, "owner"), domain.ErrNotFound)

	items, err := env.carts.ListItems(ctx, cart.ID, "owner")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p-2", items[0].ProductID)

	assert.ErrorIs(t, env.carts.DeleteCart(ctx, cart.ID, "intruder"), domain.ErrPermissionDenied)
	require.NoError(t, env.carts.DeleteCart(ctx, cart.ID, "owner"))

	_, err = env.carts.GetCart(ctx, cart.ID, "owner")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Two carts may each hold the whole remaining stock; the first checkout wins.
func TestSoftHoldsResolvedAtCheckout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "p-1", "1.00", 15)
	env.seedCustomer(t, "first")
	env.seedCustomer(t, "second")
	first := env.cartWith(t, "first", map[string]int{"p-1": 5})
	second := env.cartWith(t, "second", map[string]int{"p-1": 15})

	_, err := env.checkout.CreateOrder(ctx, CreateOrderInput{
		CartID: first.ID, CustomerID: "first", AddressID: "addr-first",
	})
	require.NoError(t, err)

	_, err = env.checkout.CreateOrder(ctx, CreateOrderInput{
		CartID: second.ID, CustomerID: "second", AddressID: "addr-second",
	})
	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.Equal(t, 10, stockErr.Available)
	assert.Equal(t, 15, stockErr.Requested)

	// the losing cart can take what is left and retry
	require.NoError(t, env.carts.RemoveItem(ctx, second.ID, second.Items[0].ID, "second"))
	_, err = env.carts.AddItem(ctx, AddItemInput{
		CartID: second.ID, CustomerID: "second", ProductID: "p-1", Quantity: 10,
	})
	require.NoError(t, err)
	_, err = env.checkout.CreateOrder(ctx, CreateOrderInput{
		CartID: second.ID, CustomerID: "second", AddressID: "addr-second",
	})
	require.NoError(t, err)

	inv := env.inventory(t, "p-1")
	assert.Zero(t, inv.Available)
	assert.Equal(t, 15, inv.Sold)
}
