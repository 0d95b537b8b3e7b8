package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
)

func placeOrder(t *testing.T, env *testEnv, customerID string, lines map[string]int) *domain.Order {
	t.Helper()
	cart := env.cartWith(t, customerID, lines)
	order, err := env.checkout.CreateOrder(context.Background(), CreateOrderInput{
		CartID:     cart.ID,
		CustomerID: customerID,
		AddressID:  "addr-" + customerID,
	})
	require.NoError(t, err)
	return order
}

func TestAcceptedOrderIsLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "p-1", "1.00", 10)
	env.seedCustomer(t, "customer-1")
	require.NoError(t, env.store.UpsertAddress(ctx, domain.Address{
		ID: "addr-other", CustomerID: "customer-1", Line1: "elsewhere", City: "Krakow", Country: "PL",
	}))
	order := placeOrder(t, env, "customer-1", map[string]int{"p-1": 4})

	_, err := env.orders.UpdateOrder(ctx, UpdateOrderInput{
		OrderID:    order.ID,
		CustomerID: "customer-1",
		AddressID:  "addr-other",
	})
	var locked *domain.OrderLockedError
	require.True(t, errors.As(err, &locked), "got %v", err)
	assert.Equal(t, order.ID, locked.OrderID)

	err = env.orders.DestroyOrder(ctx, order.ID, "customer-1")
	require.True(t, errors.As(err, &locked), "got %v", err)

	stored, err := env.orders.GetOrder(ctx, order.ID, "customer-1")
	require.NoError(t, err)
	assert.Equal(t, "addr-customer-1", stored.AddressID)
	assert.True(t, stored.Accepted())

	inv := env.inventory(t, "p-1")
	assert.Equal(t, 6, inv.Available)
	assert.Equal(t, 4, inv.Sold)
}

func TestDestroyPendingOrderReleasesStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "p-1", "1.00", 10)
	env.seedProduct(t, "p-2", "2.00", 10)
	env.seedCustomer(t, "customer-1")
	order := env.seedPendingOrder(t, "customer-1", []domain.OrderItem{
		{ProductID: "p-2", Quantity: 3, UnitPrice: decimal.RequireFromString("2.00")},
		{ProductID: "p-1", Quantity: 2, UnitPrice: decimal.RequireFromString("1.00")},
	})

	require.NoError(t, env.orders.DestroyOrder(ctx, order.ID, "customer-1"))

	_, err := env.orders.GetOrder(ctx, order.ID, "customer-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, 12, env.inventory(t, "p-1").Available)
	assert.Equal(t, 13, env.inventory(t, "p-2").Available)
	assert.Zero(t, env.inventory(t, "p-1").Sold)
}

func TestUpdatePendingOrderAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedCustomer(t, "customer-1")
	env.seedCustomer(t, "customer-2")
	require.NoError(t, env.store.UpsertAddress(ctx, domain.Address{
		ID: "addr-customer-1-work", CustomerID: "customer-1", Line1: "office", City: "Gdansk", Country: "PL",
	}))
	order := env.seedPendingOrder(t, "customer-1", nil)

	updated, err := env.orders.UpdateOrder(ctx, UpdateOrderInput{
		OrderID:    order.ID,
		CustomerID: "customer-1",
		AddressID:  "addr-customer-1-work",
	})
	require.NoError(t, err)
	assert.Equal(t, "addr-customer-1-work", updated.AddressID)

	stored, err := env.orders.GetOrder(ctx, order.ID, "customer-1")
	require.NoError(t, err)
	assert.Equal(t, "addr-customer-1-work", stored.AddressID)

	_, err = env.orders.UpdateOrder(ctx, UpdateOrderInput{
		OrderID:    order.ID,
		CustomerID: "customer-1",
		AddressID:  "nope",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = env.orders.UpdateOrder(ctx, UpdateOrderInput{
		OrderID:    order.ID,
		CustomerID: "customer-2",
		AddressID:  "addr-customer-2",
	})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	assert.ErrorIs(t, env.orders.DestroyOrder(ctx, order.ID, "customer-2"), domain.ErrPermissionDenied)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedProduct(t, "p-1", "1.00", 100)
	env.seedCustomer(t, "customer-1")
	env.seedCustomer(t, "customer-2")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	env.checkout.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	first := placeOrder(t, env, "customer-1", map[string]int{"p-1": 1})
	second := placeOrder(t, env, "customer-1", map[string]int{"p-1": 2})
	placeOrder(t, env, "customer-2", map[string]int{"p-1": 3})

	tests := []struct {
		name   string
		filter domain.OrderFilter
		want   []string
	}{
		{
			name:   "owner only",
			filter: domain.OrderFilter{OwnerID: "customer-1"},
			want:   []string{first.ID, second.ID},
		},
		{
			name:   "newest first",
			filter: domain.OrderFilter{OwnerID: "customer-1", Sort: domain.SortPlacedAtDesc},
			want:   []string{second.ID, first.ID},
		},
		{
			name:   "placed after the first",
			filter: domain.OrderFilter{OwnerID: "customer-1", PlacedAfter: first.PlacedAt},
			want:   []string{second.ID},
		},
		{
			name:   "deadline before the second",
			filter: domain.OrderFilter{OwnerID: "customer-1", DeadlineBefore: second.PaymentDeadline},
			want:   []string{first.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := env.orders.ListOrders(ctx, tt.filter)
			require.NoError(t, err)

			got := make([]string, 0, len(orders))
			for _, o := range orders {
				got = append(got, o.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
