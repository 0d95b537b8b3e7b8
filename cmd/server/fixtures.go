package main

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
)

// loadFixtures seeds a small catalog and one customer for local runs.
func loadFixtures(ctx context.Context, db *storage.MySQLAdapter) error {
	products := []domain.Product{
		{ID: "water", Name: "Still water 1.5l", UnitPrice: decimal.RequireFromString("1.99"), Inventory: domain.Inventory{Available: 100}},
		{ID: "bread", Name: "Sourdough loaf", UnitPrice: decimal.RequireFromString("3.50"), Inventory: domain.Inventory{Available: 20}},
		{ID: "coffee", Name: "Coffee beans 1kg", UnitPrice: decimal.RequireFromString("24.90"), Inventory: domain.Inventory{Available: 10}},
	}
	for _, p := range products {
		if err := db.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}

	if err := db.UpsertCustomer(ctx, domain.Customer{ID: "demo", Email: "demo@storefront.local"}); err != nil {
		return err
	}
	return db.UpsertAddress(ctx, domain.Address{
		ID:         "demo-home",
		CustomerID: "demo",
		Line1:      "1 Market Street",
		City:       "Warsaw",
		Country:    "PL",
		ZipCode:    "00-001",
	})
}
