package domain

import "github.com/shopspring/decimal"

// Product is the catalog view the order pipeline needs.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Inventory Inventory
}

// Customer is an opaque owner reference plus the address notifications go to.
type Customer struct {
	ID    string
	Email string
}

type Address struct {
	ID         string
	CustomerID string
	Line1      string
	Line2      string
	City       string
	Country    string
	ZipCode    string
}
