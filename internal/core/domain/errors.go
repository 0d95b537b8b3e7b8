package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrEmptyCart        = errors.New("cart has no items")
	ErrDuplicateRequest = errors.New("duplicate request")
)

// InsufficientStockError is returned when a reservation asks for more than
// the ledger holds.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// MaxQuantityExceededError is the cart-side variant of InsufficientStockError.
type MaxQuantityExceededError struct {
	ProductID string
	Max       int
	Requested int
}

func (e *MaxQuantityExceededError) Error() string {
	return fmt.Sprintf("requested quantity %d exceeds the most you can add to your cart (%d); "+
		"change the quantity and check that the product is not out of stock", e.Requested, e.Max)
}

// NotFoundError names the missing entity. errors.Is(err, ErrNotFound) holds.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// OrderLockedError rejects any mutation of an accepted order.
type OrderLockedError struct {
	OrderID string
}

func (e *OrderLockedError) Error() string {
	return fmt.Sprintf("order %s has already been accepted and can no longer be changed", e.OrderID)
}
