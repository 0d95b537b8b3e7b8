package domain

import "time"

// Inventory is the stock ledger entry of a single product.
type Inventory struct {
	ProductID string
	Available int
	Sold      int
	Version   int // optimistic locking
	UpdatedAt time.Time
}

// Reserve takes qty units out of the available stock. Nothing changes when
// the stock cannot cover the full quantity.
func (i *Inventory) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > i.Available {
		return &InsufficientStockError{
			ProductID: i.ProductID,
			Available: i.Available,
			Requested: qty,
		}
	}

	i.Available -= qty
	i.Sold += qty
	return nil
}

// Release puts qty units back on the shelf. Sold history is kept.
func (i *Inventory) Release(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	i.Available += qty
	return nil
}

// MaxAddable is how many more units fit next to the held quantity.
func (i Inventory) MaxAddable(held int) int {
	return i.Available - held
}
