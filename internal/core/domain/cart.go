package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        string
	OwnerID   string
	Items     []CartItem
	CreatedAt time.Time
}

// CartItem holds a soft hold on stock: it constrains later cart changes but
// does not touch the ledger until checkout.
type CartItem struct {
	ID        string
	CartID    string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func NewCart(ownerID string, now time.Time) *Cart {
	return &Cart{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		CreatedAt: now,
	}
}

func (c *Cart) OwnedBy(customerID string) bool {
	return c.OwnerID == customerID
}

// Item returns the line for productID, or nil.
func (c *Cart) Item(productID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i]
		}
	}
	return nil
}

// AddOrMerge adds qty of p to the cart. A product already in the cart is
// merged into its existing line, so a cart never has two lines for the
// same product.
func (c *Cart) AddOrMerge(p Product, qty int) (CartItem, error) {
	if qty <= 0 {
		return CartItem{}, ErrInvalidQuantity
	}

	if existing := c.Item(p.ID); existing != nil {
		maxQty := p.Inventory.MaxAddable(existing.Quantity)
		if qty > maxQty {
			return CartItem{}, &MaxQuantityExceededError{ProductID: p.ID, Max: maxQty, Requested: qty}
		}
		existing.Quantity += qty
		existing.UnitPrice = p.UnitPrice
		return *existing, nil
	}

	maxQty := p.Inventory.MaxAddable(0)
	if qty > maxQty {
		return CartItem{}, &MaxQuantityExceededError{ProductID: p.ID, Max: maxQty, Requested: qty}
	}

	item := CartItem{
		ID:        uuid.NewString(),
		CartID:    c.ID,
		ProductID: p.ID,
		Quantity:  qty,
		UnitPrice: p.UnitPrice,
	}
	c.Items = append(c.Items, item)
	return item, nil
}

// SetQuantity overwrites the line quantity. The new value has to fit in what
// is left of the stock once this line's current hold is taken out.
func (it *CartItem) SetQuantity(qty int, inv Inventory) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	maxQty := inv.MaxAddable(it.Quantity)
	if qty > maxQty {
		return &MaxQuantityExceededError{ProductID: it.ProductID, Max: maxQty, Requested: qty}
	}

	it.Quantity = qty
	return nil
}

func (it CartItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// SortedItems returns a copy of the lines ordered by product ID.
func (c *Cart) SortedItems() []CartItem {
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})
	return items
}
