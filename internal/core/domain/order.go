package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusAccepted OrderStatus = "accepted"
)

var ErrOrderNotPending = errors.New("order is not pending")

type Order struct {
	ID              string
	OwnerID         string
	AddressID       string
	Status          OrderStatus
	PlacedAt        time.Time
	PaymentDeadline time.Time
	UpdatedAt       time.Time
	Items           []OrderItem
}

// OrderItem is a snapshot of a cart line taken at checkout. Later stock or
// price changes do not affect it.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// NewOrder starts a pending order with the given line snapshots.
func NewOrder(ownerID, addressID string, items []OrderItem) *Order {
	o := &Order{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		AddressID: addressID,
		Status:    OrderStatusPending,
	}
	for _, it := range items {
		it.OrderID = o.ID
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		o.Items = append(o.Items, it)
	}
	return o
}

// Accept moves a pending order to accepted and stamps the payment window.
func (o *Order) Accept(now time.Time, paymentWindow time.Duration) error {
	if o.Status != OrderStatusPending {
		return ErrOrderNotPending
	}

	o.Status = OrderStatusAccepted
	o.PlacedAt = now
	o.PaymentDeadline = now.Add(paymentWindow)
	o.UpdatedAt = now
	return nil
}

func (o *Order) Accepted() bool {
	return o.Status == OrderStatusAccepted
}

func (o *Order) OwnedBy(customerID string) bool {
	return o.OwnerID == customerID
}

// CheckMutable rejects changes to an accepted order.
func (o *Order) CheckMutable() error {
	if o.Accepted() {
		return &OrderLockedError{OrderID: o.ID}
	}
	return nil
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (o *Order) SortedItems() []OrderItem {
	items := make([]OrderItem, len(o.Items))
	copy(items, o.Items)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})
	return items
}

// OrderConfirmation is the payload handed to the notification pipeline.
type OrderConfirmation struct {
	OrderID   string
	Recipient string
	Total     decimal.Decimal
	PlacedAt  time.Time
}

// OrderFilter narrows order listings. Zero values mean no bound.
type OrderFilter struct {
	OwnerID        string
	PlacedAfter    time.Time
	PlacedBefore   time.Time
	DeadlineAfter  time.Time
	DeadlineBefore time.Time
	Sort           OrderSort
}

type OrderSort string

const (
	SortPlacedAtAsc         OrderSort = "placed_at"
	SortPlacedAtDesc        OrderSort = "-placed_at"
	SortPaymentDeadlineAsc  OrderSort = "payment_deadline"
	SortPaymentDeadlineDesc OrderSort = "-payment_deadline"
)

func (s OrderSort) Valid() bool {
	switch s {
	case "", SortPlacedAtAsc, SortPlacedAtDesc, SortPaymentDeadlineAsc, SortPaymentDeadlineDesc:
		return true
	}
	return false
}

// Match reports whether o passes every bound set in f.
func (f OrderFilter) Match(o *Order) bool {
	if f.OwnerID != "" && o.OwnerID != f.OwnerID {
		return false
	}
	if !f.PlacedAfter.IsZero() && !o.PlacedAt.After(f.PlacedAfter) {
		return false
	}
	if !f.PlacedBefore.IsZero() && !o.PlacedAt.Before(f.PlacedBefore) {
		return false
	}
	if !f.DeadlineAfter.IsZero() && !o.PaymentDeadline.After(f.DeadlineAfter) {
		return false
	}
	if !f.DeadlineBefore.IsZero() && !o.PaymentDeadline.Before(f.DeadlineBefore) {
		return false
	}
	return true
}

// SortOrders orders in place per s; ties and the default fall back to
// placed_at ascending, then ID.
func SortOrders(orders []*Order, s OrderSort) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		switch s {
		case SortPlacedAtDesc:
			if !a.PlacedAt.Equal(b.PlacedAt) {
				return a.PlacedAt.After(b.PlacedAt)
			}
		case SortPaymentDeadlineAsc:
			if !a.PaymentDeadline.Equal(b.PaymentDeadline) {
				return a.PaymentDeadline.Before(b.PaymentDeadline)
			}
		case SortPaymentDeadlineDesc:
			if !a.PaymentDeadline.Equal(b.PaymentDeadline) {
				return a.PaymentDeadline.After(b.PaymentDeadline)
			}
		}
		if !a.PlacedAt.Equal(b.PlacedAt) {
			return a.PlacedAt.Before(b.PlacedAt)
		}
		return a.ID < b.ID
	})
}
