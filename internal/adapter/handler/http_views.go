package handler

import (
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Money is rendered as a fixed two-place string.

type cartItemView struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type cartView struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	Items     []cartItemView `json:"items"`
	Total     string         `json:"total"`
	CreatedAt time.Time      `json:"created_at"`
}

type orderItemView struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type orderView struct {
	ID              string          `json:"id"`
	Owner           string          `json:"owner"`
	AddressID       string          `json:"address_id,omitempty"`
	Status          string          `json:"status"`
	Accepted        bool            `json:"accepted"`
	PlacedAt        *time.Time      `json:"placed_at,omitempty"`
	PaymentDeadline *time.Time      `json:"payment_deadline,omitempty"`
	Items           []orderItemView `json:"items"`
	Total           string          `json:"total"`
}

func newCartItemView(it domain.CartItem) cartItemView {
	return cartItemView{
		ID:        it.ID,
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice.StringFixed(2),
		LineTotal: it.LineTotal().StringFixed(2),
	}
}

func newCartView(cart *domain.Cart) cartView {
	items := make([]cartItemView, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, newCartItemView(it))
	}
	return cartView{
		ID:        cart.ID,
		Owner:     cart.OwnerID,
		Items:     items,
		Total:     cart.Total().StringFixed(2),
		CreatedAt: cart.CreatedAt,
	}
}

func newOrderView(o *domain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemView{
			ID:        it.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal().StringFixed(2),
		})
	}
	return orderView{
		ID:              o.ID,
		Owner:           o.OwnerID,
		AddressID:       o.AddressID,
		Status:          string(o.Status),
		Accepted:        o.Accepted(),
		PlacedAt:        optionalTime(o.PlacedAt),
		PaymentDeadline: optionalTime(o.PaymentDeadline),
		Items:           items,
		Total:           o.Total().StringFixed(2),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
