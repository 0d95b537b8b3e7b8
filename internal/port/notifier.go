package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Notifier delivers an order confirmation to the customer.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, confirmation domain.OrderConfirmation) error
}

// NotificationQueue accepts confirmations for asynchronous delivery. Enqueue
// never blocks; it reports false when the confirmation was dropped.
type NotificationQueue interface {
	Enqueue(confirmation domain.OrderConfirmation) bool
}
