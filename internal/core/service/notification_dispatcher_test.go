package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
)

func TestNotificationDispatcher_DeliversEverything(t *testing.T) {
	notifier := &mockNotifier{}
	d := NewNotificationDispatcher(notifier, zap.NewNop(), 50)
	d.Start(4)

	for i := 0; i < 50; i++ {
		assert.True(t, d.Enqueue(domain.OrderConfirmation{OrderID: fmt.Sprintf("order-%d", i)}))
	}
	d.Close()

	assert.Len(t, notifier.Sent(), 50)
}

func TestNotificationDispatcher_FullQueueDrops(t *testing.T) {
	notifier := &mockNotifier{}
	d := NewNotificationDispatcher(notifier, zap.NewNop(), 1)

	// no workers yet, so the second confirmation has nowhere to go
	assert.True(t, d.Enqueue(domain.OrderConfirmation{OrderID: "order-1"}))
	assert.False(t, d.Enqueue(domain.OrderConfirmation{OrderID: "order-2"}))

	d.Start(1)
	d.Close()
	assert.Len(t, notifier.Sent(), 1)
}

func TestNotificationDispatcher_ClosedRejects(t *testing.T) {
	d := NewNotificationDispatcher(&mockNotifier{}, zap.NewNop(), 10)
	d.Start(1)
	d.Close()
	d.Close()

	assert.False(t, d.Enqueue(domain.OrderConfirmation{OrderID: "late"}))
}

type blockingNotifier struct {
	release chan struct{}
}

func (b *blockingNotifier) SendOrderConfirmation(ctx context.Context, c domain.OrderConfirmation) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestNotificationDispatcher_SlowNotifierDoesNotBlockEnqueue(t *testing.T) {
	notifier := &blockingNotifier{release: make(chan struct{})}
	d := NewNotificationDispatcher(notifier, zap.NewNop(), 2)
	d.Start(1)

	accepted := 0
	for i := 0; i < 10; i++ {
		if d.Enqueue(domain.OrderConfirmation{OrderID: fmt.Sprintf("order-%d", i)}) {
			accepted++
		}
	}
	assert.LessOrEqual(t, accepted, 3)

	close(notifier.release)
	d.Close()
}
