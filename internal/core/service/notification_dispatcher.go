package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const sendTimeout = 5 * time.Second

var _ port.NotificationQueue = (*NotificationDispatcher)(nil)

// NotificationDispatcher delivers order confirmations off the request path.
// A failed or dropped delivery is logged and never reaches the caller.
type NotificationDispatcher struct {
	notifier port.Notifier
	logger   *zap.Logger
	queue    chan domain.OrderConfirmation

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotificationDispatcher(notifier port.Notifier, logger *zap.Logger, queueSize int) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan domain.OrderConfirmation, queueSize),
	}
}

func (d *NotificationDispatcher) Enqueue(c domain.OrderConfirmation) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}

	select {
	case d.queue <- c:
		return true
	default:
		return false
	}
}

// Start launches the worker pool.
func (d *NotificationDispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.logger.Info("notification workers started", zap.Int("workers", workers))
}

// Close stops accepting confirmations and waits until the queue is drained.
func (d *NotificationDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *NotificationDispatcher) workerLoop(id int) {
	for c := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)

		if err := d.notifier.SendOrderConfirmation(ctx, c); err != nil {
			d.logger.Error("order confirmation failed",
				zap.Int("worker", id),
				zap.String("order_id", c.OrderID),
				zap.Error(err),
			)
		} else {
			d.logger.Debug("order confirmation sent", zap.Int("worker", id), zap.String("order_id", c.OrderID))
		}

		cancel()
	}
}
