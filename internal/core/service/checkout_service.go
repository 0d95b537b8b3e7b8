package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	DefaultPaymentWindow = 72 * time.Hour
	DefaultMaxAttempts   = 3
)

type CheckoutConfig struct {
	PaymentWindow time.Duration
	MaxAttempts   int
}

type CreateOrderInput struct {
	CartID         string
	CustomerID     string
	AddressID      string
	IdempotencyKey string
}

// CheckoutService turns a cart into an accepted order. Stock reservation,
// order creation and cart removal commit together or not at all.
type CheckoutService struct {
	uow           port.UnitOfWork
	cache         port.CacheRepository
	notifications port.NotificationQueue
	logger        *zap.Logger
	cfg           CheckoutConfig
	now           func() time.Time
}

func NewCheckoutService(
	uow port.UnitOfWork,
	cache port.CacheRepository,
	notifications port.NotificationQueue,
	logger *zap.Logger,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.PaymentWindow <= 0 {
		cfg.PaymentWindow = DefaultPaymentWindow
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &CheckoutService{
		uow:           uow,
		cache:         cache,
		notifications: notifications,
		logger:        logger,
		cfg:           cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *CheckoutService) CreateOrder(ctx context.Context, in CreateOrderInput) (order *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "checkout.create_order")
	span.SetAttributes(attribute.String("cart.id", in.CartID))
	defer func() { endSpan(span, err) }()

	if in.IdempotencyKey != "" {
		key := fmt.Sprintf("checkout:%s:%s", in.CustomerID, in.IdempotencyKey)
		ok, setErr := s.cache.SetIdempotency(ctx, key)
		if setErr != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", setErr)
		}
		if !ok {
			return nil, domain.ErrDuplicateRequest
		}
		defer func() {
			if err == nil {
				return
			}
			if relErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), key); relErr != nil {
				s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}()
	}

	var recipient string
	for attempt := 1; ; attempt++ {
		order, recipient, err = s.createOrder(ctx, in)
		if err == nil || !errors.Is(err, port.ErrOptimisticLock) || attempt >= s.cfg.MaxAttempts {
			break
		}
		s.logger.Info("checkout conflict, retrying",
			zap.String("cart_id", in.CartID), zap.Int("attempt", attempt), zap.Error(err))
	}
	if err != nil {
		s.logger.Info("checkout rejected", zap.String("cart_id", in.CartID), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("cart_id", in.CartID),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total().StringFixed(2)),
	)

	confirmation := domain.OrderConfirmation{
		OrderID:   order.ID,
		Recipient: recipient,
		Total:     order.Total(),
		PlacedAt:  order.PlacedAt,
	}
	if !s.notifications.Enqueue(confirmation) {
		s.logger.Warn("order confirmation dropped", zap.String("order_id", order.ID))
	}

	return order, nil
}

// createOrder is a single checkout attempt inside one transaction.
func (s *CheckoutService) createOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, string, error) {
	var (
		order     *domain.Order
		recipient string
	)
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		cart, err := ownedCart(ctx, tx, in.CartID, in.CustomerID)
		if err != nil {
			return err
		}

		address, err := tx.GetAddress(ctx, in.AddressID)
		if err != nil {
			return err
		}

		customer, err := tx.GetCustomer(ctx, cart.OwnerID)
		if err != nil {
			return err
		}
		recipient = customer.Email

		if len(cart.Items) == 0 {
			return domain.ErrEmptyCart
		}

		// Rows are locked in product order so concurrent checkouts cannot deadlock.
		lines := make([]domain.OrderItem, 0, len(cart.Items))
		for _, it := range cart.SortedItems() {
			inv, err := tx.LockInventory(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if err := inv.Reserve(it.Quantity); err != nil {
				return err
			}
			if err := tx.SaveInventory(ctx, inv); err != nil {
				return err
			}

			product, err := tx.GetProduct(ctx, it.ProductID)
			if err != nil {
				return err
			}
			lines = append(lines, domain.OrderItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: product.UnitPrice,
			})
		}

		order = domain.NewOrder(cart.OwnerID, address.ID, lines)
		if err := order.Accept(s.now(), s.cfg.PaymentWindow); err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		return tx.DeleteCart(ctx, cart.ID)
	})
	if err != nil {
		return nil, "", err
	}
	return order, recipient, nil
}
