package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type UpdateOrderInput struct {
	OrderID    string
	CustomerID string
	AddressID  string
}

// OrderService guards placed orders. Accepted orders cannot be changed or
// deleted; deleting a pending order puts its stock back.
type OrderService struct {
	uow    port.UnitOfWork
	logger *zap.Logger
}

func NewOrderService(uow port.UnitOfWork, logger *zap.Logger) *OrderService {
	return &OrderService{uow: uow, logger: logger}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	var order *domain.Order
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		var err error
		order, err = ownedOrder(ctx, tx, orderID, customerID)
		return err
	})
	return order, err
}

func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		var err error
		orders, err = tx.ListOrders(ctx, filter)
		return err
	})
	return orders, err
}

func (s *OrderService) UpdateOrder(ctx context.Context, in UpdateOrderInput) (*domain.Order, error) {
	var order *domain.Order
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		var err error
		order, err = ownedOrder(ctx, tx, in.OrderID, in.CustomerID)
		if err != nil {
			return err
		}
		if err := order.CheckMutable(); err != nil {
			return err
		}

		address, err := tx.GetAddress(ctx, in.AddressID)
		if err != nil {
			return err
		}
		order.AddressID = address.ID
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// DestroyOrder deletes a pending order and releases every line back to the
// ledger.
func (s *OrderService) DestroyOrder(ctx context.Context, orderID, customerID string) (err error) {
	ctx, span := tracer.Start(ctx, "order.destroy")
	span.SetAttributes(attribute.String("order.id", orderID))
	defer func() { endSpan(span, err) }()

	err = withTx(ctx, s.uow, func(tx port.Tx) error {
		order, err := ownedOrder(ctx, tx, orderID, customerID)
		if err != nil {
			return err
		}
		if err := order.CheckMutable(); err != nil {
			return err
		}

		for _, it := range order.SortedItems() {
			inv, err := tx.LockInventory(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if err := inv.Release(it.Quantity); err != nil {
				return err
			}
			if err := tx.SaveInventory(ctx, inv); err != nil {
				return err
			}
		}

		return tx.DeleteOrder(ctx, order.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("order deleted", zap.String("order_id", orderID))
	return nil
}

func ownedOrder(ctx context.Context, tx port.Tx, orderID, customerID string) (*domain.Order, error) {
	order, err := tx.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(customerID) {
		return nil, domain.ErrPermissionDenied
	}
	return order, nil
}
