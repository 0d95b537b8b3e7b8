package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

type AddItemInput struct {
	CartID     string
	CustomerID string
	ProductID  string
	Quantity   int
}

type UpdateItemInput struct {
	CartID     string
	ItemID     string
	CustomerID string
	Quantity   int
}

// CartService manages carts before checkout. Quantities are validated
// against a stock snapshot only; nothing is reserved until checkout.
type CartService struct {
	uow    port.UnitOfWork
	logger *zap.Logger
	now    func() time.Time
}

func NewCartService(uow port.UnitOfWork, logger *zap.Logger) *CartService {
	return &CartService{
		uow:    uow,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *CartService) CreateCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		if _, err := tx.GetCustomer(ctx, customerID); err != nil {
			return err
		}
		cart = domain.NewCart(customerID, s.now())
		return tx.CreateCart(ctx, cart)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart created", zap.String("cart_id", cart.ID), zap.String("customer_id", customerID))
	return cart, nil
}

func (s *CartService) GetCart(ctx context.Context, cartID, customerID string) (*domain.Cart, error) {
	var cart *domain.Cart
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		var err error
		cart, err = ownedCart(ctx, tx, cartID, customerID)
		return err
	})
	return cart, err
}

func (s *CartService) ListCarts(ctx context.Context, customerID string) ([]*domain.Cart, error) {
	var carts []*domain.Cart
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		var err error
		carts, err = tx.ListCarts(ctx, customerID)
		return err
	})
	return carts, err
}

func (s *CartService) DeleteCart(ctx context.Context, cartID, customerID string) error {
	return withTx(ctx, s.uow, func(tx port.Tx) error {
		if _, err := ownedCart(ctx, tx, cartID, customerID); err != nil {
			return err
		}
		return tx.DeleteCart(ctx, cartID)
	})
}

func (s *CartService) ListItems(ctx context.Context, cartID, customerID string) ([]domain.CartItem, error) {
	cart, err := s.GetCart(ctx, cartID, customerID)
	if err != nil {
		return nil, err
	}
	return cart.Items, nil
}

func (s *CartService) GetItem(ctx context.Context, cartID, itemID, customerID string) (*domain.CartItem, error) {
	cart, err := s.GetCart(ctx, cartID, customerID)
	if err != nil {
		return nil, err
	}
	return findItem(cart, itemID)
}

// AddItem puts quantity of a product in the cart, merging into the existing
// line when the product is already there.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) (item *domain.CartItem, err error) {
	ctx, span := tracer.Start(ctx, "cart.add_item")
	span.SetAttributes(
		attribute.String("cart.id", in.CartID),
		attribute.String("product.id", in.ProductID),
		attribute.Int("cart.quantity", in.Quantity),
	)
	defer func() { endSpan(span, err) }()

	err = withTx(ctx, s.uow, func(tx port.Tx) error {
		cart, err := ownedCart(ctx, tx, in.CartID, in.CustomerID)
		if err != nil {
			return err
		}

		product, err := tx.GetProduct(ctx, in.ProductID)
		if err != nil {
			return err
		}

		added, err := cart.AddOrMerge(*product, in.Quantity)
		if err != nil {
			return err
		}
		if err := tx.SaveCartItem(ctx, &added); err != nil {
			return err
		}
		item = &added
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart item saved",
		zap.String("cart_id", in.CartID),
		zap.String("product_id", in.ProductID),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}

// UpdateItemQuantity overwrites a line's quantity after checking it against
// the stock left once the line's current hold is subtracted.
func (s *CartService) UpdateItemQuantity(ctx context.Context, in UpdateItemInput) (*domain.CartItem, error) {
	var item *domain.CartItem
	err := withTx(ctx, s.uow, func(tx port.Tx) error {
		cart, err := ownedCart(ctx, tx, in.CartID, in.CustomerID)
		if err != nil {
			return err
		}

		item, err = findItem(cart, in.ItemID)
		if err != nil {
			return err
		}

		product, err := tx.GetProduct(ctx, item.ProductID)
		if err != nil {
			return err
		}

		if err := item.SetQuantity(in.Quantity, product.Inventory); err != nil {
			return err
		}
		item.UnitPrice = product.UnitPrice
		return tx.SaveCartItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, cartID, itemID, customerID string) error {
	return withTx(ctx, s.uow, func(tx port.Tx) error {
		if _, err := ownedCart(ctx, tx, cartID, customerID); err != nil {
			return err
		}
		return tx.DeleteCartItem(ctx, cartID, itemID)
	})
}

func ownedCart(ctx context.Context, tx port.Tx, cartID, customerID string) (*domain.Cart, error) {
	cart, err := tx.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !cart.OwnedBy(customerID) {
		return nil, domain.ErrPermissionDenied
	}
	return cart, nil
}

func findItem(cart *domain.Cart, itemID string) (*domain.CartItem, error) {
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			item := cart.Items[i]
			return &item, nil
		}
	}
	return nil, domain.NewNotFound("cart item", itemID)
}
