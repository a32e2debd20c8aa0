package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// ErrProductNotFound indicates the referenced product does not exist.
var ErrProductNotFound = errors.New("product not found")

// ErrCartItemNotFound indicates the cart row does not exist or belongs to
// another user. The two cases are deliberately indistinguishable.
var ErrCartItemNotFound = errors.New("item not found in your cart")

// CartService manages a user's cart lines. All reads and writes are scoped
// to the owning user; a client-supplied principal is never trusted.
type CartService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store *store.Store) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddToCart puts quantity units of a product into the user's cart,
// incrementing the existing line when one exists.
func (s *CartService) AddToCart(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		quantity = 1
	}

	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	item, err := s.store.UpsertCartItem(ctx, userID, productID, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}

	util.CartItemsAddedTotal.Inc()
	s.logger.Debug("Cart item added",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", item.Quantity))
	return item, nil
}

// ViewCart returns the user's cart lines joined with product data, plus the
// running total at current prices.
func (s *CartService) ViewCart(ctx context.Context, userID int64) ([]models.CartLineView, int64, error) {
	lines, err := s.store.ListCartLines(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load cart: %w", err)
	}

	var total int64
	for _, line := range lines {
		total += line.UnitPrice * int64(line.Quantity)
	}
	return lines, total, nil
}

// RemoveFromCart deletes one cart row, only when it belongs to userID.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, itemID int64) error {
	err := s.store.DeleteCartItem(ctx, userID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrCartItemNotFound
	}
	return err
}
