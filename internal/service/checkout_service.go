package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutStatus classifies the outcome of a checkout attempt.
type CheckoutStatus string

const (
	CheckoutCommitted         CheckoutStatus = "COMMITTED"
	CheckoutEmptyCart         CheckoutStatus = "EMPTY_CART"
	CheckoutItemUnavailable   CheckoutStatus = "ITEM_UNAVAILABLE"
	CheckoutInsufficientStock CheckoutStatus = "INSUFFICIENT_STOCK"
)

// CheckoutResult describes one checkout attempt. Every status other than
// CheckoutCommitted means no store was mutated.
type CheckoutResult struct {
	Status  CheckoutStatus `json:"status"`
	OrderID int64          `json:"order_id,omitempty"`
	Total   int64          `json:"total,omitempty"`

	// Set for ITEM_UNAVAILABLE and INSUFFICIENT_STOCK.
	ProductID   int64  `json:"product_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Available   int    `json:"available,omitempty"`
	Requested   int    `json:"requested,omitempty"`
}

// Message renders the user-facing wording for the result.
func (r *CheckoutResult) Message() string {
	switch r.Status {
	case CheckoutCommitted:
		return "Order placed successfully."
	case CheckoutEmptyCart:
		return "Your cart is empty."
	case CheckoutItemUnavailable:
		return fmt.Sprintf("Product %d is no longer available.", r.ProductID)
	case CheckoutInsufficientStock:
		return fmt.Sprintf("Product %s is out of stock or insufficient quantity (available=%d, requested=%d).",
			r.ProductName, r.Available, r.Requested)
	}
	return string(r.Status)
}

// CheckoutStore is the persistence surface the checkout engine needs.
// *store.Store satisfies it.
type CheckoutStore interface {
	ListCartItems(ctx context.Context, userID int64) ([]models.CartItem, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	PlaceOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
}

// ErrOrderNotFound covers both a missing order and an order that belongs
// to another user. Callers never learn which.
var ErrOrderNotFound = errors.New("order not found")

// OrderEventPublisher publishes domain events after a commit. May be nil
// when eventing is disabled.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// CheckoutService converts a user's cart into an order. It is the only
// multi-store write path: validation runs as a read-only pass, and all
// mutation happens inside one transaction in PlaceOrderTx.
type CheckoutService struct {
	store     CheckoutStore
	publisher OrderEventPublisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(store CheckoutStore, publisher OrderEventPublisher) *CheckoutService {
	return &CheckoutService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Checkout converts userID's cart into a committed order.
//
// Validation failures come back inside the result with a nil error; a
// non-nil error means the underlying storage was unavailable and nothing
// was committed. The caller must have already resolved userID through the
// authentication strategy; an unknown user here is a caller bug, not a
// user-facing outcome.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	cartItems, err := s.store.ListCartItems(ctx, userID)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cartItems) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("empty_cart").Inc()
		return &CheckoutResult{Status: CheckoutEmptyCart}, nil
	}

	// Batch-fetch every referenced product up front so the read pattern is
	// deterministic: one query, then a pure in-memory validation pass.
	productIDs := make([]int64, len(cartItems))
	for i, item := range cartItems {
		productIDs[i] = item.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}

	// Read-only validation pass. Failing here, on any line, leaves every
	// store untouched.
	for _, item := range cartItems {
		product, ok := productMap[item.ProductID]
		if !ok {
			util.CheckoutsFailedTotal.WithLabelValues("item_unavailable").Inc()
			return &CheckoutResult{
				Status:    CheckoutItemUnavailable,
				ProductID: item.ProductID,
			}, nil
		}
		if product.Stock < item.Quantity {
			util.CheckoutsFailedTotal.WithLabelValues("insufficient_stock").Inc()
			return &CheckoutResult{
				Status:      CheckoutInsufficientStock,
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   item.Quantity,
			}, nil
		}
	}

	var total int64
	orderItems := make([]models.OrderItem, 0, len(cartItems))
	for _, item := range cartItems {
		product := productMap[item.ProductID]
		total += product.Price * int64(item.Quantity)
		orderItems = append(orderItems, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	order := &models.Order{
		UserID:     userID,
		TotalPrice: total,
	}

	// Single atomic unit: stock decrements (re-checked under the guard),
	// order + items, cart wipe. A conflict means another checkout consumed
	// the stock after our validation read.
	if err := s.store.PlaceOrderTx(ctx, order, orderItems); err != nil {
		var conflict *store.StockConflictError
		if errors.As(err, &conflict) {
			util.CheckoutsFailedTotal.WithLabelValues("stock_conflict").Inc()
			s.logger.Info("Checkout lost stock race",
				zap.Int64("user_id", userID),
				zap.Int64("product_id", conflict.ProductID))
			return &CheckoutResult{
				Status:      CheckoutInsufficientStock,
				ProductID:   conflict.ProductID,
				ProductName: conflict.Name,
				Available:   conflict.Available,
				Requested:   conflict.Requested,
			}, nil
		}
		util.CheckoutsFailedTotal.WithLabelValues("storage_error").Inc()
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	util.CheckoutsCommittedTotal.Inc()
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int64("total_price", total))

	s.publishOrderPlaced(ctx, order, orderItems)

	return &CheckoutResult{
		Status:  CheckoutCommitted,
		OrderID: order.ID,
		Total:   total,
	}, nil
}

// publishOrderPlaced emits the post-commit event. Best effort: the order is
// already durable, so a publish failure is logged, not returned.
func (s *CheckoutService) publishOrderPlaced(ctx context.Context, order *models.Order, items []models.OrderItem) {
	if s.publisher == nil {
		return
	}

	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice,
		Items:      eventItems,
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// ListOrders retrieves a user's order history with items, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, userID int64) ([]models.Order, map[int64][]models.OrderItem, error) {
	orders, err := s.store.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	itemsByOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, order := range orders {
		items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
		if err != nil {
			return nil, nil, err
		}
		itemsByOrder[order.ID] = items
	}

	return orders, itemsByOrder, nil
}

// GetOrder retrieves one of the user's orders with its items.
func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}
	if order.UserID != userID {
		return nil, nil, ErrOrderNotFound
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}
