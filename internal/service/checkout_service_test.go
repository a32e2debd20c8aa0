package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCheckoutStore is an in-memory CheckoutStore. PlaceOrderTx holds the
// mutex for the whole commit, mirroring the serialized conditional update of
// the real transaction.
type fakeCheckoutStore struct {
	mu         sync.Mutex
	products   map[int64]models.Product
	carts      map[int64][]models.CartItem
	orders     []models.Order
	orderItems map[int64][]models.OrderItem

	nextOrderID int64
	placeErr    error
	// afterProductRead runs after the validation fetch, before the commit.
	// Tests use it to race a stock change into the gap.
	afterProductRead func()
}

func newFakeCheckoutStore() *fakeCheckoutStore {
	return &fakeCheckoutStore{
		products:   make(map[int64]models.Product),
		carts:      make(map[int64][]models.CartItem),
		orderItems: make(map[int64][]models.OrderItem),
	}
}

func (f *fakeCheckoutStore) ListCartItems(_ context.Context, userID int64) ([]models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CartItem(nil), f.carts[userID]...), nil
}

func (f *fakeCheckoutStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	var products []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			products = append(products, p)
		}
	}
	f.mu.Unlock()

	if f.afterProductRead != nil {
		f.afterProductRead()
	}
	return products, nil
}

func (f *fakeCheckoutStore) PlaceOrderTx(_ context.Context, order *models.Order, items []models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.placeErr != nil {
		return f.placeErr
	}

	// Guard pass first so a conflict mutates nothing.
	for _, item := range items {
		p, ok := f.products[item.ProductID]
		if !ok {
			return errors.New("product not found")
		}
		if p.Stock < item.Quantity {
			return &store.StockConflictError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: p.Stock,
				Requested: item.Quantity,
			}
		}
	}

	for i := range items {
		p := f.products[items[i].ProductID]
		p.Stock -= items[i].Quantity
		f.products[p.ID] = p
	}

	f.nextOrderID++
	order.ID = f.nextOrderID
	f.orders = append(f.orders, *order)

	for i := range items {
		items[i].OrderID = order.ID
	}
	f.orderItems[order.ID] = append([]models.OrderItem(nil), items...)

	delete(f.carts, order.UserID)
	return nil
}

func (f *fakeCheckoutStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id {
			order := o
			return &order, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeCheckoutStore) GetOrdersByUserID(_ context.Context, userID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

func (f *fakeCheckoutStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderItem(nil), f.orderItems[orderID]...), nil
}

func (f *fakeCheckoutStore) stockOf(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeCheckoutStore) cartOf(userID int64) []models.CartItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CartItem(nil), f.carts[userID]...)
}

func (f *fakeCheckoutStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*models.OrderPlacedEvent
}

func (p *fakePublisher) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func TestCheckout_EmptyCart(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 5}
	svc := NewCheckoutService(fake, nil)

	result, err := svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, CheckoutEmptyCart, result.Status)

	assert.Equal(t, 5, fake.stockOf(1))
	assert.Zero(t, fake.orderCount())
}

func TestCheckout_ItemUnavailable(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 5}
	fake.carts[42] = []models.CartItem{
		{ID: 1, UserID: 42, ProductID: 1, Quantity: 1},
		{ID: 2, UserID: 42, ProductID: 99, Quantity: 1}, // deleted from catalog
	}
	svc := NewCheckoutService(fake, nil)

	result, err := svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, CheckoutItemUnavailable, result.Status)
	assert.Equal(t, int64(99), result.ProductID)

	assert.Equal(t, 5, fake.stockOf(1))
	assert.Len(t, fake.cartOf(42), 2)
	assert.Zero(t, fake.orderCount())
}

func TestCheckout_InsufficientStock(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 5}
	fake.products[2] = models.Product{ID: 2, Name: "ItemB", Price: 500, Stock: 0}
	fake.carts[42] = []models.CartItem{
		{ID: 1, UserID: 42, ProductID: 1, Quantity: 2},
		{ID: 2, UserID: 42, ProductID: 2, Quantity: 1},
	}
	svc := NewCheckoutService(fake, nil)

	result, err := svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, CheckoutInsufficientStock, result.Status)
	assert.Equal(t, "ItemB", result.ProductName)
	assert.Equal(t, 0, result.Available)
	assert.Equal(t, 1, result.Requested)

	// Failure on the second line must not have touched the first.
	assert.Equal(t, 5, fake.stockOf(1))
	assert.Equal(t, 0, fake.stockOf(2))
	assert.Len(t, fake.cartOf(42), 2)
	assert.Zero(t, fake.orderCount())
}

func TestCheckout_Committed(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 5}
	fake.carts[42] = []models.CartItem{
		{ID: 1, UserID: 42, ProductID: 1, Quantity: 2},
	}
	publisher := &fakePublisher{}
	svc := NewCheckoutService(fake, publisher)

	result, err := svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, CheckoutCommitted, result.Status)
	assert.Equal(t, int64(2000), result.Total)
	assert.NotZero(t, result.OrderID)

	assert.Equal(t, 3, fake.stockOf(1))
	assert.Empty(t, fake.cartOf(42))

	orders, itemsByOrder, err := svc.ListOrders(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(2000), orders[0].TotalPrice)

	items := itemsByOrder[orders[0].ID]
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, int64(1000), items[0].UnitPrice)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, result.OrderID, publisher.events[0].OrderID)
	assert.Equal(t, int64(2000), publisher.events[0].TotalPrice)
}

func TestGetOrder(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 5}
	fake.carts[42] = []models.CartItem{
		{ID: 1, UserID: 42, ProductID: 1, Quantity: 2},
	}
	svc := NewCheckoutService(fake, nil)

	result, err := svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, CheckoutCommitted, result.Status)

	order, items, err := svc.GetOrder(context.Background(), 42, result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), order.TotalPrice)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1000), items[0].UnitPrice)

	// Another user's order and a missing order look the same.
	_, _, err = svc.GetOrder(context.Background(), 7, result.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, _, err = svc.GetOrder(context.Background(), 42, 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCheckout_MultiLineTotal(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 5}
	fake.products[2] = models.Product{ID: 2, Name: "ItemB", Price: 500, Stock: 3}
	fake.carts[42] = []models.CartItem{
		{ID: 1, UserID: 42, ProductID: 1, Quantity: 2},
		{ID: 2, UserID: 42, ProductID: 2, Quantity: 3},
	}
	svc := NewCheckoutService(fake, nil)

	result, err := svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, CheckoutCommitted, result.Status)
	assert.Equal(t, int64(2*1000+3*500), result.Total)
	assert.Equal(t, 3, fake.stockOf(1))
	assert.Equal(t, 0, fake.stockOf(2))
}

func TestCheckout_StockRaceLostAtCommit(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 2}
	fake.carts[42] = []models.CartItem{
		{ID: 1, UserID: 42, ProductID: 1, Quantity: 2},
	}
	// Another checkout consumes the stock between our validation read and
	// the commit; the guarded decrement must catch it.
	fake.afterProductRead = func() {
		fake.mu.Lock()
		p := fake.products[1]
		p.Stock = 1
		fake.products[1] = p
		fake.mu.Unlock()
	}
	svc := NewCheckoutService(fake, nil)

	result, err := svc.Checkout(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, CheckoutInsufficientStock, result.Status)
	assert.Equal(t, 1, result.Available)
	assert.Equal(t, 2, result.Requested)

	assert.Equal(t, 1, fake.stockOf(1))
	assert.Len(t, fake.cartOf(42), 1)
	assert.Zero(t, fake.orderCount())
}

func TestCheckout_StorageError(t *testing.T) {
	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: 5}
	fake.carts[42] = []models.CartItem{
		{ID: 1, UserID: 42, ProductID: 1, Quantity: 1},
	}
	fake.placeErr = errors.New("connection reset")
	publisher := &fakePublisher{}
	svc := NewCheckoutService(fake, publisher)

	result, err := svc.Checkout(context.Background(), 42)
	require.Error(t, err)
	assert.Nil(t, result)

	assert.Equal(t, 5, fake.stockOf(1))
	assert.Len(t, fake.cartOf(42), 1)
	assert.Zero(t, fake.orderCount())
	assert.Empty(t, publisher.events)
}

func TestCheckout_ConcurrentNeverOversells(t *testing.T) {
	const (
		initialStock = 20
		buyers       = 50
	)

	fake := newFakeCheckoutStore()
	fake.products[1] = models.Product{ID: 1, Name: "ItemA", Price: 1000, Stock: initialStock}
	for i := 0; i < buyers; i++ {
		userID := int64(i + 1)
		fake.carts[userID] = []models.CartItem{
			{ID: userID, UserID: userID, ProductID: 1, Quantity: 1},
		}
	}
	svc := NewCheckoutService(fake, nil)

	var wg sync.WaitGroup
	results := make([]CheckoutStatus, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Checkout(context.Background(), int64(i+1))
			if assert.NoError(t, err) {
				results[i] = result.Status
			}
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, status := range results {
		if status == CheckoutCommitted {
			committed++
		}
	}

	assert.Equal(t, initialStock, committed)
	assert.Equal(t, 0, fake.stockOf(1))
	assert.Equal(t, initialStock, fake.orderCount())
}
