package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/models"
)

// PlaceOrderTx commits a checkout as a single transaction: one conditional
// stock decrement per line, the order row, its items, and the cart wipe.
// Any failure rolls everything back.
//
// The decrement is guarded (`stock >= quantity`), so a checkout racing
// another one on the same product fails here with StockConflictError rather
// than driving stock negative, even though the caller already validated
// against an earlier read.
func (s *Store) PlaceOrderTx(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range items {
		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1",
			items[i].Quantity, items[i].ProductID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}

		rows, _ := res.RowsAffected()
		if rows == 0 {
			conflict := &StockConflictError{
				ProductID: items[i].ProductID,
				Requested: items[i].Quantity,
			}
			// Re-read inside the same tx so the reported availability is
			// the value the decrement actually saw.
			err = tx.QueryRowContext(ctx,
				"SELECT name, stock FROM products WHERE id = $1",
				items[i].ProductID).Scan(&conflict.Name, &conflict.Available)
			if err == sql.ErrNoRows {
				return fmt.Errorf("product not found: %d", items[i].ProductID)
			}
			if err != nil {
				return fmt.Errorf("failed to read stock: %w", err)
			}
			return conflict
		}
	}

	err = tx.GetContext(ctx, order, `
		INSERT INTO orders (user_id, total_price)
		VALUES ($1, $2)
		RETURNING id, created_at`,
		order.UserID, order.TotalPrice)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		err = tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			items[i].OrderID, items[i].ProductID, items[i].Quantity, items[i].UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1", order.UserID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	return tx.Commit()
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}
