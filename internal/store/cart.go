package store

import (
	"context"

	"storefront/internal/models"
)

// ListCartItems retrieves all cart rows for a user.
func (s *Store) ListCartItems(ctx context.Context, userID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE user_id = $1 ORDER BY id", userID)
	return items, err
}

// ListCartLines retrieves a user's cart joined with product name and price.
func (s *Store) ListCartLines(ctx context.Context, userID int64) ([]models.CartLineView, error) {
	query := `
		SELECT c.id, c.user_id, c.product_id, c.quantity,
		       p.name AS product_name, p.price AS unit_price
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.id`

	var lines []models.CartLineView
	err := s.db.SelectContext(ctx, &lines, query, userID)
	return lines, err
}

// UpsertCartItem adds a product to a user's cart, incrementing the quantity
// when a row for the (user, product) pair already exists.
func (s *Store) UpsertCartItem(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, quantity`

	var item models.CartItem
	if err := s.db.GetContext(ctx, &item, query, userID, productID, quantity); err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteCartItem removes one cart row, scoped to its owner.
func (s *Store) DeleteCartItem(ctx context.Context, userID, itemID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}
