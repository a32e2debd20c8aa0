package models

import "time"

// User represents a registered account. PasswordHash is a bcrypt hash and
// must only ever be checked through auth.Strategy, never compared directly.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Product represents a product in the catalog. Price is in minor currency
// units (cents). Stock is kept non-negative by the store layer.
type Product struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Price       int64  `db:"price" json:"price"`
	Stock       int    `db:"stock" json:"stock"`
}

// CartItem represents one line in a user's cart. There is at most one row
// per (user, product) pair; adding the same product again bumps Quantity.
type CartItem struct {
	ID        int64 `db:"id" json:"id"`
	UserID    int64 `db:"user_id" json:"user_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
}

// Order represents a committed checkout. Orders are immutable once created.
type Order struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	TotalPrice int64     `db:"total_price" json:"total_price"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OrderItem represents one line of an order. UnitPrice snapshots the product
// price at order time so later catalog edits do not rewrite history.
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// CartLineView is a cart item joined with its product, for display.
type CartLineView struct {
	CartItem
	ProductName string `db:"product_name" json:"product_name"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
}
