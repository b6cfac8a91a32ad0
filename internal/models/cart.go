package models

import (
	"time"

	"github.com/google/uuid"
)

// CartItem is a stored cart line. Quantity is always > 0 while the line
// exists; mutations that would drop it to zero or below remove the line.
type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type Cart struct {
	ID        uuid.UUID           `json:"id"`
	UserID    uuid.UUID           `json:"user_id"`
	Items     map[string]CartItem `json:"items"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// CartLine is a cart item joined with the current product record.
type CartLine struct {
	Product  *Product `json:"product"`
	Quantity int      `json:"quantity"`
	Subtotal float64  `json:"subtotal"`
}

type CartView struct {
	Products   []CartLine `json:"products"`
	TotalPrice float64    `json:"totalPrice"`
}

// Quantity is added to any existing line; zero means "unspecified" and
// defaults to 1. Negative values decrement and may remove the line.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity"`
}

// Quantity replaces the line's value; zero or below removes the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}
