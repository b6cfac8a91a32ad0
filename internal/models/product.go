package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a second-hand listing. Stock is nil when the seller does not
// track a quantity; a nil stock never constrains cart or checkout amounts.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Stock       *int      `json:"stock,omitempty"`
	SellerID    uuid.UUID `json:"seller_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateProductRequest struct {
	Title       string  `json:"title" validate:"required,min=1,max=200"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Price       float64 `json:"price" validate:"gte=0"`
	Image       string  `json:"image,omitempty"`
	Stock       *int    `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

// allow-list of mutable fields; the seller reference is never client-writable
type UpdateProductRequest struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Image       *string  `json:"image,omitempty"`
	Stock       *int     `json:"stock,omitempty" validate:"omitempty,gte=0"`
}

type ProductFilter struct {
	Keyword  string
	Category string
}
