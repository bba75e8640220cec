package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart belongs to a registered user (UserID set) or to an anonymous
// session (UserID nil). TotalPrice is a denormalized cache refreshed
// after every mutation; line items remain the source of truth.
type Cart struct {
	ID         uuid.UUID       `json:"id"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CartItem is unique per (cart, product); repeated adds increment Quantity.
type CartItem struct {
	ID        int64     `json:"id"`
	CartID    uuid.UUID `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int64     `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
}

// LineTotal is product price × quantity, resolved against the current
// product price. Returns zero when the product is not loaded.
func (i *CartItem) LineTotal() decimal.Decimal {
	if i.Product == nil {
		return decimal.Zero
	}

	return i.Product.Price.Mul(decimal.NewFromInt(i.Quantity))
}

type AddItemRequest struct {
	ProductID int64  `json:"product_id" validate:"required"`
	Quantity  *int64 `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int64 `json:"quantity" validate:"required"`
}

type CartItemView struct {
	ID        int64           `json:"id"`
	Product   *Product        `json:"product"`
	Quantity  int64           `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type CartView struct {
	ID         uuid.UUID       `json:"id"`
	Items      []CartItemView  `json:"items"`
	ItemCount  int64           `json:"item_count"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}
