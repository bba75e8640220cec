package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order is a detached snapshot of a cart at checkout time. Products is a
// flattened human-readable summary and TotalPrice is frozen at creation;
// nothing in the storefront flow mutates an order afterwards.
type Order struct {
	ID              int64           `json:"id"`
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	Products        string          `json:"products"`
	OrderDate       time.Time       `json:"order_date"`
	Status          OrderStatus     `json:"status"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	ShippingAddress string          `json:"shipping_address"`
	PhoneNumber     string          `json:"phone_number"`
	Message         string          `json:"message,omitempty"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,max=255"`
	PhoneNumber     string `json:"phone_number" validate:"required,max=20"`
	Message         string `json:"message" validate:"omitempty,max=1024"`
}

type CheckoutResponse struct {
	OrderID int64 `json:"order_id"`
}

type PaginatedResponse struct {
	Data     any `json:"data"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}
