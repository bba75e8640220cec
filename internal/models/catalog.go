package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID          int64           `json:"id"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Weight      *int64          `json:"weight,omitempty"` // grams
	Price       decimal.Decimal `json:"price"`
	ImageURL    *string         `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Category    *Category       `json:"category,omitempty"`
}

type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
	Slug string `json:"slug" validate:"omitempty,min=2,max=100"`
}

type UpdateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

type CreateProductRequest struct {
	CategoryID  *int64          `json:"category_id"`
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description"`
	Weight      *int64          `json:"weight" validate:"omitempty,gt=0"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	ImageURL    *string         `json:"image_url" validate:"omitempty,url"`
}

type UpdateProductRequest struct {
	CategoryID  *int64           `json:"category_id,omitempty"`
	Name        *string          `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Description *string          `json:"description,omitempty"`
	Weight      *int64           `json:"weight,omitempty" validate:"omitempty,gt=0"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty" validate:"omitempty,url"`
}
