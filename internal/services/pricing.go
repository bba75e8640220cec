package service

import (
	"fmt"

	"github.com/bbqhouse/storefront/internal/models"
	"github.com/shopspring/decimal"
)

// ComputeTotal sums product price × quantity over the given line items.
// Prices come from the loaded products, so the total always reflects the
// current catalog price; nothing is snapshotted until checkout.
//
// An item without a loaded product is a dangling reference and makes the
// whole computation fail rather than silently undercount.
func ComputeTotal(items []models.CartItem) (decimal.Decimal, error) {

	total := decimal.Zero

	for _, item := range items {
		if item.Product == nil {
			return decimal.Zero, fmt.Errorf("cart item %d references missing product %d", item.ID, item.ProductID)
		}

		total = total.Add(item.LineTotal())
	}

	return total, nil
}

// ItemCount is the badge number: the sum of quantities, not of rows.
func ItemCount(items []models.CartItem) int64 {

	var count int64

	for _, item := range items {
		count += item.Quantity
	}

	return count
}
