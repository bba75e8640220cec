package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bbqhouse/storefront/internal/models"
	"github.com/bbqhouse/storefront/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartRepository interface {
	CreateCart(ctx context.Context, cart *models.Cart) error
	GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	GetItem(ctx context.Context, cartID uuid.UUID, itemID int64) (*models.CartItem, error)
	UpsertItem(ctx context.Context, cartID uuid.UUID, productID, quantity int64) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, itemID, quantity int64) error
	DeleteItem(ctx context.Context, cartID uuid.UUID, itemID int64) error
	UpdateTotal(ctx context.Context, cartID uuid.UUID, total decimal.Decimal) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
}

type cartRepository struct {
	DB *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{DB: db}
}

func (r *cartRepository) CreateCart(ctx context.Context, cart *models.Cart) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO carts (id, user_id, total_price, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`

	return r.DB.QueryRowContext(dbCtx, query, cart.ID, cart.UserID, cart.TotalPrice).Scan(&cart.CreatedAt)
}

func (r *cartRepository) GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, total_price, created_at
		FROM carts
		WHERE id = $1
	`

	return r.scanCart(r.DB.QueryRowContext(dbCtx, query, id))
}

func (r *cartRepository) GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, total_price, created_at
		FROM carts
		WHERE user_id = $1
	`

	return r.scanCart(r.DB.QueryRowContext(dbCtx, query, userID))
}

func (r *cartRepository) scanCart(row *sql.Row) (*models.Cart, error) {
	cart := &models.Cart{}

	err := row.Scan(&cart.ID, &cart.UserID, &cart.TotalPrice, &cart.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("querying database: %w", err)
	}

	return cart, nil
}

// ListItems returns the cart's items with their products, ordered by item
// id ascending so that summaries and totals are deterministic.
func (r *cartRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       p.id, p.category_id, p.name, p.description, p.weight, p.price, p.image_url, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`

	rows, err := r.DB.QueryContext(dbCtx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}

	defer rows.Close()

	var items []models.CartItem

	for rows.Next() {
		var item models.CartItem

		product := &models.Product{}

		err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&product.ID, &product.CategoryID, &product.Name, &product.Description,
			&product.Weight, &product.Price, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		item.Product = product
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// GetItem is cart-scoped: an item id belonging to another cart yields
// sql.ErrNoRows, never someone else's row.
func (r *cartRepository) GetItem(ctx context.Context, cartID uuid.UUID, itemID int64) (*models.CartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items
		WHERE id = $1 AND cart_id = $2
	`

	item := &models.CartItem{}

	err := r.DB.QueryRowContext(dbCtx, query, itemID, cartID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("querying database: %w", err)
	}

	return item, nil
}

// UpsertItem adds quantity to the (cart, product) row, creating it when
// absent. A single statement, so two concurrent adds cannot produce
// duplicate rows or lose an increment.
func (r *cartRepository) UpsertItem(ctx context.Context, cartID uuid.UUID, productID, quantity int64) (*models.CartItem, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, quantity
	`

	item := &models.CartItem{CartID: cartID, ProductID: productID}

	err := r.DB.QueryRowContext(dbCtx, query, cartID, productID, quantity).Scan(&item.ID, &item.Quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}

	return item, nil
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, itemID, quantity int64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE cart_items
		SET quantity = $1
		WHERE id = $2 AND cart_id = $3
	`

	result, err := r.DB.ExecContext(dbCtx, query, quantity, itemID, cartID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID uuid.UUID, itemID int64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`

	result, err := r.DB.ExecContext(dbCtx, query, itemID, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	deletedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get deleted rows: %w", err)
	}

	if deletedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *cartRepository) UpdateTotal(ctx context.Context, cartID uuid.UUID, total decimal.Decimal) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `UPDATE carts SET total_price = $1 WHERE id = $2`

	result, err := r.DB.ExecContext(dbCtx, query, total, cartID)
	if err != nil {
		return fmt.Errorf("failed to update cart total: %w", err)
	}

	updatedRows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get updated rows: %w", err)
	}

	if updatedRows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *cartRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	// cart_items go with the cart via ON DELETE CASCADE
	query := `DELETE FROM carts WHERE id = $1`

	if _, err := r.DB.ExecContext(dbCtx, query, cartID); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	return nil
}
