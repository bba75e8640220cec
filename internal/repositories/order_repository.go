package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bbqhouse/storefront/internal/models"
	"github.com/bbqhouse/storefront/internal/utils"
	"github.com/google/uuid"
)

type OrderRepository interface {
	CreateOrderFromCart(ctx context.Context, order *models.Order, cartID uuid.UUID) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error)
	ListOrdersByPhone(ctx context.Context, phoneNumber string) ([]models.Order, error)
}

type orderRepository struct {
	DB *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepository {
	return &orderRepository{DB: db}
}

// CreateOrderFromCart persists the order snapshot and deletes the
// originating cart in one transaction. Either the order exists and the
// cart is gone, or neither happened; cart items cascade with the cart.
func (r *orderRepository) CreateOrderFromCart(ctx context.Context, order *models.Order, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	query := `
		INSERT INTO orders (user_id, products, status, total_price, shipping_address, phone_number, message, order_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, order_date
	`

	err = tx.QueryRowContext(dbCtx, query,
		order.UserID, order.Products, order.Status, order.TotalPrice,
		order.ShippingAddress, order.PhoneNumber, order.Message,
	).Scan(&order.ID, &order.OrderDate)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	if _, err := tx.ExecContext(dbCtx, `DELETE FROM carts WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	order := &models.Order{}

	query := `
		SELECT id, user_id, products, order_date, status, total_price, shipping_address, phone_number, message
		FROM orders
		WHERE id = $1
	`

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&order.ID, &order.UserID, &order.Products, &order.OrderDate, &order.Status,
		&order.TotalPrice, &order.ShippingAddress, &order.PhoneNumber, &order.Message,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get the order: %w", err)
	}

	return order, nil
}

func (r *orderRepository) ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = $1`

	if err := r.DB.QueryRowContext(dbCtx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Offset
	offset := (page - 1) * size

	query := `
		SELECT id, user_id, products, order_date, status, total_price, shipping_address, phone_number, message
		FROM orders
		WHERE user_id = $1
		ORDER BY order_date DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.DB.QueryContext(dbCtx, query, userID, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// ListOrdersByPhone only ever matches guest orders (user_id IS NULL):
// a registered user's history is not exposed through a phone number.
func (r *orderRepository) ListOrdersByPhone(ctx context.Context, phoneNumber string) ([]models.Order, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, products, order_date, status, total_price, shipping_address, phone_number, message
		FROM orders
		WHERE phone_number = $1 AND user_id IS NULL
		ORDER BY order_date DESC
	`

	rows, err := r.DB.QueryContext(dbCtx, query, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	defer rows.Close()

	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order

	for rows.Next() {
		var order models.Order

		err := rows.Scan(
			&order.ID, &order.UserID, &order.Products, &order.OrderDate, &order.Status,
			&order.TotalPrice, &order.ShippingAddress, &order.PhoneNumber, &order.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
