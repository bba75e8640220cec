package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bbqhouse/storefront/internal/models"
	"github.com/bbqhouse/storefront/internal/utils"
)

type ProductRepository interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	UpdateProduct(ctx context.Context, product *models.Product) error
	ListProducts(ctx context.Context, categoryID *int64, page, size int) ([]*models.Product, int, error)
}

type productRepository struct {
	DB *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepository {
	return &productRepository{DB: db}
}

func (r *productRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `INSERT INTO products (category_id, name, description, weight, price, image_url)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id, created_at, updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query, product.CategoryID, product.Name, product.Description, product.Weight, product.Price, product.ImageURL).
		Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT p.id, p.category_id, p.name, p.description, p.weight, p.price,
		       p.image_url, p.created_at, p.updated_at,
		       c.id, c.name, c.slug
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE p.id = $1`

	product := &models.Product{}

	var (
		categoryID   sql.NullInt64
		categoryName sql.NullString
		categorySlug sql.NullString
	)

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&product.ID, &product.CategoryID, &product.Name, &product.Description,
		&product.Weight, &product.Price, &product.ImageURL,
		&product.CreatedAt, &product.UpdatedAt,
		&categoryID, &categoryName, &categorySlug,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("querying database: %w", err)
	}

	if categoryID.Valid {
		product.Category = &models.Category{
			ID:   categoryID.Int64,
			Name: categoryName.String,
			Slug: categorySlug.String,
		}
	}

	return product, nil
}

func (r *productRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		UPDATE products SET category_id = $1, name = $2, description = $3, weight = $4, price = $5, image_url = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at
	`

	return r.DB.QueryRowContext(dbCtx, query, product.CategoryID, product.Name, product.Description, product.Weight, product.Price, product.ImageURL, product.ID).
		Scan(&product.UpdatedAt)
}

func (r *productRepository) ListProducts(ctx context.Context, categoryID *int64, page, size int) ([]*models.Product, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM products WHERE ($1::bigint IS NULL OR category_id = $1)`

	err := r.DB.QueryRowContext(dbCtx, countQuery, categoryID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	// Offset
	offset := (page - 1) * size

	query := `
		SELECT p.id, p.category_id, p.name, p.description, p.weight, p.price,
		       p.image_url, p.created_at, p.updated_at,
		       c.id, c.name, c.slug
		FROM products p
		LEFT JOIN categories c ON p.category_id = c.id
		WHERE ($1::bigint IS NULL OR p.category_id = $1)
		ORDER BY p.id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.DB.QueryContext(dbCtx, query, categoryID, size, offset)
	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	var products []*models.Product

	for rows.Next() {
		product := &models.Product{}

		var (
			catID   sql.NullInt64
			catName sql.NullString
			catSlug sql.NullString
		)

		err := rows.Scan(
			&product.ID, &product.CategoryID, &product.Name, &product.Description,
			&product.Weight, &product.Price, &product.ImageURL,
			&product.CreatedAt, &product.UpdatedAt,
			&catID, &catName, &catSlug,
		)
		if err != nil {
			return nil, 0, err
		}

		if catID.Valid {
			product.Category = &models.Category{ID: catID.Int64, Name: catName.String, Slug: catSlug.String}
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}
