package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"

	"github.com/bbqhouse/storefront/internal/api/middleware"
	"github.com/bbqhouse/storefront/internal/cache"
	"github.com/bbqhouse/storefront/internal/config"
	appErrors "github.com/bbqhouse/storefront/internal/errors"
	"github.com/bbqhouse/storefront/internal/models"
	repository "github.com/bbqhouse/storefront/internal/repositories"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type CatalogService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	cache      cache.Cache
	cacheCfg   *config.CacheConfig
}

func NewCatalogService(categories repository.CategoryRepository, products repository.ProductRepository, cacheStore cache.Cache, cacheCfg *config.CacheConfig) *CatalogService {
	return &CatalogService{
		categories: categories,
		products:   products,
		cache:      cacheStore,
		cacheCfg:   cacheCfg,
	}
}

// CreateCategory derives the slug from the name when none is given. A
// colliding slug gets a random suffix instead of failing the create.
func (s *CatalogService) CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {

	categorySlug := req.Slug
	if categorySlug == "" {
		categorySlug = slug.Make(req.Name)
	}

	taken, err := s.categories.SlugExists(ctx, categorySlug)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to check category slug").WithError(err)
	}

	if taken {
		categorySlug = categorySlug + "-" + uuid.NewString()[:8]
	}

	category := &models.Category{
		Name: req.Name,
		Slug: categorySlug,
	}

	if err := s.categories.CreateCategory(ctx, category); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.DuplicateEntryError("Category slug already exists").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to create category").WithError(err)
	}

	s.invalidateCategories(ctx)

	return category, nil
}

// UpdateCategory renames the category. The slug is assigned once at
// creation and survives renames, so stored links stay valid.
func (s *CatalogService) UpdateCategory(ctx context.Context, id int64, req *models.UpdateCategoryRequest) (*models.Category, error) {

	category, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Category not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to fetch category").WithError(err)
	}

	category.Name = req.Name

	if err := s.categories.UpdateCategory(ctx, category); err != nil {
		return nil, appErrors.DatabaseError("Failed to update category").WithError(err)
	}

	s.invalidateCategories(ctx)

	return category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {

	var cached []models.Category

	found, err := s.cache.Get(ctx, cache.CategoriesListKey, &cached)
	if err != nil {
		middleware.LoggerFromContext(ctx).Warn("Category cache lookup failed", slog.String("error", err.Error()))
	}

	if found {
		return cached, nil
	}

	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch categories").WithError(err)
	}

	if err := s.cache.Set(ctx, cache.CategoriesListKey, categories, s.cacheCfg.DefaultTTL); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Category cache write failed", slog.String("error", err.Error()))
	}

	return categories, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {

	if req.CategoryID != nil {
		if _, err := s.categories.GetCategoryByID(ctx, *req.CategoryID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.BadRequestError("Category does not exist").WithError(err)
			}

			return nil, appErrors.DatabaseError("Failed to fetch category").WithError(err)
		}
	}

	product := &models.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Weight:      req.Weight,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
	}

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, appErrors.DatabaseError("Failed to create product").WithError(err)
	}

	return product, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {

	key := cache.Key(cache.ProductKeyPrefix, strconv.FormatInt(id, 10))

	var cached models.Product

	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		middleware.LoggerFromContext(ctx).Warn("Product cache lookup failed", slog.String("error", err.Error()))
	}

	if found {
		return &cached, nil
	}

	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ProductNotFoundError("Product not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to fetch product").WithError(err)
	}

	if err := s.cache.Set(ctx, key, product, s.cacheCfg.ProductTTL); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Product cache write failed", slog.String("error", err.Error()))
	}

	return product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *models.UpdateProductRequest) (*models.Product, error) {

	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ProductNotFoundError("Product not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to fetch product").WithError(err)
	}

	if req.CategoryID != nil {
		product.CategoryID = req.CategoryID
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Weight != nil {
		product.Weight = req.Weight
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.ImageURL != nil {
		product.ImageURL = req.ImageURL
	}

	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, appErrors.DatabaseError("Failed to update product").WithError(err)
	}

	if err := s.cache.Delete(ctx, cache.Key(cache.ProductKeyPrefix, strconv.FormatInt(id, 10))); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Product cache invalidation failed", slog.String("error", err.Error()))
	}

	return product, nil
}

// page means "page number requested"
// pageSize means "number of products to be displayed per page"
func (s *CatalogService) ListProducts(ctx context.Context, categoryID *int64, page, pageSize int) ([]*models.Product, int, error) {

	products, total, err := s.products.ListProducts(ctx, categoryID, page, pageSize)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to fetch products").WithError(err)
	}

	return products, total, nil
}

func (s *CatalogService) invalidateCategories(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.CategoriesListKey); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Category cache invalidation failed", slog.String("error", err.Error()))
	}
}
