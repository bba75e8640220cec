package handlers

import (
	"log/slog"
	"net/http"

	"github.com/bbqhouse/storefront/internal/api/middleware"
	"github.com/bbqhouse/storefront/internal/models"
	service "github.com/bbqhouse/storefront/internal/services"
	"github.com/bbqhouse/storefront/internal/utils"
	"github.com/bbqhouse/storefront/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type CategoryHandler struct {
	catalogService *service.CatalogService
	validator      *validator.Validate
}

func NewCategoryHandler(catalogService *service.CatalogService) *CategoryHandler {
	return &CategoryHandler{catalogService: catalogService, validator: validator.New()}
}

// CreateCategory godoc
//	@Summary		Create a new category
//	@Description	Creates a category. The slug is derived from the name when omitted and stays stable across renames.
//	@Tags			Categories
//	@Accept			json
//	@Produce		json
//	@Param			category	body		models.CreateCategoryRequest	true	"Category details"
//	@Success		201			{object}	models.Category					"Successfully created category"
//	@Failure		400			{object}	response.ErrorResponse			"Validation error"
//	@Failure		409			{object}	response.ErrorResponse			"Slug already exists"
//	@Failure		500			{object}	response.ErrorResponse			"Internal server error"
//	@Security		BearerAuth
//	@Router			/categories [post]
func (h *CategoryHandler) CreateCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		var req models.CreateCategoryRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid create category input")
			return
		}

		category, err := h.catalogService.CreateCategory(r.Context(), &req)
		if err != nil {
			logger.Error("Failed to create category", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Category created successfully", slog.Int64("categoryId", category.ID), slog.String("slug", category.Slug))
		response.Success(w, http.StatusCreated, category)
	}
}

// UpdateCategory godoc
//	@Summary		Rename a category
//	@Tags			Categories
//	@Accept			json
//	@Produce		json
//	@Param			id			path		int								true	"Category ID"
//	@Param			category	body		models.UpdateCategoryRequest	true	"New name"
//	@Success		200			{object}	models.Category					"Successfully updated category"
//	@Failure		400			{object}	response.ErrorResponse			"Validation error"
//	@Failure		404			{object}	response.ErrorResponse			"Category not found"
//	@Failure		500			{object}	response.ErrorResponse			"Internal server error"
//	@Security		BearerAuth
//	@Router			/categories/{id} [patch]
func (h *CategoryHandler) UpdateCategory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			logger.Warn("Invalid category id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		var req models.UpdateCategoryRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update category input")
			return
		}

		category, err := h.catalogService.UpdateCategory(r.Context(), id, &req)
		if err != nil {
			logger.Error("Failed to update category", slog.Int64("categoryId", id), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Category updated successfully", slog.Int64("categoryId", id))
		response.Success(w, http.StatusOK, category)
	}
}

// ListCategories godoc
//	@Summary		List all categories
//	@Tags			Categories
//	@Produce		json
//	@Success		200	{array}		models.Category			"All categories"
//	@Failure		500	{object}	response.ErrorResponse	"Internal server error"
//	@Router			/categories [get]
func (h *CategoryHandler) ListCategories() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())

		categories, err := h.catalogService.ListCategories(r.Context())
		if err != nil {
			logger.Error("Failed to fetch categories", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, categories)
	}
}
