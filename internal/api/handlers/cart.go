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

type CartHandler struct {
	cartService *service.CartService
	validator   *validator.Validate
}

func NewCartHandler(cartService *service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService, validator: validator.New()}
}

// GetCart godoc
//	@Summary		Get the current cart
//	@Description	Returns the cart belonging to the authenticated user or guest session, creating one on first access.
//	@Tags			Cart
//	@Produce		json
//	@Success		200	{object}	models.CartView			"Current cart"
//	@Failure		500	{object}	response.ErrorResponse	"Internal server error"
//	@Router			/cart [get]
func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		identity := middleware.IdentityFromContext(r.Context())

		cart, err := h.cartService.GetCart(r.Context(), identity)
		if err != nil {
			logger.Error("Failed to get cart", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

// AddItem godoc
//	@Summary		Add a product to the cart
//	@Description	Adds the product to the visitor's cart, merging into an existing line for the same product. Quantity defaults to 1.
//	@Tags			Cart
//	@Accept			json
//	@Produce		json
//	@Param			item	body		models.AddItemRequest	true	"Product and quantity"
//	@Success		200		{object}	models.CartView			"Cart after the addition"
//	@Failure		400		{object}	response.ErrorResponse	"Validation error or non-positive quantity"
//	@Failure		404		{object}	response.ErrorResponse	"Product not found"
//	@Failure		500		{object}	response.ErrorResponse	"Internal server error"
//	@Router			/cart/items [post]
func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		identity := middleware.IdentityFromContext(r.Context())

		var req models.AddItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid add item input")
			return
		}

		cart, err := h.cartService.AddItem(r.Context(), identity, &req)
		if err != nil {
			logger.Error("Failed to add item to cart", slog.Int64("productId", req.ProductID), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Item added to cart", slog.Int64("productId", req.ProductID))
		response.Success(w, http.StatusOK, cart)
	}
}

// UpdateItem godoc
//	@Summary		Change a cart line's quantity
//	@Description	Sets the quantity of a cart line. Quantities below 1 are rejected; use the delete endpoint to remove a line.
//	@Tags			Cart
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int							true	"Cart item ID"
//	@Param			item	body		models.UpdateItemRequest	true	"New quantity"
//	@Success		200		{object}	models.CartView				"Cart after the update"
//	@Failure		400		{object}	response.ErrorResponse		"Validation error or non-positive quantity"
//	@Failure		404		{object}	response.ErrorResponse		"Cart item not found"
//	@Failure		500		{object}	response.ErrorResponse		"Internal server error"
//	@Router			/cart/items/{id} [patch]
func (h *CartHandler) UpdateItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		identity := middleware.IdentityFromContext(r.Context())

		itemID, err := utils.ParseID(r, "id")
		if err != nil {
			logger.Warn("Invalid cart item id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		var req models.UpdateItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid update item input")
			return
		}

		cart, err := h.cartService.UpdateItem(r.Context(), identity, itemID, &req)
		if err != nil {
			logger.Error("Failed to update cart item", slog.Int64("itemId", itemID), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Cart item updated", slog.Int64("itemId", itemID), slog.Int64("quantity", req.Quantity))
		response.Success(w, http.StatusOK, cart)
	}
}

// RemoveItem godoc
//	@Summary		Remove a line from the cart
//	@Tags			Cart
//	@Produce		json
//	@Param			id	path		int						true	"Cart item ID"
//	@Success		200	{object}	models.CartView			"Cart after the removal"
//	@Failure		404	{object}	response.ErrorResponse	"Cart item not found"
//	@Failure		500	{object}	response.ErrorResponse	"Internal server error"
//	@Router			/cart/items/{id} [delete]
func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		identity := middleware.IdentityFromContext(r.Context())

		itemID, err := utils.ParseID(r, "id")
		if err != nil {
			logger.Warn("Invalid cart item id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		cart, err := h.cartService.RemoveItem(r.Context(), identity, itemID)
		if err != nil {
			logger.Error("Failed to remove cart item", slog.Int64("itemId", itemID), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Cart item removed", slog.Int64("itemId", itemID))
		response.Success(w, http.StatusOK, cart)
	}
}
