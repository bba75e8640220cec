package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bbqhouse/storefront/internal/api/middleware"
	"github.com/bbqhouse/storefront/internal/errors"
	"github.com/bbqhouse/storefront/internal/models"
	service "github.com/bbqhouse/storefront/internal/services"
	"github.com/bbqhouse/storefront/internal/utils"
	"github.com/bbqhouse/storefront/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

type OrderHandler struct {
	cartService     *service.CartService
	checkoutService *service.CheckoutService
	validator       *validator.Validate
}

func NewOrderHandler(cartService *service.CartService, checkoutService *service.CheckoutService) *OrderHandler {
	return &OrderHandler{
		cartService:     cartService,
		checkoutService: checkoutService,
		validator:       validator.New(),
	}
}

// Checkout godoc
//	@Summary		Place an order from the current cart
//	@Description	Converts the visitor's cart into an order using the provided shipping details. The cart is consumed atomically with the order creation. Works for guests and authenticated users alike.
//	@Tags			Orders
//	@Accept			json
//	@Produce		json
//	@Param			checkout	body		models.CheckoutRequest	true	"Shipping details"
//	@Success		201			{object}	models.CheckoutResponse	"Successfully created order"
//	@Failure		400			{object}	response.ErrorResponse	"Validation error, invalid phone number, or empty cart"
//	@Failure		500			{object}	response.ErrorResponse	"Internal server error"
//	@Router			/checkout [post]
func (h *OrderHandler) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		identity := middleware.IdentityFromContext(r.Context())

		var req models.CheckoutRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			logger.Warn("Invalid checkout input")
			return
		}

		res, err := h.cartService.Resolve(r.Context(), identity)
		if err != nil {
			logger.Error("Failed to resolve cart for checkout", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		order, err := h.checkoutService.Checkout(r.Context(), identity, res.Cart, &req)
		if err != nil {
			logger.Error("Checkout failed", slog.String("cartId", res.Cart.ID.String()), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Checkout completed", slog.Int64("orderId", order.ID))
		response.Success(w, http.StatusCreated, models.CheckoutResponse{OrderID: order.ID})
	}
}

// GetOrder godoc
//	@Summary		Get an order by ID
//	@Description	Retrieves a single order. Orders owned by a registered user are only visible to that user.
//	@Tags			Orders
//	@Produce		json
//	@Param			id	path		int						true	"Order ID"
//	@Success		200	{object}	models.Order			"Successfully retrieved order"
//	@Failure		400	{object}	response.ErrorResponse	"Invalid order ID format"
//	@Failure		403	{object}	response.ErrorResponse	"Forbidden - order belongs to another user"
//	@Failure		404	{object}	response.ErrorResponse	"Order not found"
//	@Failure		500	{object}	response.ErrorResponse	"Internal server error"
//	@Security		BearerAuth
//	@Router			/orders/{id} [get]
func (h *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		identity := middleware.IdentityFromContext(r.Context())

		id, err := utils.ParseID(r, "id")
		if err != nil {
			logger.Warn("Invalid order id", slog.String("error", err.Error()))
			response.Error(w, err)
			return
		}

		order, err := h.checkoutService.GetOrder(r.Context(), identity, id)
		if err != nil {
			logger.Error("Failed to get order", slog.Int64("orderId", id), slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Order retrieved successfully", slog.Int64("orderId", id))
		response.Success(w, http.StatusOK, order)
	}
}

// ListOrders godoc
//	@Summary		List orders
//	@Description	Authenticated users get their own orders, paginated. Guests pass ?phone= to look up orders placed without an account under that phone number.
//	@Tags			Orders
//	@Produce		json
//	@Param			phone		query		string											false	"Phone number for guest order lookup"
//	@Param			page		query		int												false	"Page number for pagination (default: 1)"			minimum(1)
//	@Param			pageSize	query		int												false	"Number of items per page (default: 10, max: 100)"	minimum(1)	maximum(100)
//	@Success		200			{object}	models.PaginatedResponse{Data=[]models.Order}	"Successfully retrieved list of orders"
//	@Failure		400			{object}	response.ErrorResponse							"Invalid phone number"
//	@Failure		401			{object}	response.ErrorResponse							"Authentication required and no phone given"
//	@Failure		500			{object}	response.ErrorResponse							"Internal server error"
//	@Router			/orders [get]
func (h *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		logger := middleware.LoggerFromContext(r.Context())
		identity := middleware.IdentityFromContext(r.Context())

		if phone := r.URL.Query().Get("phone"); phone != "" && !identity.Authenticated() {

			orders, err := h.checkoutService.ListOrdersByPhone(r.Context(), phone)
			if err != nil {
				logger.Error("Failed to list orders by phone", slog.Any("error", err))
				response.Error(w, err)
				return
			}

			logger.Info("Guest orders listed", slog.Int("count", len(orders)))
			response.Success(w, http.StatusOK, orders)
			return
		}

		if !identity.Authenticated() {
			logger.Warn("Unauthorized order list attempt")
			response.Error(w, errors.UnauthorizedError("Authentication required"))
			return
		}

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 {
			page = 1
		}
		pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
		if err != nil || pageSize < 1 || pageSize > 100 {
			pageSize = 10
		}

		orders, total, err := h.checkoutService.ListOrders(r.Context(), identity, page, pageSize)
		if err != nil {
			logger.Error("Failed to list orders", slog.Any("error", err))
			response.Error(w, err)
			return
		}

		logger.Info("Orders listed successfully", slog.Int("count", len(orders)), slog.Int("total", total))
		response.Success(w, http.StatusOK, models.PaginatedResponse{
			Data:     orders,
			Total:    total,
			Page:     page,
			PageSize: pageSize,
		})
	}
}
