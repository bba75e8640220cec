package handlers_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bbqhouse/storefront/internal/api/handlers"
	"github.com/bbqhouse/storefront/internal/models"
	"github.com/bbqhouse/storefront/internal/notify"
	repository "github.com/bbqhouse/storefront/internal/repositories"
	service "github.com/bbqhouse/storefront/internal/services"
	"github.com/bbqhouse/storefront/internal/testutils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderHandlerMocks struct {
	carts    *repository.MockCartRepository
	products *repository.MockProductRepository
	orders   *repository.MockOrderRepository
	sessions *repository.MockSessionRepository
}

func setupOrderHandlerTest() (*handlers.OrderHandler, *orderHandlerMocks) {
	m := &orderHandlerMocks{
		carts:    new(repository.MockCartRepository),
		products: new(repository.MockProductRepository),
		orders:   new(repository.MockOrderRepository),
		sessions: new(repository.MockSessionRepository),
	}

	cartService := service.NewCartService(m.carts, m.products, m.sessions)
	checkoutService := service.NewCheckoutService(m.orders, m.carts, m.sessions, notify.Discard{}, "RU")
	handler := handlers.NewOrderHandler(cartService, checkoutService)

	return handler, m
}

func TestCheckoutHandler(t *testing.T) {
	t.Run("Success - Guest Checkout", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		token := uuid.NewString()
		cartID := uuid.New()
		cart := &models.Cart{ID: cartID, TotalPrice: decimal.NewFromInt(500)}
		items := []models.CartItem{
			{ID: 1, CartID: cartID, ProductID: 10, Quantity: 2, Product: &models.Product{ID: 10, Name: "Шашлык из свинины", Price: decimal.NewFromInt(250)}},
		}

		m.sessions.On("CartID", mock.Anything, token).Return(cartID, true, nil).Once()
		m.carts.On("GetCartByID", mock.Anything, cartID).Return(cart, nil).Once()
		m.carts.On("ListItems", mock.Anything, cartID).Return(items, nil).Once()
		m.orders.On("CreateOrderFromCart", mock.Anything, mock.AnythingOfType("*models.Order"), cartID).
			Run(func(args mock.Arguments) {
				order := args.Get(1).(*models.Order)
				order.ID = 77
			}).Return(nil).Once()
		m.sessions.On("Clear", mock.Anything, token).Return(nil).Once()

		body, _ := json.Marshal(models.CheckoutRequest{
			ShippingAddress: "ул. Ленина, д. 1, кв. 2",
			PhoneNumber:     "8 916 123-45-67",
		})
		req := testutils.CreateGuestRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body), token, nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.Checkout()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusCreated, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.True(t, resp.Success)

		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 77, data["order_id"])

		m.sessions.AssertExpectations(t)
		m.carts.AssertExpectations(t)
		m.orders.AssertExpectations(t)
	})

	t.Run("Failure - Empty Cart", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		userID := uuid.New()
		cartID := uuid.New()
		cart := &models.Cart{ID: cartID, UserID: &userID, TotalPrice: decimal.Zero}

		m.carts.On("GetCartByUserID", mock.Anything, userID).Return(cart, nil).Once()
		m.carts.On("ListItems", mock.Anything, cartID).Return([]models.CartItem{}, nil).Once()

		body, _ := json.Marshal(models.CheckoutRequest{
			ShippingAddress: "ул. Ленина, д. 1",
			PhoneNumber:     "8 916 123-45-67",
		})
		req := testutils.CreateUserRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body), userID, nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.Checkout()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.False(t, resp.Success)

		m.orders.AssertNotCalled(t, "CreateOrderFromCart", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - Missing Shipping Address", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		body, _ := json.Marshal(models.CheckoutRequest{PhoneNumber: "8 916 123-45-67"})
		req := testutils.CreateUserRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(body), uuid.New(), nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.Checkout()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		m.carts.AssertNotCalled(t, "GetCartByUserID", mock.Anything, mock.Anything)
	})
}

func TestGetOrderHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		userID := uuid.New()
		order := &models.Order{ID: 77, UserID: &userID, Status: models.OrderStatusPending, TotalPrice: decimal.NewFromInt(500)}

		m.orders.On("GetOrderByID", mock.Anything, int64(77)).Return(order, nil).Once()

		req := testutils.CreateUserRequest(http.MethodGet, "/api/v1/orders/77", nil, userID, map[string]string{"id": "77"})
		recorder := httptest.NewRecorder()

		// Act
		handler.GetOrder()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.True(t, resp.Success)

		m.orders.AssertExpectations(t)
	})

	t.Run("Failure - Not Found", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		m.orders.On("GetOrderByID", mock.Anything, int64(404)).Return(nil, sql.ErrNoRows).Once()

		req := testutils.CreateUserRequest(http.MethodGet, "/api/v1/orders/404", nil, uuid.New(), map[string]string{"id": "404"})
		recorder := httptest.NewRecorder()

		// Act
		handler.GetOrder()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("Failure - Another User's Order", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		ownerID := uuid.New()
		order := &models.Order{ID: 77, UserID: &ownerID, Status: models.OrderStatusPending}

		m.orders.On("GetOrderByID", mock.Anything, int64(77)).Return(order, nil).Once()

		req := testutils.CreateUserRequest(http.MethodGet, "/api/v1/orders/77", nil, uuid.New(), map[string]string{"id": "77"})
		recorder := httptest.NewRecorder()

		// Act
		handler.GetOrder()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})
}

func TestListOrdersHandler(t *testing.T) {
	t.Run("Success - Authenticated User", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		userID := uuid.New()
		orders := []models.Order{{ID: 1, UserID: &userID}, {ID: 2, UserID: &userID}}

		m.orders.On("ListOrdersByUser", mock.Anything, userID, 1, 10).Return(orders, 2, nil).Once()

		req := testutils.CreateUserRequest(http.MethodGet, "/api/v1/orders", nil, userID, nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.ListOrders()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.True(t, resp.Success)

		m.orders.AssertExpectations(t)
	})

	t.Run("Success - Guest Lookup By Phone", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		orders := []models.Order{{ID: 5, PhoneNumber: "+79161234567"}}

		m.orders.On("ListOrdersByPhone", mock.Anything, "+79161234567").Return(orders, nil).Once()

		req := testutils.CreateGuestRequest(http.MethodGet, "/api/v1/orders?phone=8+916+123-45-67", nil, uuid.NewString(), nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.ListOrders()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)
		m.orders.AssertExpectations(t)
	})

	t.Run("Failure - Guest Without Phone", func(t *testing.T) {
		// Arrange
		handler, m := setupOrderHandlerTest()

		req := testutils.CreateGuestRequest(http.MethodGet, "/api/v1/orders", nil, uuid.NewString(), nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.ListOrders()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		m.orders.AssertNotCalled(t, "ListOrdersByUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
