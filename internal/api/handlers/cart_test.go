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
	repository "github.com/bbqhouse/storefront/internal/repositories"
	service "github.com/bbqhouse/storefront/internal/services"
	"github.com/bbqhouse/storefront/internal/testutils"
	"github.com/bbqhouse/storefront/internal/utils/response"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupCartHandlerTest() (*handlers.CartHandler, *repository.MockCartRepository, *repository.MockProductRepository, *repository.MockSessionRepository) {
	mockCartRepo := new(repository.MockCartRepository)
	mockProductRepo := new(repository.MockProductRepository)
	mockSessionRepo := new(repository.MockSessionRepository)

	cartService := service.NewCartService(mockCartRepo, mockProductRepo, mockSessionRepo)
	handler := handlers.NewCartHandler(cartService)

	return handler, mockCartRepo, mockProductRepo, mockSessionRepo
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) *response.APIResponse {
	t.Helper()

	var resp response.APIResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))

	return &resp
}

func TestGetCartHandler(t *testing.T) {
	t.Run("Success - Guest With Bound Cart", func(t *testing.T) {
		// Arrange
		handler, mockCartRepo, _, mockSessionRepo := setupCartHandlerTest()

		token := uuid.NewString()
		cartID := uuid.New()
		cart := &models.Cart{ID: cartID, TotalPrice: decimal.NewFromInt(500)}
		items := []models.CartItem{
			{ID: 1, CartID: cartID, ProductID: 10, Quantity: 2, Product: &models.Product{ID: 10, Name: "Пицца Маргарита", Price: decimal.NewFromInt(250)}},
		}

		mockSessionRepo.On("CartID", mock.Anything, token).Return(cartID, true, nil).Once()
		mockCartRepo.On("GetCartByID", mock.Anything, cartID).Return(cart, nil).Once()
		mockCartRepo.On("ListItems", mock.Anything, cartID).Return(items, nil).Once()

		req := testutils.CreateGuestRequest(http.MethodGet, "/api/v1/cart", nil, token, nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.GetCart()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.True(t, resp.Success)
		assert.NotNil(t, resp.Data)

		mockSessionRepo.AssertExpectations(t)
		mockCartRepo.AssertExpectations(t)
	})

	t.Run("Failure - Repository Error", func(t *testing.T) {
		// Arrange
		handler, mockCartRepo, _, _ := setupCartHandlerTest()
		userID := uuid.New()

		mockCartRepo.On("GetCartByUserID", mock.Anything, userID).Return(nil, assert.AnError).Once()

		req := testutils.CreateUserRequest(http.MethodGet, "/api/v1/cart", nil, userID, nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.GetCart()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.False(t, resp.Success)

		mockCartRepo.AssertExpectations(t)
	})
}

func TestAddItemHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		handler, mockCartRepo, mockProductRepo, mockSessionRepo := setupCartHandlerTest()

		userID := uuid.New()
		cartID := uuid.New()
		cart := &models.Cart{ID: cartID, UserID: &userID, TotalPrice: decimal.Zero}
		product := &models.Product{ID: 10, Name: "Пицца Маргарита", Price: decimal.NewFromInt(250)}
		items := []models.CartItem{{ID: 1, CartID: cartID, ProductID: 10, Quantity: 2, Product: product}}

		mockProductRepo.On("GetProductByID", mock.Anything, int64(10)).Return(product, nil).Once()
		mockCartRepo.On("GetCartByUserID", mock.Anything, userID).Return(cart, nil).Once()
		mockCartRepo.On("UpsertItem", mock.Anything, cartID, int64(10), int64(2)).Return(&items[0], nil).Once()
		mockCartRepo.On("ListItems", mock.Anything, cartID).Return(items, nil).Twice()
		mockCartRepo.On("UpdateTotal", mock.Anything, cartID, decimal.NewFromInt(500)).Return(nil).Once()
		mockSessionRepo.On("AddItemCount", mock.Anything, mock.AnythingOfType("string"), int64(2)).Return(nil).Once()

		body, _ := json.Marshal(models.AddItemRequest{ProductID: 10, Quantity: qtyPtr(2)})
		req := testutils.CreateUserRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), userID, nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.AddItem()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusOK, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.True(t, resp.Success)

		mockCartRepo.AssertExpectations(t)
		mockProductRepo.AssertExpectations(t)
		mockSessionRepo.AssertExpectations(t)
	})

	t.Run("Failure - Missing Product ID", func(t *testing.T) {
		// Arrange
		handler, mockCartRepo, _, _ := setupCartHandlerTest()

		req := testutils.CreateUserRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader([]byte(`{}`)), uuid.New(), nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.AddItem()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockCartRepo.AssertNotCalled(t, "UpsertItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failure - Unknown Product", func(t *testing.T) {
		// Arrange
		handler, _, mockProductRepo, _ := setupCartHandlerTest()

		mockProductRepo.On("GetProductByID", mock.Anything, int64(99)).Return(nil, sql.ErrNoRows).Once()

		body, _ := json.Marshal(models.AddItemRequest{ProductID: 99})
		req := testutils.CreateUserRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), uuid.New(), nil)
		recorder := httptest.NewRecorder()

		// Act
		handler.AddItem()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.False(t, resp.Success)

		mockProductRepo.AssertExpectations(t)
	})
}

func TestUpdateItemHandler(t *testing.T) {
	t.Run("Failure - Invalid Item ID", func(t *testing.T) {
		// Arrange
		handler, mockCartRepo, _, _ := setupCartHandlerTest()

		body, _ := json.Marshal(models.UpdateItemRequest{Quantity: 3})
		req := testutils.CreateUserRequest(http.MethodPatch, "/api/v1/cart/items/abc", bytes.NewReader(body), uuid.New(), map[string]string{"id": "abc"})
		recorder := httptest.NewRecorder()

		// Act
		handler.UpdateItem()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		mockCartRepo.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRemoveItemHandler(t *testing.T) {
	t.Run("Failure - Item Not In Cart", func(t *testing.T) {
		// Arrange
		handler, mockCartRepo, _, _ := setupCartHandlerTest()

		userID := uuid.New()
		cartID := uuid.New()
		cart := &models.Cart{ID: cartID, UserID: &userID, TotalPrice: decimal.Zero}

		mockCartRepo.On("GetCartByUserID", mock.Anything, userID).Return(cart, nil).Once()
		mockCartRepo.On("GetItem", mock.Anything, cartID, int64(9)).Return(nil, sql.ErrNoRows).Once()

		req := testutils.CreateUserRequest(http.MethodDelete, "/api/v1/cart/items/9", nil, userID, map[string]string{"id": "9"})
		recorder := httptest.NewRecorder()

		// Act
		handler.RemoveItem()(recorder, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, recorder.Code)

		resp := decodeResponse(t, recorder)
		assert.False(t, resp.Success)

		mockCartRepo.AssertExpectations(t)
	})
}

func qtyPtr(n int64) *int64 {
	return &n
}
