package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	appErrors "github.com/bbqhouse/storefront/internal/errors"
	"github.com/bbqhouse/storefront/internal/models"
	repository "github.com/bbqhouse/storefront/internal/repositories"
	service "github.com/bbqhouse/storefront/internal/services"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupCartServiceTest(t *testing.T) (*service.CartService, *repository.MockCartRepository, *repository.MockProductRepository, *repository.MockSessionRepository) {
	t.Helper()
	mockCartRepo := repository.NewMockCartRepository()
	mockProductRepo := repository.NewMockProductRepository()
	mockSessionRepo := repository.NewMockSessionRepository()
	cartService := service.NewCartService(mockCartRepo, mockProductRepo, mockSessionRepo)
	return cartService, mockCartRepo, mockProductRepo, mockSessionRepo
}

func qty(n int64) *int64 { return &n }

func TestResolve_ExistingUserCart(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	existing := &models.Cart{ID: uuid.New(), UserID: &userID, TotalPrice: decimal.NewFromInt(300)}

	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(existing, nil).Once()

	// Act
	res, err := cartService.Resolve(ctx, models.Identity{UserID: &userID})

	// Assert
	assert.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, existing, res.Cart)

	mockCartRepo.AssertExpectations(t)
}

func TestResolve_CreatesCartForNewUser(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()

	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(nil, sql.ErrNoRows).Once()
	mockCartRepo.On("CreateCart", ctx, mock.MatchedBy(func(c *models.Cart) bool {
		return c.UserID != nil && *c.UserID == userID && c.ID != uuid.Nil
	})).Return(nil).Once()

	// Act
	res, err := cartService.Resolve(ctx, models.Identity{UserID: &userID})

	// Assert
	assert.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, userID, *res.Cart.UserID)
	assert.True(t, res.Cart.TotalPrice.IsZero())

	mockCartRepo.AssertExpectations(t)
}

func TestResolve_UserCartCreationRace(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	winner := &models.Cart{ID: uuid.New(), UserID: &userID}

	// First read misses, the insert loses to a concurrent request, the
	// second read picks up the winner's cart.
	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(nil, sql.ErrNoRows).Once()
	mockCartRepo.On("CreateCart", ctx, mock.AnythingOfType("*models.Cart")).Return(&pq.Error{Code: "23505"}).Once()
	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(winner, nil).Once()

	// Act
	res, err := cartService.Resolve(ctx, models.Identity{UserID: &userID})

	// Assert
	assert.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner, res.Cart)

	mockCartRepo.AssertExpectations(t)
}

func TestResolve_GuestSessionWithLiveCart(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, mockSessionRepo := setupCartServiceTest(t)
	ctx := context.Background()
	token := uuid.NewString()
	cart := &models.Cart{ID: uuid.New()}

	mockSessionRepo.On("CartID", ctx, token).Return(cart.ID, true, nil).Once()
	mockCartRepo.On("GetCartByID", ctx, cart.ID).Return(cart, nil).Once()

	// Act
	res, err := cartService.Resolve(ctx, models.Identity{SessionToken: token})

	// Assert
	assert.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, cart, res.Cart)

	mockSessionRepo.AssertExpectations(t)
	mockCartRepo.AssertExpectations(t)
}

func TestResolve_GuestSessionHealsDanglingCartID(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, mockSessionRepo := setupCartServiceTest(t)
	ctx := context.Background()
	token := uuid.NewString()
	staleID := uuid.New()

	// The session still points at a cart consumed by an earlier checkout.
	mockSessionRepo.On("CartID", ctx, token).Return(staleID, true, nil).Once()
	mockCartRepo.On("GetCartByID", ctx, staleID).Return(nil, sql.ErrNoRows).Once()
	mockCartRepo.On("CreateCart", ctx, mock.MatchedBy(func(c *models.Cart) bool {
		return c.UserID == nil && c.ID != staleID
	})).Return(nil).Once()
	mockSessionRepo.On("SetCartID", ctx, token, mock.AnythingOfType("uuid.UUID")).Return(nil).Once()

	// Act
	res, err := cartService.Resolve(ctx, models.Identity{SessionToken: token})

	// Assert
	assert.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEqual(t, staleID, res.Cart.ID)

	mockSessionRepo.AssertExpectations(t)
	mockCartRepo.AssertExpectations(t)
}

func TestResolve_GuestSessionBindFailureStillReturnsCart(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, mockSessionRepo := setupCartServiceTest(t)
	ctx := context.Background()
	token := uuid.NewString()

	mockSessionRepo.On("CartID", ctx, token).Return(uuid.Nil, false, nil).Once()
	mockCartRepo.On("CreateCart", ctx, mock.AnythingOfType("*models.Cart")).Return(nil).Once()
	mockSessionRepo.On("SetCartID", ctx, token, mock.AnythingOfType("uuid.UUID")).Return(errors.New("redis down")).Once()

	// Act
	res, err := cartService.Resolve(ctx, models.Identity{SessionToken: token})

	// Assert
	assert.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotNil(t, res.Cart)

	mockSessionRepo.AssertExpectations(t)
	mockCartRepo.AssertExpectations(t)
}

func TestAddItem_Success(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, mockProductRepo, mockSessionRepo := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	identity := models.Identity{UserID: &userID, SessionToken: uuid.NewString()}
	cart := &models.Cart{ID: uuid.New(), UserID: &userID}
	product := &models.Product{ID: 7, Name: "Шашлык из свинины", Price: decimal.NewFromInt(250)}
	items := []models.CartItem{
		{ID: 1, CartID: cart.ID, ProductID: 7, Quantity: 2, Product: product},
	}

	mockProductRepo.On("GetProductByID", ctx, int64(7)).Return(product, nil).Once()
	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	mockCartRepo.On("UpsertItem", ctx, cart.ID, int64(7), int64(2)).Return(&items[0], nil).Once()
	mockCartRepo.On("ListItems", ctx, cart.ID).Return(items, nil).Twice() // recompute + view
	mockCartRepo.On("UpdateTotal", ctx, cart.ID, decimal.NewFromInt(500)).Return(nil).Once()
	mockSessionRepo.On("AddItemCount", ctx, identity.SessionToken, int64(2)).Return(nil).Once()

	// Act
	view, err := cartService.AddItem(ctx, identity, &models.AddItemRequest{ProductID: 7, Quantity: qty(2)})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, int64(2), view.ItemCount)
	assert.True(t, view.TotalPrice.Equal(decimal.NewFromInt(500)))
	assert.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].LineTotal.Equal(decimal.NewFromInt(500)))

	mockCartRepo.AssertExpectations(t)
	mockProductRepo.AssertExpectations(t)
	mockSessionRepo.AssertExpectations(t)
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, mockProductRepo, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), UserID: &userID}
	product := &models.Product{ID: 3, Name: "Лепёшка", Price: decimal.NewFromInt(50)}
	items := []models.CartItem{
		{ID: 1, CartID: cart.ID, ProductID: 3, Quantity: 1, Product: product},
	}

	mockProductRepo.On("GetProductByID", ctx, int64(3)).Return(product, nil).Once()
	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	mockCartRepo.On("UpsertItem", ctx, cart.ID, int64(3), int64(1)).Return(&items[0], nil).Once()
	mockCartRepo.On("ListItems", ctx, cart.ID).Return(items, nil).Twice()
	mockCartRepo.On("UpdateTotal", ctx, cart.ID, decimal.NewFromInt(50)).Return(nil).Once()

	// Act
	view, err := cartService.AddItem(ctx, models.Identity{UserID: &userID}, &models.AddItemRequest{ProductID: 3})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, int64(1), view.ItemCount)

	mockCartRepo.AssertExpectations(t)
	mockProductRepo.AssertExpectations(t)
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	// Arrange
	cartService, _, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()

	// Act
	view, err := cartService.AddItem(ctx, models.Identity{UserID: &userID}, &models.AddItemRequest{ProductID: 3, Quantity: qty(0)})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, view)
	appErr, ok := err.(*appErrors.AppError)
	assert.True(t, ok)
	assert.Equal(t, appErrors.ErrCodeInvalidQuantity, appErr.Code)
}

func TestAddItem_ProductNotFound(t *testing.T) {
	// Arrange
	cartService, _, mockProductRepo, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()

	mockProductRepo.On("GetProductByID", ctx, int64(99)).Return(nil, sql.ErrNoRows).Once()

	// Act
	view, err := cartService.AddItem(ctx, models.Identity{UserID: &userID}, &models.AddItemRequest{ProductID: 99})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, view)
	appErr, ok := err.(*appErrors.AppError)
	assert.True(t, ok)
	assert.Equal(t, appErrors.ErrCodeProductNotFound, appErr.Code)

	mockProductRepo.AssertExpectations(t)
}

func TestAddItem_TotalRecomputeFailureDoesNotFailMutation(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, mockProductRepo, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	previousTotal := decimal.NewFromInt(100)
	cart := &models.Cart{ID: uuid.New(), UserID: &userID, TotalPrice: previousTotal}
	product := &models.Product{ID: 3, Name: "Лепёшка", Price: decimal.NewFromInt(50)}
	items := []models.CartItem{
		{ID: 1, CartID: cart.ID, ProductID: 3, Quantity: 3, Product: product},
	}

	mockProductRepo.On("GetProductByID", ctx, int64(3)).Return(product, nil).Once()
	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	mockCartRepo.On("UpsertItem", ctx, cart.ID, int64(3), int64(3)).Return(&items[0], nil).Once()
	// Recompute fails on the total write; the view read still succeeds.
	mockCartRepo.On("ListItems", ctx, cart.ID).Return(items, nil).Twice()
	mockCartRepo.On("UpdateTotal", ctx, cart.ID, decimal.NewFromInt(150)).Return(errors.New("write failed")).Once()

	// Act
	view, err := cartService.AddItem(ctx, models.Identity{UserID: &userID}, &models.AddItemRequest{ProductID: 3, Quantity: qty(3)})

	// Assert
	assert.NoError(t, err)
	assert.True(t, view.TotalPrice.Equal(previousTotal)) // stale but served

	mockCartRepo.AssertExpectations(t)
	mockProductRepo.AssertExpectations(t)
}

func TestUpdateItem_Success(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, mockSessionRepo := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	identity := models.Identity{UserID: &userID, SessionToken: uuid.NewString()}
	cart := &models.Cart{ID: uuid.New(), UserID: &userID}
	product := &models.Product{ID: 7, Name: "Шашлык из свинины", Price: decimal.NewFromInt(250)}
	existing := &models.CartItem{ID: 5, CartID: cart.ID, ProductID: 7, Quantity: 1, Product: product}
	updated := []models.CartItem{
		{ID: 5, CartID: cart.ID, ProductID: 7, Quantity: 4, Product: product},
	}

	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	mockCartRepo.On("GetItem", ctx, cart.ID, int64(5)).Return(existing, nil).Once()
	mockCartRepo.On("UpdateItemQuantity", ctx, cart.ID, int64(5), int64(4)).Return(nil).Once()
	mockCartRepo.On("ListItems", ctx, cart.ID).Return(updated, nil).Twice()
	mockCartRepo.On("UpdateTotal", ctx, cart.ID, decimal.NewFromInt(1000)).Return(nil).Once()
	mockSessionRepo.On("AddItemCount", ctx, identity.SessionToken, int64(3)).Return(nil).Once()

	// Act
	view, err := cartService.UpdateItem(ctx, identity, 5, &models.UpdateItemRequest{Quantity: 4})

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, int64(4), view.ItemCount)
	assert.True(t, view.TotalPrice.Equal(decimal.NewFromInt(1000)))

	mockCartRepo.AssertExpectations(t)
	mockSessionRepo.AssertExpectations(t)
}

func TestUpdateItem_RejectsZeroQuantity(t *testing.T) {
	// Arrange
	cartService, _, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()

	// Act
	view, err := cartService.UpdateItem(ctx, models.Identity{UserID: &userID}, 5, &models.UpdateItemRequest{Quantity: 0})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, view)
	appErr, ok := err.(*appErrors.AppError)
	assert.True(t, ok)
	assert.Equal(t, appErrors.ErrCodeInvalidQuantity, appErr.Code)
}

func TestUpdateItem_ItemFromAnotherCart(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), UserID: &userID}

	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	// The lookup is cart-scoped, so an item id from someone else's cart
	// simply does not exist here.
	mockCartRepo.On("GetItem", ctx, cart.ID, int64(42)).Return(nil, sql.ErrNoRows).Once()

	// Act
	view, err := cartService.UpdateItem(ctx, models.Identity{UserID: &userID}, 42, &models.UpdateItemRequest{Quantity: 2})

	// Assert
	assert.Error(t, err)
	assert.Nil(t, view)
	appErr, ok := err.(*appErrors.AppError)
	assert.True(t, ok)
	assert.Equal(t, appErrors.ErrCodeCartItemNotFound, appErr.Code)

	mockCartRepo.AssertExpectations(t)
}

func TestRemoveItem_Success(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, mockSessionRepo := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	identity := models.Identity{UserID: &userID, SessionToken: uuid.NewString()}
	cart := &models.Cart{ID: uuid.New(), UserID: &userID}
	product := &models.Product{ID: 7, Name: "Шашлык из свинины", Price: decimal.NewFromInt(250)}
	existing := &models.CartItem{ID: 5, CartID: cart.ID, ProductID: 7, Quantity: 2, Product: product}

	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	mockCartRepo.On("GetItem", ctx, cart.ID, int64(5)).Return(existing, nil).Once()
	mockCartRepo.On("DeleteItem", ctx, cart.ID, int64(5)).Return(nil).Once()
	mockCartRepo.On("ListItems", ctx, cart.ID).Return([]models.CartItem{}, nil).Twice()
	mockCartRepo.On("UpdateTotal", ctx, cart.ID, decimal.Zero).Return(nil).Once()
	mockSessionRepo.On("AddItemCount", ctx, identity.SessionToken, int64(-2)).Return(nil).Once()

	// Act
	view, err := cartService.RemoveItem(ctx, identity, 5)

	// Assert
	assert.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.Equal(t, int64(0), view.ItemCount)
	assert.True(t, view.TotalPrice.IsZero())

	mockCartRepo.AssertExpectations(t)
	mockSessionRepo.AssertExpectations(t)
}

func TestRemoveItem_NotFound(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), UserID: &userID}

	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	mockCartRepo.On("GetItem", ctx, cart.ID, int64(9)).Return(nil, sql.ErrNoRows).Once()

	// Act
	view, err := cartService.RemoveItem(ctx, models.Identity{UserID: &userID}, 9)

	// Assert
	assert.Error(t, err)
	assert.Nil(t, view)
	appErr, ok := err.(*appErrors.AppError)
	assert.True(t, ok)
	assert.Equal(t, appErrors.ErrCodeCartItemNotFound, appErr.Code)

	mockCartRepo.AssertExpectations(t)
}

func TestGetCart_ViewMatchesItems(t *testing.T) {
	// Arrange
	cartService, mockCartRepo, _, _ := setupCartServiceTest(t)
	ctx := context.Background()
	userID := uuid.New()
	cart := &models.Cart{ID: uuid.New(), UserID: &userID, TotalPrice: decimal.NewFromInt(600)}
	productA := &models.Product{ID: 1, Name: "A", Price: decimal.NewFromInt(250)}
	productB := &models.Product{ID: 2, Name: "B", Price: decimal.NewFromInt(100)}
	items := []models.CartItem{
		{ID: 1, CartID: cart.ID, ProductID: 1, Quantity: 2, Product: productA},
		{ID: 2, CartID: cart.ID, ProductID: 2, Quantity: 1, Product: productB},
	}

	mockCartRepo.On("GetCartByUserID", ctx, userID).Return(cart, nil).Once()
	mockCartRepo.On("ListItems", ctx, cart.ID).Return(items, nil).Once()

	// Act
	view, err := cartService.GetCart(ctx, models.Identity{UserID: &userID})

	// Assert
	assert.NoError(t, err)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, int64(3), view.ItemCount)
	assert.True(t, view.TotalPrice.Equal(decimal.NewFromInt(600)))
	assert.True(t, view.Items[0].LineTotal.Equal(decimal.NewFromInt(500)))
	assert.True(t, view.Items[1].LineTotal.Equal(decimal.NewFromInt(100)))

	mockCartRepo.AssertExpectations(t)
}
