package repository

import (
	"context"

	"github.com/bbqhouse/storefront/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// testify mocks for the repository interfaces, shared by the service and
// handler test suites.

type MockCartRepository struct {
	mock.Mock
}

func NewMockCartRepository() *MockCartRepository {
	return &MockCartRepository{}
}

func (m *MockCartRepository) CreateCart(ctx context.Context, cart *models.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *MockCartRepository) GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, id)
	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCartRepository) GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCartRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	args := m.Called(ctx, cartID)
	if items, ok := args.Get(0).([]models.CartItem); ok {
		return items, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCartRepository) GetItem(ctx context.Context, cartID uuid.UUID, itemID int64) (*models.CartItem, error) {
	args := m.Called(ctx, cartID, itemID)
	if item, ok := args.Get(0).(*models.CartItem); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCartRepository) UpsertItem(ctx context.Context, cartID uuid.UUID, productID, quantity int64) (*models.CartItem, error) {
	args := m.Called(ctx, cartID, productID, quantity)
	if item, ok := args.Get(0).(*models.CartItem); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCartRepository) UpdateItemQuantity(ctx context.Context, cartID uuid.UUID, itemID, quantity int64) error {
	args := m.Called(ctx, cartID, itemID, quantity)
	return args.Error(0)
}

func (m *MockCartRepository) DeleteItem(ctx context.Context, cartID uuid.UUID, itemID int64) error {
	args := m.Called(ctx, cartID, itemID)
	return args.Error(0)
}

func (m *MockCartRepository) UpdateTotal(ctx context.Context, cartID uuid.UUID, total decimal.Decimal) error {
	args := m.Called(ctx, cartID, total)
	return args.Error(0)
}

func (m *MockCartRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type MockProductRepository struct {
	mock.Mock
}

func NewMockProductRepository() *MockProductRepository {
	return &MockProductRepository{}
}

func (m *MockProductRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)
	if product, ok := args.Get(0).(*models.Product); ok {
		return product, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProductRepository) UpdateProduct(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockProductRepository) ListProducts(ctx context.Context, categoryID *int64, page, size int) ([]*models.Product, int, error) {
	args := m.Called(ctx, categoryID, page, size)
	if products, ok := args.Get(0).([]*models.Product); ok {
		return products, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

type MockCategoryRepository struct {
	mock.Mock
}

func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{}
}

func (m *MockCategoryRepository) CreateCategory(ctx context.Context, category *models.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCategoryRepository) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	args := m.Called(ctx, id)
	if category, ok := args.Get(0).(*models.Category); ok {
		return category, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCategoryRepository) ListCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if categories, ok := args.Get(0).([]models.Category); ok {
		return categories, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCategoryRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockCategoryRepository) UpdateCategory(ctx context.Context, category *models.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

type MockOrderRepository struct {
	mock.Mock
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{}
}

func (m *MockOrderRepository) CreateOrderFromCart(ctx context.Context, order *models.Order, cartID uuid.UUID) error {
	args := m.Called(ctx, order, cartID)
	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if order, ok := args.Get(0).(*models.Order); ok {
		return order, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]models.Order, int, error) {
	args := m.Called(ctx, userID, page, size)
	if orders, ok := args.Get(0).([]models.Order); ok {
		return orders, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}

func (m *MockOrderRepository) ListOrdersByPhone(ctx context.Context, phoneNumber string) ([]models.Order, error) {
	args := m.Called(ctx, phoneNumber)
	if orders, ok := args.Get(0).([]models.Order); ok {
		return orders, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSessionRepository struct {
	mock.Mock
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{}
}

func (m *MockSessionRepository) CartID(ctx context.Context, token string) (uuid.UUID, bool, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *MockSessionRepository) SetCartID(ctx context.Context, token string, cartID uuid.UUID) error {
	args := m.Called(ctx, token, cartID)
	return args.Error(0)
}

func (m *MockSessionRepository) AddItemCount(ctx context.Context, token string, delta int64) error {
	args := m.Called(ctx, token, delta)
	return args.Error(0)
}

func (m *MockSessionRepository) ItemCount(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRepository) Clear(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
