package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bbqhouse/storefront/internal/api/middleware"
	appErrors "github.com/bbqhouse/storefront/internal/errors"
	"github.com/bbqhouse/storefront/internal/metrics"
	"github.com/bbqhouse/storefront/internal/models"
	"github.com/bbqhouse/storefront/internal/notify"
	repository "github.com/bbqhouse/storefront/internal/repositories"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nyaruka/phonenumbers"
)

const notifyTimeout = 10 * time.Second

type CheckoutService struct {
	orders      repository.OrderRepository
	carts       repository.CartRepository
	sessions    repository.SessionRepository
	notifier    notify.Notifier
	sanitizer   *bluemonday.Policy
	phoneRegion string
}

func NewCheckoutService(orders repository.OrderRepository, carts repository.CartRepository, sessions repository.SessionRepository, notifier notify.Notifier, phoneRegion string) *CheckoutService {
	return &CheckoutService{
		orders:      orders,
		carts:       carts,
		sessions:    sessions,
		notifier:    notifier,
		sanitizer:   bluemonday.StrictPolicy(),
		phoneRegion: phoneRegion,
	}
}

// Checkout converts the resolved cart into an immutable order. The order
// insert and the cart delete run in one transaction; the notification is
// dispatched after commit and can never undo the order.
func (s *CheckoutService) Checkout(ctx context.Context, identity models.Identity, cart *models.Cart, req *models.CheckoutRequest) (*models.Order, error) {

	logger := middleware.LoggerFromContext(ctx)

	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart items").WithError(err)
	}

	if len(items) == 0 {
		return nil, appErrors.EmptyCartError("Cart is empty")
	}

	shippingAddress := s.sanitizer.Sanitize(strings.TrimSpace(req.ShippingAddress))
	phoneNumber := strings.TrimSpace(req.PhoneNumber)
	message := s.sanitizer.Sanitize(strings.TrimSpace(req.Message))

	if shippingAddress == "" {
		return nil, appErrors.ValidationError("Shipping address is required")
	}

	if phoneNumber == "" {
		return nil, appErrors.ValidationError("Phone number is required")
	}

	parsed, err := phonenumbers.Parse(phoneNumber, s.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return nil, appErrors.ValidationError("Invalid phone number")
	}

	order := &models.Order{
		UserID:          identity.UserID,
		Products:        itemSummary(items),
		Status:          models.OrderStatusPending,
		TotalPrice:      cart.TotalPrice, // exactly what the visitor last saw
		ShippingAddress: shippingAddress,
		PhoneNumber:     phonenumbers.Format(parsed, phonenumbers.E164),
		Message:         message,
	}

	if err := s.orders.CreateOrderFromCart(ctx, order, cart.ID); err != nil {
		return nil, appErrors.DatabaseError("Failed to create order").WithError(err)
	}

	metrics.OrdersCreated.Inc()
	logger.Info("Order created", slog.Int64("orderId", order.ID), slog.String("cartId", cart.ID.String()))

	s.clearSession(ctx, identity)

	// Post-commit, fire-and-forget. The order stands whatever happens here.
	go s.sendNotification(context.WithoutCancel(ctx), identity, order)

	return order, nil
}

// itemSummary flattens the cart into the order's human-readable products
// string, e.g. "Шашлык из свинины: 2 шт, Лепёшка: 1 шт". Items arrive
// ordered by id, so the summary is deterministic.
func itemSummary(items []models.CartItem) string {

	parts := make([]string, 0, len(items))

	for i := range items {
		parts = append(parts, fmt.Sprintf("%s: %d шт", items[i].Product.Name, items[i].Quantity))
	}

	return strings.Join(parts, ", ")
}

func (s *CheckoutService) clearSession(ctx context.Context, identity models.Identity) {

	if identity.SessionToken == "" {
		return
	}

	if err := s.sessions.Clear(ctx, identity.SessionToken); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to clear session after checkout",
			slog.String("error", err.Error()))
	}
}

func (s *CheckoutService) sendNotification(ctx context.Context, identity models.Identity, order *models.Order) {

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	text := fmt.Sprintf(
		"Имя: %s\nНомер заказа: %d\nТелефон: %s\nАдрес: %s\nЗаказ: %s\nОбщая сумма: %s",
		identity.Label(), order.ID, order.PhoneNumber, order.ShippingAddress,
		order.Products, order.TotalPrice.StringFixed(2),
	)

	if err := s.notifier.Notify(ctx, text); err != nil {
		metrics.NotificationFailures.Inc()
		slog.Error("Failed to send order notification",
			slog.Int64("orderId", order.ID),
			slog.String("error", err.Error()))
	}
}

func (s *CheckoutService) GetOrder(ctx context.Context, identity models.Identity, id int64) (*models.Order, error) {

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFoundError("Order not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to fetch order").WithError(err)
	}

	// Orders placed by a registered user are only visible to that user.
	if order.UserID != nil && (identity.UserID == nil || *order.UserID != *identity.UserID) {
		return nil, appErrors.ForbiddenError("You don't have permission to access this order")
	}

	return order, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID models.Identity, page, size int) ([]models.Order, int, error) {

	if !userID.Authenticated() {
		return nil, 0, appErrors.UnauthorizedError("Authentication required")
	}

	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 10
	}

	orders, total, err := s.orders.ListOrdersByUser(ctx, *userID.UserID, page, size)
	if err != nil {
		return nil, 0, appErrors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return orders, total, nil
}

// ListOrdersByPhone is the guest lookup: orders matching the phone number
// with no owning user. No further proof of ownership is required, which
// is a deliberate convenience trade-off.
func (s *CheckoutService) ListOrdersByPhone(ctx context.Context, phoneNumber string) ([]models.Order, error) {

	parsed, err := phonenumbers.Parse(strings.TrimSpace(phoneNumber), s.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return nil, appErrors.ValidationError("Invalid phone number")
	}

	orders, err := s.orders.ListOrdersByPhone(ctx, phonenumbers.Format(parsed, phonenumbers.E164))
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to fetch orders").WithError(err)
	}

	return orders, nil
}
