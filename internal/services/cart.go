package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/bbqhouse/storefront/internal/api/middleware"
	appErrors "github.com/bbqhouse/storefront/internal/errors"
	"github.com/bbqhouse/storefront/internal/metrics"
	"github.com/bbqhouse/storefront/internal/models"
	repository "github.com/bbqhouse/storefront/internal/repositories"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartService struct {
	carts    repository.CartRepository
	products repository.ProductRepository
	sessions repository.SessionRepository
}

func NewCartService(carts repository.CartRepository, products repository.ProductRepository, sessions repository.SessionRepository) *CartService {
	return &CartService{carts: carts, products: products, sessions: sessions}
}

// Resolution is the outcome of resolving the current cart: the cart
// itself, and whether it had to be created on the way.
type Resolution struct {
	Cart    *models.Cart
	Created bool
}

// Resolve returns the visitor's cart, creating one when none exists.
// It never fails with "not found": a registered user without a cart gets
// a fresh one bound to them, and an anonymous session whose stored cart
// id points nowhere (e.g. the cart was consumed by a checkout) is healed
// with a new empty cart written back to the session store.
func (s *CartService) Resolve(ctx context.Context, identity models.Identity) (*Resolution, error) {

	if identity.Authenticated() {
		return s.resolveUserCart(ctx, *identity.UserID)
	}

	return s.resolveGuestCart(ctx, identity.SessionToken)
}

func (s *CartService) resolveUserCart(ctx context.Context, userID uuid.UUID) (*Resolution, error) {

	cart, err := s.carts.GetCartByUserID(ctx, userID)
	if err == nil {
		return &Resolution{Cart: cart}, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.DatabaseError("Failed to resolve cart").WithError(err)
	}

	cart = &models.Cart{
		ID:         uuid.New(),
		UserID:     &userID,
		TotalPrice: decimal.Zero,
	}

	if err := s.carts.CreateCart(ctx, cart); err != nil {

		// Two first requests from the same new user can race here; the
		// unique index on user_id makes the loser re-read the winner's cart.
		if repository.IsUniqueViolation(err) {
			cart, err = s.carts.GetCartByUserID(ctx, userID)
			if err != nil {
				return nil, appErrors.DatabaseError("Failed to resolve cart").WithError(err)
			}

			return &Resolution{Cart: cart}, nil
		}

		return nil, appErrors.DatabaseError("Failed to create cart").WithError(err)
	}

	return &Resolution{Cart: cart, Created: true}, nil
}

func (s *CartService) resolveGuestCart(ctx context.Context, token string) (*Resolution, error) {

	logger := middleware.LoggerFromContext(ctx)

	if token != "" {
		cartID, found, err := s.sessions.CartID(ctx, token)
		if err != nil {
			return nil, appErrors.DatabaseError("Failed to resolve cart").WithError(err)
		}

		if found {
			cart, err := s.carts.GetCartByID(ctx, cartID)
			if err == nil {
				return &Resolution{Cart: cart}, nil
			}

			if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.DatabaseError("Failed to resolve cart").WithError(err)
			}

			// dangling cart id, fall through and heal
			logger.Info("Session cart no longer exists, creating a new one", slog.String("cartId", cartID.String()))
		}
	}

	cart := &models.Cart{
		ID:         uuid.New(),
		TotalPrice: decimal.Zero,
	}

	if err := s.carts.CreateCart(ctx, cart); err != nil {
		return nil, appErrors.DatabaseError("Failed to create cart").WithError(err)
	}

	if token != "" {
		if err := s.sessions.SetCartID(ctx, token, cart.ID); err != nil {
			// The cart exists; the worst case is the next request healing
			// again with another empty cart.
			logger.Warn("Failed to bind cart to session", slog.String("cartId", cart.ID.String()), slog.String("error", err.Error()))
		}
	}

	return &Resolution{Cart: cart, Created: true}, nil
}

func (s *CartService) GetCart(ctx context.Context, identity models.Identity) (*models.CartView, error) {

	res, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	return s.view(ctx, res.Cart)
}

func (s *CartService) AddItem(ctx context.Context, identity models.Identity, req *models.AddItemRequest) (*models.CartView, error) {

	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if quantity < 1 {
		return nil, appErrors.InvalidQuantityError("Quantity must be at least 1")
	}

	if _, err := s.products.GetProductByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ProductNotFoundError("Product not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to look up product").WithError(err)
	}

	res, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	if _, err := s.carts.UpsertItem(ctx, res.Cart.ID, req.ProductID, quantity); err != nil {
		return nil, appErrors.DatabaseError("Failed to add item to cart").WithError(err)
	}

	s.refreshTotal(ctx, res.Cart)
	s.addBadgeCount(ctx, identity, quantity)

	return s.view(ctx, res.Cart)
}

func (s *CartService) UpdateItem(ctx context.Context, identity models.Identity, itemID int64, req *models.UpdateItemRequest) (*models.CartView, error) {

	// Zero or negative is rejected, not treated as removal.
	if req.Quantity < 1 {
		return nil, appErrors.InvalidQuantityError("Quantity must be at least 1")
	}

	res, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	item, err := s.carts.GetItem(ctx, res.Cart.ID, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.CartItemNotFoundError("Cart item not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to look up cart item").WithError(err)
	}

	if err := s.carts.UpdateItemQuantity(ctx, res.Cart.ID, itemID, req.Quantity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.CartItemNotFoundError("Cart item not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to update cart item").WithError(err)
	}

	s.refreshTotal(ctx, res.Cart)
	s.addBadgeCount(ctx, identity, req.Quantity-item.Quantity)

	return s.view(ctx, res.Cart)
}

func (s *CartService) RemoveItem(ctx context.Context, identity models.Identity, itemID int64) (*models.CartView, error) {

	res, err := s.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}

	item, err := s.carts.GetItem(ctx, res.Cart.ID, itemID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.CartItemNotFoundError("Cart item not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to look up cart item").WithError(err)
	}

	if err := s.carts.DeleteItem(ctx, res.Cart.ID, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.CartItemNotFoundError("Cart item not found").WithError(err)
		}

		return nil, appErrors.DatabaseError("Failed to remove cart item").WithError(err)
	}

	s.refreshTotal(ctx, res.Cart)
	s.addBadgeCount(ctx, identity, -item.Quantity)

	return s.view(ctx, res.Cart)
}

// refreshTotal recomputes the denormalized cart total from the current
// items and persists it. It never fails the caller: the mutation that
// triggered it has already committed, so a failure here only leaves the
// cached total stale. Failures are logged and counted.
func (s *CartService) refreshTotal(ctx context.Context, cart *models.Cart) {

	logger := middleware.LoggerFromContext(ctx)

	items, err := s.carts.ListItems(ctx, cart.ID)
	if err == nil {
		var total decimal.Decimal

		total, err = ComputeTotal(items)
		if err == nil {
			err = s.carts.UpdateTotal(ctx, cart.ID, total)
			if err == nil {
				cart.TotalPrice = total
				return
			}
		}
	}

	metrics.CartRecomputeFailures.Inc()
	logger.Error("Failed to recompute cart total",
		slog.String("cartId", cart.ID.String()),
		slog.String("error", err.Error()))
}

// addBadgeCount keeps the session's display-only item counter roughly in
// step with the cart. Best effort; never fails the mutation.
func (s *CartService) addBadgeCount(ctx context.Context, identity models.Identity, delta int64) {

	if identity.SessionToken == "" || delta == 0 {
		return
	}

	if err := s.sessions.AddItemCount(ctx, identity.SessionToken, delta); err != nil {
		middleware.LoggerFromContext(ctx).Warn("Failed to update session item count",
			slog.String("error", err.Error()))
	}
}

func (s *CartService) view(ctx context.Context, cart *models.Cart) (*models.CartView, error) {

	items, err := s.carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, appErrors.DatabaseError("Failed to load cart items").WithError(err)
	}

	views := make([]models.CartItemView, 0, len(items))

	for i := range items {
		item := &items[i]

		views = append(views, models.CartItemView{
			ID:        item.ID,
			Product:   item.Product,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		})
	}

	return &models.CartView{
		ID:         cart.ID,
		Items:      views,
		ItemCount:  ItemCount(items),
		TotalPrice: cart.TotalPrice,
		CreatedAt:  cart.CreatedAt,
	}, nil
}
