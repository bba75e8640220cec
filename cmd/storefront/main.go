package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bbqhouse/storefront/internal/api/handlers"
	"github.com/bbqhouse/storefront/internal/api/middleware"
	"github.com/bbqhouse/storefront/internal/cache"
	"github.com/bbqhouse/storefront/internal/config"
	"github.com/bbqhouse/storefront/internal/health"
	"github.com/bbqhouse/storefront/internal/metrics"
	"github.com/bbqhouse/storefront/internal/notify"
	repository "github.com/bbqhouse/storefront/internal/repositories"
	service "github.com/bbqhouse/storefront/internal/services"
	"github.com/bbqhouse/storefront/internal/telemetry"
	"github.com/bbqhouse/storefront/pkg/email"
	"github.com/bbqhouse/storefront/pkg/telegram"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Tracing setup
	shutdownTracing, err := telemetry.Setup(context.Background(), &cfg.Telemetry)
	if err != nil {
		slog.Error("❌ Error setting up tracing", "error", err.Error())
		os.Exit(1)
	}

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the database", "error", err.Error())
		os.Exit(1)
	}

	// Redis setup
	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", "error", err.Error())
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("⚠️ Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Database connection closed")
		}
	}()

	sessionRepo := repository.NewSessionRepo(redisClient, cfg)
	cacheStore := cache.NewRedisCache(redisClient, &cfg.Cache)
	notifier := buildNotifier(cfg)

	catalogService := service.NewCatalogService(repos.Category, repos.Product, cacheStore, &cfg.Cache)
	categoryHandler := handlers.NewCategoryHandler(catalogService)
	productHandler := handlers.NewProductHandler(catalogService)
	cartService := service.NewCartService(repos.Cart, repos.Product, sessionRepo)
	cartHandler := handlers.NewCartHandler(cartService)
	checkoutService := service.NewCheckoutService(repos.Order, repos.Cart, sessionRepo, notifier, cfg.Checkout.PhoneRegion)
	orderHandler := handlers.NewOrderHandler(cartService, checkoutService)
	identityMiddleware := middleware.NewIdentityMiddleware([]byte(cfg.Security.JWTKey))

	healthHandler, err := health.NewHealthHandler(cfg)
	if err != nil {
		slog.Error("❌ Error setting up health checks", "error", err.Error())
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("GET /api/v1/categories", categoryHandler.ListCategories())
	routerMux.HandleFunc("POST /api/v1/categories", middleware.RequireUser(categoryHandler.CreateCategory()))
	routerMux.HandleFunc("PATCH /api/v1/categories/{id}", middleware.RequireUser(categoryHandler.UpdateCategory()))
	routerMux.HandleFunc("GET /api/v1/products", productHandler.ListProducts())
	routerMux.HandleFunc("POST /api/v1/products", middleware.RequireUser(productHandler.CreateProduct()))
	routerMux.HandleFunc("GET /api/v1/products/{id}", productHandler.GetProduct())
	routerMux.HandleFunc("PATCH /api/v1/products/{id}", middleware.RequireUser(productHandler.UpdateProduct()))
	routerMux.HandleFunc("GET /api/v1/cart", cartHandler.GetCart())
	routerMux.HandleFunc("POST /api/v1/cart/items", cartHandler.AddItem())
	routerMux.HandleFunc("PATCH /api/v1/cart/items/{id}", cartHandler.UpdateItem())
	routerMux.HandleFunc("DELETE /api/v1/cart/items/{id}", cartHandler.RemoveItem())
	routerMux.HandleFunc("POST /api/v1/checkout", orderHandler.Checkout())
	routerMux.HandleFunc("GET /api/v1/orders", orderHandler.ListOrders())
	routerMux.HandleFunc("GET /api/v1/orders/{id}", orderHandler.GetOrder())
	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = identityMiddleware.Resolve(handler)
	handler = metrics.Middleware(handler)
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "storefront")

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("❌ Failed to start server", slog.Any("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Tracing shutdown encountered an issue", slog.String("error", err.Error()))
	}

}

// buildNotifier assembles the order-notification fanout from whatever
// backends are configured. With nothing configured orders are still
// accepted, just not announced.
func buildNotifier(cfg *config.Config) notify.Notifier {

	var fanout notify.Fanout

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		fanout = append(fanout, telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}

	if cfg.SendGrid.APIKey != "" && cfg.SendGrid.OrdersEmail != "" {
		fanout = append(fanout, email.NewNotifier(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName, cfg.SendGrid.OrdersEmail))
	}

	if len(fanout) == 0 {
		return notify.Discard{}
	}

	return fanout
}
