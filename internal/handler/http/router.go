package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alex-rublevsky/rublevsky-studio/internal/domain"
	"github.com/alex-rublevsky/rublevsky-studio/internal/service"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/health"
	"github.com/alex-rublevsky/rublevsky-studio/pkg/middleware"
)

// Services bundles the business services the router exposes.
type Services struct {
	Products *service.ProductService
	Catalog  *service.CatalogService
	Blog     *service.BlogService
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Orders   *service.OrderService
	Auth     *service.AuthService
}

// RouterConfig holds the HTTP-level settings.
type RouterConfig struct {
	ServiceName    string
	CORSOrigins    []string
	PprofCIDRs     []string
	RequestTimeout time.Duration
	// CatalogMaxAge is the Cache-Control max-age of public catalog reads.
	CatalogMaxAge time.Duration
	// Per-IP limits for checkout and auth endpoints.
	RateLimitPerMinute int
	RateLimitBurst     int
}

// NewRouter creates a chi router with all storefront and admin routes
// registered. ctx bounds background work such as rate-limiter cleanup.
func NewRouter(
	ctx context.Context,
	svcs Services,
	validateToken middleware.TokenValidator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))

	// Infra endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	productHandler := NewProductHandler(svcs.Products, logger)
	catalogHandler := NewCatalogHandler(svcs.Catalog, logger)
	adminCatalog := catalogHandler.Admin()
	blogHandler := NewBlogHandler(svcs.Blog, logger)
	cartHandler := NewCartHandler(svcs.Cart, logger)
	checkoutHandler := NewCheckoutHandler(svcs.Checkout, logger)
	orderHandler := NewOrderHandler(svcs.Orders, logger)
	authHandler := NewAuthHandler(svcs.Auth, logger)

	limit := middleware.RateLimit(ctx, cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(chimw.Compress(5, "application/json"))
		if cfg.RequestTimeout > 0 {
			r.Use(chimw.Timeout(cfg.RequestTimeout))
		}

		// Storefront catalog (public, cacheable)
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(cfg.CatalogMaxAge))

			r.Get("/products", productHandler.ListProducts)
			r.Get("/products/{slug}", productHandler.GetProduct)
			r.Get("/attributes", productHandler.ListAttributes)

			r.Get("/categories", catalogHandler.ListCategories)
			r.Get("/categories/{slug}", catalogHandler.GetCategory)
			r.Get("/brands", catalogHandler.ListBrands)
			r.Get("/brands/{slug}", catalogHandler.GetBrand)
			r.Get("/tea-categories", catalogHandler.ListTeaCategories)

			r.Get("/blog", blogHandler.ListPublished)
			r.Get("/blog/{slug}", blogHandler.GetPublished)
		})

		// Cart (guest, keyed by X-Cart-ID)
		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(CartID)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Get("/validate", cartHandler.Validate)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{productId}", cartHandler.RemoveItem)
		})

		r.With(middleware.NoStore, limit, middleware.OptionalAuth(validateToken), CartID).
			Post("/checkout", checkoutHandler.Checkout)

		// Accounts
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.With(limit).Post("/register", authHandler.Register)
			r.With(limit).Post("/login", authHandler.Login)
			r.With(middleware.Auth(validateToken)).Get("/me", authHandler.Me)
		})

		// Dashboard
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(middleware.Auth(validateToken))
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", productHandler.AdminListProducts)
				r.Post("/", productHandler.CreateProduct)
				r.Get("/{id}", productHandler.AdminGetProduct)
				r.Put("/{id}", productHandler.UpdateProduct)
				r.Delete("/{id}", productHandler.DeleteProduct)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", adminCatalog.ListCategories)
				r.Post("/", adminCatalog.CreateCategory)
				r.Get("/{slug}", adminCatalog.GetCategory)
				r.Put("/{slug}", adminCatalog.UpdateCategory)
				r.Delete("/{slug}", adminCatalog.DeleteCategory)
			})

			r.Route("/brands", func(r chi.Router) {
				r.Get("/", adminCatalog.ListBrands)
				r.Post("/", adminCatalog.CreateBrand)
				r.Get("/{slug}", adminCatalog.GetBrand)
				r.Put("/{slug}", adminCatalog.UpdateBrand)
				r.Delete("/{slug}", adminCatalog.DeleteBrand)
			})

			r.Route("/tea-categories", func(r chi.Router) {
				r.Get("/", adminCatalog.ListTeaCategories)
				r.Post("/", adminCatalog.CreateTeaCategory)
				r.Get("/{slug}", adminCatalog.GetTeaCategory)
				r.Put("/{slug}", adminCatalog.UpdateTeaCategory)
				r.Delete("/{slug}", adminCatalog.DeleteTeaCategory)
			})

			r.Route("/blog", func(r chi.Router) {
				r.Get("/", blogHandler.ListAll)
				r.Post("/", blogHandler.Create)
				r.Get("/{id}", blogHandler.GetByID)
				r.Put("/{id}", blogHandler.Update)
				r.Delete("/{id}", blogHandler.Delete)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.ListOrders)
				r.Get("/{id}", orderHandler.GetOrder)
				r.Patch("/{id}/status", orderHandler.UpdateStatus)
				r.Post("/{id}/cancel", orderHandler.CancelOrder)
			})
		})
	})

	return r
}
