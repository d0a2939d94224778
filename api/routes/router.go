package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/foodmarketplace/api/controllers"
	"github.com/angelmondragon/foodmarketplace/api/middleware"
	"github.com/angelmondragon/foodmarketplace/internal/catalog"
	"github.com/angelmondragon/foodmarketplace/internal/checkout"
	"github.com/angelmondragon/foodmarketplace/pkg/config"
	"github.com/angelmondragon/foodmarketplace/pkg/db"
	"github.com/angelmondragon/foodmarketplace/pkg/logger"
	"github.com/angelmondragon/foodmarketplace/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	opener controllers.CartOpener,
	catalogService catalog.Service,
	checkoutService checkout.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	deps := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		deps["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", controllers.ListProducts(catalogService, logg))
		r.Get("/products/{productId}", controllers.GetProduct(catalogService, logg))
		r.Get("/categories", controllers.ListCategories(catalogService, logg))

		if cfg.Admin.Enabled() {
			r.Group(func(r chi.Router) {
				r.Use(middleware.AdminAuth(cfg.Admin, logg))
				r.Post("/products", controllers.CreateProduct(catalogService, logg))
				r.Put("/products/{productId}", controllers.PutProduct(catalogService, logg))
				r.Delete("/products/{productId}", controllers.DeactivateProduct(catalogService, logg))
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.CartSession(middleware.SessionOptions{
				CookieName: cfg.Cart.CookieName,
				MaxAge:     cfg.Cart.KeyTTL,
				Secure:     cfg.App.IsProd(),
			}, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.GetCart(opener, logg))
				r.Delete("/", controllers.ClearCart(opener, logg))
				r.Post("/lines", controllers.AddCartLine(opener, catalogService, logg))
				r.Put("/lines/{lineId}", controllers.UpdateCartLine(opener, logg))
				r.Delete("/lines/{lineId}", controllers.RemoveCartLine(opener, logg))
				r.Post("/toggle", controllers.ToggleCart(opener, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", controllers.BeginCheckout(opener, checkoutService, logg))
				r.Post("/pay", controllers.PayCheckout(opener, checkoutService, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(checkoutService, logg))
				r.Get("/{orderId}", controllers.GetOrder(checkoutService, logg))
				r.Get("/{orderId}/receipt", controllers.GetReceipt(checkoutService, logg))
				r.Get("/{orderId}/receipt/qr.png", controllers.GetReceiptQR(checkoutService, logg))
			})
		})
	})

	return r
}
