package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solespace/solespace-backend/api/controllers"
	cartcontrollers "github.com/solespace/solespace-backend/api/controllers/cart"
	ordercontrollers "github.com/solespace/solespace-backend/api/controllers/orders"
	webhookcontrollers "github.com/solespace/solespace-backend/api/controllers/webhooks"
	"github.com/solespace/solespace-backend/api/middleware"
	"github.com/solespace/solespace-backend/internal/address"
	"github.com/solespace/solespace-backend/internal/cart"
	"github.com/solespace/solespace-backend/internal/checkout"
	"github.com/solespace/solespace-backend/internal/orders"
	"github.com/solespace/solespace-backend/internal/payments"
	"github.com/solespace/solespace-backend/internal/products"
	"github.com/solespace/solespace-backend/pkg/config"
	"github.com/solespace/solespace-backend/pkg/enums"
	"github.com/solespace/solespace-backend/pkg/logger"
	"github.com/solespace/solespace-backend/pkg/metrics"
	pkgredis "github.com/solespace/solespace-backend/pkg/redis"
)

// Dependencies carries everything the HTTP surface is wired to. Nil services
// still mount their routes and answer 500, so a partially configured
// environment boots.
type Dependencies struct {
	Pingers  map[string]controllers.Pinger
	Store    pkgredis.IdempotencyStore
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Products products.Service
	Cart     cart.Service
	Address  address.Service
	Checkout checkout.Service
	Orders   orders.Service
	Links    payments.LinkService
	Webhooks payments.WebhookService

	WebhookVerifier webhookcontrollers.SignatureVerifier
	WebhookGuard    *payments.WebhookGuard
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTP),
		middleware.CORS(cfg.Security),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		r.Handle(metricsPath(cfg), promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	var guard webhookcontrollers.IdempotencyGuard
	if deps.WebhookGuard != nil {
		guard = deps.WebhookGuard
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/csrf-token", middleware.CSRFToken(cfg.Security, cfg.App.IsProd(), logg))
		r.Get("/products", controllers.ProductList(deps.Products, logg))
		r.Get("/products/{productID}", controllers.ProductDetail(deps.Products, logg))
		r.Post("/webhooks/paymongo", webhookcontrollers.PayMongoWebhook(deps.Webhooks, deps.WebhookVerifier, guard, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.CSRF(cfg.Security, logg))
			r.Use(middleware.Idempotency(deps.Store, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.Get(deps.Cart, logg))
				r.Post("/add", cartcontrollers.Add(deps.Cart, logg))
				r.Post("/sync", cartcontrollers.Sync(deps.Cart, logg))
				r.Post("/update", cartcontrollers.Update(deps.Cart, logg))
				r.Post("/remove", cartcontrollers.Remove(deps.Cart, logg))
			})
			r.Route("/user/addresses", func(r chi.Router) {
				r.Get("/", controllers.AddressList(deps.Address, logg))
				r.Post("/", controllers.AddressCreate(deps.Address, logg))
				r.Put("/{addressID}", controllers.AddressUpdate(deps.Address, logg))
				r.Delete("/{addressID}", controllers.AddressDelete(deps.Address, logg))
			})
			r.Post("/checkout/create-order", controllers.CheckoutCreateOrder(deps.Checkout, logg))
			r.Post("/paymongo-proxy", controllers.PaymentLinkCreate(deps.Links, logg))
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderID}", ordercontrollers.Get(deps.Orders, logg))
				r.Post("/{orderID}/update-payment-link", ordercontrollers.AttachPaymentLink(deps.Orders, logg))
			})

			r.Route("/admin/orders", func(r chi.Router) {
				r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
				r.Post("/{orderID}/status", ordercontrollers.AdvanceStatus(deps.Orders, logg))
			})
		})
	})

	// The storefront posts order actions outside the /api prefix.
	r.Route("/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.CSRF(cfg.Security, logg))
		r.Use(middleware.Idempotency(deps.Store, logg))
		r.Post("/cancel", ordercontrollers.Cancel(deps.Orders, logg))
		r.Post("/confirm-delivery", ordercontrollers.ConfirmDelivery(deps.Orders, logg))
	})

	return r
}

func metricsPath(cfg *config.Config) string {
	if cfg.Metrics.Path == "" {
		return "/metrics"
	}
	return cfg.Metrics.Path
}
