package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aoinlabs/storefront-backend/api/controllers"
	"github.com/aoinlabs/storefront-backend/api/middleware"
	"github.com/aoinlabs/storefront-backend/internal/cart"
	checkoutsvc "github.com/aoinlabs/storefront-backend/internal/checkout"
	"github.com/aoinlabs/storefront-backend/internal/promotions"
	"github.com/aoinlabs/storefront-backend/pkg/config"
	"github.com/aoinlabs/storefront-backend/pkg/logger"
	"github.com/aoinlabs/storefront-backend/pkg/metrics"
	"github.com/aoinlabs/storefront-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       *redis.Client
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	CartService     cart.Service
	PromoService    promotions.Service
	CheckoutService checkoutsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(),
	)

	promoPolicy := middleware.NewRateLimitPolicy(
		"promo-apply",
		cfg.RateLimit.PromoWindow,
		cfg.RateLimit.PromoIPLimit,
		cfg.RateLimit.PromoUserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Idempotency must be attached per-route: chi only fills in the matched
	// route pattern for inline middleware, not for router-level ones.
	idem := middleware.Idempotency(deps.Redis, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.CartService, deps.PromoService, logg))
			r.With(idem).Delete("/", controllers.CartClear(deps.CartService, logg))
			r.With(idem).Post("/lines", controllers.CartAddLine(deps.CartService, logg))
			r.Patch("/lines/{productID}", controllers.CartSetQuantity(deps.CartService, logg))
			r.Delete("/lines/{productID}", controllers.CartRemoveLine(deps.CartService, logg))
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Get("/", controllers.PromotionCurrent(deps.PromoService, logg))
			r.With(middleware.RateLimit(promoPolicy, deps.Redis, logg), idem).
				Post("/apply", controllers.PromotionApply(deps.PromoService, logg))
			r.Delete("/", controllers.PromotionRemove(deps.PromoService, logg))
		})

		r.Get("/checkout/state", controllers.CheckoutState(deps.CheckoutService, logg))
		r.With(idem).Post("/checkout", controllers.Checkout(deps.CheckoutService, logg))
	})

	return r
}
