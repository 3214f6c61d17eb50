package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/spenzahq/webhook-relay/api/controllers"
	"github.com/spenzahq/webhook-relay/api/middleware"
	"github.com/spenzahq/webhook-relay/internal/auth"
	"github.com/spenzahq/webhook-relay/internal/ingest"
	"github.com/spenzahq/webhook-relay/internal/subscriptions"
	"github.com/spenzahq/webhook-relay/pkg/config"
	"github.com/spenzahq/webhook-relay/pkg/logger"
)

// Deps bundles everything the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            controllers.Pinger
	Redis         controllers.Pinger
	AuthService   auth.Service
	IngestService ingest.Service
	Subscriptions subscriptions.Service
	Migrate       controllers.MigrateDeps
	Metrics       http.Handler
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	if cfg.App.IsDev() {
		r.Get("/debug/info", controllers.DebugInfo(cfg, logg, map[string]controllers.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(deps.AuthService, logg))
		r.Post("/login", controllers.Login(deps.AuthService, logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		// ingress is unauthenticated: source systems hold only the subscription id
		r.Post("/{subscriptionId}/events", controllers.IngestWebhook(deps.IngestService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Post("/", controllers.CreateSubscription(deps.Subscriptions, logg))
			r.Get("/", controllers.ListSubscriptions(deps.Subscriptions, logg))
			r.Get("/events/failed", controllers.ListFailedEvents(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}", controllers.GetSubscription(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}/events", controllers.ListSubscriptionEvents(deps.Subscriptions, logg))
			r.Post("/{subscriptionId}/cancel", controllers.CancelSubscription(deps.Subscriptions, logg))
			r.Delete("/{subscriptionId}", controllers.DeleteSubscription(deps.Subscriptions, logg))
		})
	})

	r.Route("/api/admin/v1/migrate", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/deploy", controllers.MigrateDeploy(deps.Migrate, logg))
		r.Get("/status", controllers.MigrateStatus(deps.Migrate, logg))
	})

	return r
}
