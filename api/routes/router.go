package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/helpdesk-billing/api/controllers"
	billingcontrollers "github.com/angelmondragon/helpdesk-billing/api/controllers/billing"
	"github.com/angelmondragon/helpdesk-billing/api/middleware"
	"github.com/angelmondragon/helpdesk-billing/internal/entitlements"
	"github.com/angelmondragon/helpdesk-billing/internal/notifications"
	"github.com/angelmondragon/helpdesk-billing/internal/plans"
	subsvc "github.com/angelmondragon/helpdesk-billing/internal/subscriptions"
	"github.com/angelmondragon/helpdesk-billing/pkg/config"
	"github.com/angelmondragon/helpdesk-billing/pkg/enums"
	"github.com/angelmondragon/helpdesk-billing/pkg/logger"
	pkgredis "github.com/angelmondragon/helpdesk-billing/pkg/redis"
)

// Dependencies carries the services the HTTP surface is built from.
type Dependencies struct {
	Config        *config.Config
	Logger        *logger.Logger
	Pingers       map[string]controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	Gatherer      prometheus.Gatherer
	Plans         plans.Service
	Subscriptions subsvc.Service
	Resolver      entitlements.Resolver
	Overrides     entitlements.OverrideService
	Usage         billingcontrollers.UsageReader
	Guard         billingcontrollers.Authorizer
	Notifications notifications.Service
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg := deps.Config, deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	if len(cfg.App.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.App.CORSOrigins))
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.TenantContext(logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/billing", func(r chi.Router) {
			r.Get("/plans", billingcontrollers.TenantPlansList(deps.Plans, logg))
			r.Get("/subscription", billingcontrollers.SubscriptionFetch(deps.Subscriptions, logg))
			r.Get("/entitlements", billingcontrollers.EntitlementsFetch(deps.Resolver, logg))
			r.Get("/usage", billingcontrollers.UsageFetch(deps.Usage, logg))

			// plan changes are limited to tenant owners and admins
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.MemberRoleOwner, enums.MemberRoleAdmin))
				r.Post("/upgrade", billingcontrollers.SubscriptionUpgrade(deps.Subscriptions, logg))
				r.Post("/checkout", billingcontrollers.SubscriptionCheckout(deps.Subscriptions, logg))
				r.Post("/cancel", billingcontrollers.SubscriptionCancel(deps.Subscriptions, logg))
			})
		})

		r.Post("/entitlements/authorize", billingcontrollers.EntitlementsAuthorize(deps.Guard, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.MemberRolePlatformAdmin))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", billingcontrollers.AdminPlansList(deps.Plans, logg))
			r.Post("/", billingcontrollers.AdminPlanCreate(deps.Plans, logg))
			r.Put("/{planId}", billingcontrollers.AdminPlanUpdate(deps.Plans, logg))
		})

		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			r.Get("/override", billingcontrollers.AdminOverrideFetch(deps.Overrides, logg))
			r.Put("/override", billingcontrollers.AdminOverrideUpsert(deps.Overrides, logg))
			r.Delete("/override", billingcontrollers.AdminOverrideDelete(deps.Overrides, logg))
			r.Post("/subscription", billingcontrollers.AdminSubscriptionProvision(deps.Subscriptions, logg))
		})
	})

	return r
}
