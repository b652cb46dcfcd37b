package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/chalets-backend/api/controllers"
	"github.com/angelmondragon/chalets-backend/api/middleware"
	"github.com/angelmondragon/chalets-backend/internal/bookings"
	"github.com/angelmondragon/chalets-backend/internal/chalets"
	"github.com/angelmondragon/chalets-backend/internal/payments"
	"github.com/angelmondragon/chalets-backend/internal/refunds"
	"github.com/angelmondragon/chalets-backend/internal/reviews"
	"github.com/angelmondragon/chalets-backend/pkg/config"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the HTTP surface dispatches to.
type Dependencies struct {
	DB          pinger
	Redis       pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer

	Chalets  chalets.Service
	Bookings bookings.Service
	Payments payments.Service
	Refunds  refunds.Service
	Reviews  reviews.Service
	Webhooks controllers.WebhookProcessor
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, deps.Redis, logg))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	createOpts := bookings.CreateOptions{AsConfirmed: cfg.Booking.CreateAsConfirmed}
	staff := []enums.Role{enums.RoleOwner, enums.RoleAdmin}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/payments", controllers.PaymentWebhook(deps.Webhooks, cfg.Webhooks.SignatureHeader, logg))
		r.Get("/payments/callback", controllers.PaymentCallback(deps.Payments, logg))

		r.Get("/chalets", controllers.ChaletList(deps.Chalets, logg))
		r.Get("/chalets/{id}", controllers.ChaletGet(deps.Chalets, logg))
		r.Get("/chalets/{id}/availability", controllers.ChaletAvailability(deps.Bookings, logg))
		r.Get("/chalets/{id}/reviews", controllers.ChaletReviews(deps.Reviews, logg))

		// Groups keep the middleware at the endpoint, where the full route
		// pattern is known to the idempotency rules.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, staff...))
				r.Post("/chalets", controllers.ChaletCreate(deps.Chalets, logg))
				r.Patch("/chalets/{id}", controllers.ChaletUpdate(deps.Chalets, logg))
				r.Delete("/chalets/{id}", controllers.ChaletDelete(deps.Chalets, logg))
				r.Post("/chalets/{id}/deactivate", controllers.ChaletDeactivate(deps.Chalets, logg))
			})

			r.Post("/bookings", controllers.BookingCreate(deps.Bookings, createOpts, logg))
			r.Get("/bookings", controllers.BookingList(deps.Bookings, logg))
			r.Get("/bookings/{id}", controllers.BookingGet(deps.Bookings, logg))
			r.Get("/bookings/number/{number}", controllers.BookingGetByNumber(deps.Bookings, logg))
			r.Post("/bookings/{id}/transition", controllers.BookingTransition(deps.Bookings, logg))

			r.Post("/bookings/{id}/payments", controllers.PaymentInitiate(deps.Payments, logg))
			r.Get("/payments", controllers.PaymentList(deps.Payments, logg))
			r.Get("/payments/{id}", controllers.PaymentGet(deps.Payments, logg))

			r.Post("/payments/{id}/refunds", controllers.RefundCreate(deps.Refunds, logg))
			r.Get("/payments/{id}/refunds", controllers.RefundHistory(deps.Refunds, logg))
			r.Get("/refunds/policy", controllers.RefundPolicy(deps.Refunds, logg))

			r.With(middleware.RequireRole(logg, enums.RoleCustomer)).
				Post("/bookings/{id}/reviews", controllers.ReviewCreate(deps.Reviews, logg))
			r.With(middleware.RequireRole(logg, enums.RoleAdmin)).
				Post("/reviews/{id}/approve", controllers.ReviewApprove(deps.Reviews, logg))
		})
	})

	return r
}
