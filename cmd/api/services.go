package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/internal/bookingnumber"
	"github.com/angelmondragon/chalets-backend/internal/bookings"
	"github.com/angelmondragon/chalets-backend/internal/chalets"
	"github.com/angelmondragon/chalets-backend/internal/payments"
	"github.com/angelmondragon/chalets-backend/internal/refunds"
	"github.com/angelmondragon/chalets-backend/internal/reviews"
	"github.com/angelmondragon/chalets-backend/internal/webhooks"
	"github.com/angelmondragon/chalets-backend/pkg/config"
	"github.com/angelmondragon/chalets-backend/pkg/db"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/metrics"
	"github.com/angelmondragon/chalets-backend/pkg/outbox"
	"github.com/angelmondragon/chalets-backend/pkg/redis"
	"github.com/angelmondragon/chalets-backend/pkg/square"
)

const webhookScope = "payments"

type services struct {
	chalets  chalets.Service
	bookings bookings.Service
	payments payments.Service
	refunds  refunds.Service
	reviews  reviews.Service
	webhooks *webhooks.Processor
}

func buildServices(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*services, error) {
	conn := dbClient.DB()
	bookingMetrics := metrics.NewBookingMetrics(reg)
	ob := outbox.NewService(outbox.NewRepository(conn), logg)

	chaletSvc, err := chalets.NewService(chalets.NewRepository(conn), dbClient, logg)
	if err != nil {
		return nil, fmt.Errorf("chalets service: %w", err)
	}

	bookingRepo := bookings.NewRepository(conn)
	bookingRecorder := bookings.NewRecorder(ob)
	bookingSvc, err := bookings.NewService(bookings.ServiceParams{
		Repository: bookingRepo,
		Tx:         dbClient,
		Checker:    availability.NewChecker(conn),
		Numbers:    bookingnumber.New(bookingnumber.WithMaxAttempts(cfg.Booking.NumberMaxAttempts)),
		Recorder:   bookingRecorder,
		Metrics:    bookingMetrics,
		Logger:     logg,
		Config:     cfg.Booking,
	})
	if err != nil {
		return nil, fmt.Errorf("bookings service: %w", err)
	}

	var gateway payments.Gateway
	if cfg.Payments.GatewayEnabled {
		sqClient, err := square.NewClient(ctx, cfg.Square, logg)
		if err != nil {
			return nil, fmt.Errorf("square client: %w", err)
		}
		gateway = payments.NewSquareGateway(sqClient, bookingMetrics)
		logg.Info(logg.WithField(ctx, "square_env", sqClient.Environment()), "square gateway enabled")
	}

	paymentRepo := payments.NewRepository(conn)
	paymentRecorder := payments.NewRecorder(ob)
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repository: paymentRepo,
		Tx:         dbClient,
		Recorder:   paymentRecorder,
		Bookings:   bookings.NewTransitioner(bookingRepo, bookingRecorder),
		Gateway:    gateway,
		Metrics:    bookingMetrics,
		Logger:     logg,
		Config:     cfg.Payments,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	refundSvc, err := refunds.NewService(refunds.ServiceParams{
		Payments: paymentRepo,
		Tx:       dbClient,
		Recorder: paymentRecorder,
		Gateway:  gateway,
		Logger:   logg,
		Config:   cfg.Payments,
	})
	if err != nil {
		return nil, fmt.Errorf("refunds service: %w", err)
	}

	reviewSvc, err := reviews.NewService(reviews.ServiceParams{
		Repository: reviews.NewRepository(conn),
		Tx:         dbClient,
		Logger:     logg,
	})
	if err != nil {
		return nil, fmt.Errorf("reviews service: %w", err)
	}

	guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Webhooks.IdempotencyTTL, webhookScope)
	if err != nil {
		return nil, fmt.Errorf("webhook guard: %w", err)
	}
	processor, err := webhooks.NewProcessor(webhooks.ProcessorParams{
		Verifier: webhooks.NewVerifier(cfg.Square.WebhookSecret),
		Guard:    guard,
		Payments: paymentSvc,
		Metrics:  bookingMetrics,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook processor: %w", err)
	}

	return &services{
		chalets:  chaletSvc,
		bookings: bookingSvc,
		payments: paymentSvc,
		refunds:  refundSvc,
		reviews:  reviewSvc,
		webhooks: processor,
	}, nil
}
