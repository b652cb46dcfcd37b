package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/internal/bookingnumber"
	"github.com/angelmondragon/chalets-backend/internal/bookings"
	"github.com/angelmondragon/chalets-backend/internal/cron"
	"github.com/angelmondragon/chalets-backend/internal/payments"
	"github.com/angelmondragon/chalets-backend/pkg/config"
	"github.com/angelmondragon/chalets-backend/pkg/db"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/outbox"
	"github.com/angelmondragon/chalets-backend/pkg/square"
)

// buildJobs wires the booking completion, payment sync and outbox retention
// jobs. Payment sync is only registered when a card gateway is configured.
func buildJobs(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) ([]cron.Job, error) {
	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	ob := outbox.NewService(outboxRepo, logg)

	bookingRepo := bookings.NewRepository(conn)
	bookingRecorder := bookings.NewRecorder(ob)
	bookingSvc, err := bookings.NewService(bookings.ServiceParams{
		Repository: bookingRepo,
		Tx:         dbClient,
		Checker:    availability.NewChecker(conn),
		Numbers:    bookingnumber.New(bookingnumber.WithMaxAttempts(cfg.Booking.NumberMaxAttempts)),
		Recorder:   bookingRecorder,
		Logger:     logg,
		Config:     cfg.Booking,
	})
	if err != nil {
		return nil, fmt.Errorf("bookings service: %w", err)
	}

	completion, err := cron.NewBookingCompletionJob(cron.BookingCompletionJobParams{
		Logger:   logg,
		Bookings: bookingSvc,
		Batch:    cfg.Cron.CompletionBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("booking completion job: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		Repository:    outboxRepo,
		RetentionDays: cfg.Outbox.RetentionDays,
		MinAttempts:   cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	jobs := []cron.Job{completion, retention}
	if !cfg.Payments.GatewayEnabled {
		logg.Info(ctx, "payment gateway disabled; skipping payment sync job")
		return jobs, nil
	}

	sqClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, fmt.Errorf("square client: %w", err)
	}
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repository: payments.NewRepository(conn),
		Tx:         dbClient,
		Recorder:   payments.NewRecorder(ob),
		Bookings:   bookings.NewTransitioner(bookingRepo, bookingRecorder),
		Gateway:    payments.NewSquareGateway(sqClient, nil),
		Logger:     logg,
		Config:     cfg.Payments,
	})
	if err != nil {
		return nil, fmt.Errorf("payments service: %w", err)
	}

	syncJob, err := cron.NewPaymentSyncJob(cron.PaymentSyncJobParams{
		Logger:   logg,
		Payments: paymentSvc,
		Batch:    cfg.Cron.PaymentSyncBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("payment sync job: %w", err)
	}
	return append(jobs, syncJob), nil
}
