package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

type pendingSyncer interface {
	SyncPending(ctx context.Context, limit int) (int, error)
}

type PaymentSyncJobParams struct {
	Logger   *logger.Logger
	Payments pendingSyncer
	Batch    int
}

// NewPaymentSyncJob asks the gateway about card payments left pending and
// applies the answer through the webhook path.
func NewPaymentSyncJob(params PaymentSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	return &paymentSyncJob{logg: params.Logger, payments: params.Payments, batch: params.Batch}, nil
}

type paymentSyncJob struct {
	logg     *logger.Logger
	payments pendingSyncer
	batch    int
}

func (j *paymentSyncJob) Name() string { return "payment-sync" }

func (j *paymentSyncJob) Run(ctx context.Context) error {
	updated, err := j.payments.SyncPending(ctx, j.batch)
	j.logg.Info(j.logg.WithField(ctx, "payments_updated", updated), "pending payment sync finished")
	if err != nil {
		return fmt.Errorf("sync pending payments: %w", err)
	}
	return nil
}
