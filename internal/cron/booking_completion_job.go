package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

const defaultCompletionBatch = 100

type bookingCompleter interface {
	DueForCompletion(ctx context.Context, limit int) ([]uuid.UUID, error)
	Complete(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Booking, error)
}

type BookingCompletionJobParams struct {
	Logger   *logger.Logger
	Bookings bookingCompleter
	Batch    int
}

// NewBookingCompletionJob completes confirmed bookings whose check-out has
// passed.
func NewBookingCompletionJob(params BookingCompletionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("bookings service required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultCompletionBatch
	}
	return &bookingCompletionJob{logg: params.Logger, bookings: params.Bookings, batch: batch}, nil
}

type bookingCompletionJob struct {
	logg     *logger.Logger
	bookings bookingCompleter
	batch    int
}

func (j *bookingCompletionJob) Name() string { return "booking-completion" }

func (j *bookingCompletionJob) Run(ctx context.Context) error {
	ids, err := j.bookings.DueForCompletion(ctx, j.batch)
	if err != nil {
		return fmt.Errorf("list bookings due: %w", err)
	}
	system := auth.SystemPrincipal()
	var (
		completed int
		skipped   int
		errs      error
	)
	for _, id := range ids {
		if _, err := j.bookings.Complete(ctx, system, id); err != nil {
			// Cancelled or completed by someone else since the listing.
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				skipped++
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("complete booking %s: %w", id, err))
			continue
		}
		completed++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"due":       len(ids),
		"completed": completed,
		"skipped":   skipped,
	})
	j.logg.Info(logCtx, "booking completion sweep finished")
	return errs
}
