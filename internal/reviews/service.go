// Package reviews lets customers review a stay once it is reviewable and
// lets admins approve reviews for publication.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/internal/bookings"
	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/security"
)

const (
	commentMaxLength = 1000
	uniqueBookingKey = "reviews_booking_id_key"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Create(ctx context.Context, actor auth.Principal, bookingID uuid.UUID, input CreateInput) (*models.Review, error)
	Approve(ctx context.Context, actor auth.Principal, reviewID uuid.UUID) (*models.Review, error)
	ListForChalet(ctx context.Context, chaletID uuid.UUID) ([]models.Review, error)
}

type CreateInput struct {
	Rating  int
	Comment *string
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repository, tx: params.Tx, logg: logg, now: now}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Principal, bookingID uuid.UUID, input CreateInput) (*models.Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid rating").
			WithDetails(map[string]string{"rating": "must be between 1 and 5"})
	}
	comment, err := cleanComment(input.Comment)
	if err != nil {
		return nil, err
	}

	booking, err := s.repo.FindBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
	}
	if !actor.IsCustomer() || booking.CustomerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the booking's customer can review it")
	}
	if !bookings.IsReviewable(*booking, s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "booking cannot be reviewed yet").
			WithDetails(map[string]string{"status": string(booking.Status)})
	}

	review := &models.Review{
		ID:         uuid.New(),
		ChaletID:   booking.ChaletID,
		CustomerID: booking.CustomerID,
		BookingID:  booking.ID,
		Rating:     input.Rating,
		Comment:    comment,
	}
	if err := s.repo.Insert(ctx, review); err != nil {
		if db.IsUniqueViolation(err, uniqueBookingKey) || db.IsUniqueViolation(err, "reviews.booking_id") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "booking already reviewed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert review")
	}

	logCtx := s.logg.WithBookingID(ctx, booking.ID.String())
	s.logg.Info(s.logg.WithField(logCtx, "rating", input.Rating), "review submitted")
	return review, nil
}

func (s *service) Approve(ctx context.Context, actor auth.Principal, reviewID uuid.UUID) (*models.Review, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	var review *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
		}
		if !locked.IsApproved {
			if err := repo.Approve(ctx, locked.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve review")
			}
			locked.IsApproved = true
		}
		review = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "review_id", review.ID.String()), "review approved")
	return review, nil
}

func (s *service) ListForChalet(ctx context.Context, chaletID uuid.UUID) ([]models.Review, error) {
	reviews, err := s.repo.ListApproved(ctx, chaletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return reviews, nil
}

func cleanComment(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	cleaned, err := security.Sanitize(*value, commentMaxLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "comment rejected").
			WithDetails(map[string]string{"comment": err.Error()})
	}
	if cleaned == "" {
		return nil, nil
	}
	return &cleaned, nil
}
