package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/security"
)

// Transitioner moves a locked booking to a new status inside an existing
// transaction and records the audit event. Payments use it to confirm a
// booking in the same transaction that completes its payment.
type Transitioner struct {
	repo     Repository
	recorder *Recorder
}

func NewTransitioner(repo Repository, recorder *Recorder) *Transitioner {
	return &Transitioner{repo: repo, recorder: recorder}
}

// Apply validates the edge and persists it. booking is updated in place.
func (t *Transitioner) Apply(ctx context.Context, tx *gorm.DB, booking *models.Booking, target enums.BookingStatus, actor auth.Principal, payload map[string]any, at time.Time) error {
	from := booking.Status
	if !from.CanTransitionTo(target) {
		return ErrInvalidTransition(from, target)
	}
	if err := t.repo.WithTx(tx).UpdateStatus(ctx, booking.ID, target); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
	}
	booking.Status = target
	if payload == nil {
		payload = map[string]any{}
	}
	payload["from"] = string(from)
	if err := t.recorder.Record(ctx, tx, booking, enums.BookingEventKindFor(target), actor, payload, at); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record booking transition")
	}
	return nil
}

// ErrInvalidTransition is returned for any edge the state machine forbids.
func ErrInvalidTransition(from, to enums.BookingStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot modify this booking").
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

// IsReviewable reports whether a booking may receive a review: it is
// completed, or still confirmed with its check-out already past.
func IsReviewable(booking models.Booking, now time.Time) bool {
	switch booking.Status {
	case enums.BookingStatusCompleted:
		return true
	case enums.BookingStatusConfirmed:
		return booking.CheckOut.Before(now)
	default:
		return false
	}
}

func (s *service) Transition(ctx context.Context, actor auth.Principal, id uuid.UUID, target enums.BookingStatus, reason string) (*models.Booking, error) {
	switch target {
	case enums.BookingStatusConfirmed:
		return s.Confirm(ctx, actor, id)
	case enums.BookingStatusCancelled:
		return s.Cancel(ctx, actor, id, reason)
	case enums.BookingStatusCompleted:
		return s.Complete(ctx, actor, id)
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported target status %q", target).
			WithDetails(map[string]string{"status": "must be one of confirmed, cancelled, completed"})
	}
}

func (s *service) Confirm(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Booking, error) {
	return s.transition(ctx, actor, id, enums.BookingStatusConfirmed, nil)
}

func (s *service) Cancel(ctx context.Context, actor auth.Principal, id uuid.UUID, reason string) (*models.Booking, error) {
	cleaned, err := cleanRequired("reason", reason, s.cancelReasonLimit())
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, enums.BookingStatusCancelled, map[string]any{"reason": cleaned})
}

func (s *service) Complete(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Booking, error) {
	return s.transition(ctx, actor, id, enums.BookingStatusCompleted, nil)
}

func (s *service) transition(ctx context.Context, actor auth.Principal, id uuid.UUID, target enums.BookingStatus, payload map[string]any) (*models.Booking, error) {
	now := s.now().UTC()
	var result *models.Booking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := repo.LockByID(ctx, id)
		if err != nil {
			return mapLookupError(err, "booking")
		}
		chalet, err := repo.FindChalet(ctx, booking.ChaletID)
		if err != nil {
			return mapLookupError(err, "chalet")
		}
		if err := s.authorizeTransition(actor, booking, chalet, target, now); err != nil {
			return err
		}
		if !booking.Status.CanTransitionTo(target) {
			return ErrInvalidTransition(booking.Status, target)
		}
		if target == enums.BookingStatusCompleted && now.Before(booking.CheckOut) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking cannot be completed before check-out").
				WithDetails(map[string]string{"check_out": availability.FormatDate(booking.CheckOut)})
		}
		if err := NewTransitioner(s.repo, s.recorder).Apply(ctx, tx, booking, target, actor, payload, now); err != nil {
			return err
		}
		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithBookingID(ctx, result.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"status":     string(result.Status),
		"actor_role": string(actor.Role),
	})
	s.logg.Info(logCtx, "booking status changed")
	return result, nil
}

// authorizeTransition applies the role rules for each target. Owners and
// admins may act at any time; customers may only cancel their own booking
// while check-in is further away than the cancel window.
func (s *service) authorizeTransition(actor auth.Principal, booking *models.Booking, chalet *models.Chalet, target enums.BookingStatus, now time.Time) error {
	if actor.IsAdmin() || actor.IsSystem() {
		return nil
	}
	if actor.IsOwner() && chalet.IsOwnedBy(actor.UserID) {
		return nil
	}
	if actor.IsCustomer() && booking.CustomerID == actor.UserID && target == enums.BookingStatusCancelled {
		if booking.CheckIn.After(now.Add(s.cfg.CustomerCancelWindow)) {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "booking can no longer be cancelled by the customer").
			WithDetails(map[string]string{"check_in": availability.FormatDate(booking.CheckIn)})
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to modify this booking")
}

func (s *service) cancelReasonLimit() int {
	if s.cfg.CancelReasonMaxLength > 0 {
		return s.cfg.CancelReasonMaxLength
	}
	return 500
}

func cleanRequired(field, value string, maxLen int) (string, error) {
	cleaned, err := security.Sanitize(value, maxLen)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" rejected").
			WithDetails(map[string]string{field: err.Error()})
	}
	if cleaned == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, field+" is required").
			WithDetails(map[string]string{field: "required"})
	}
	return cleaned, nil
}

func cleanOptional(field string, value *string, maxLen int) (*string, error) {
	if value == nil {
		return nil, nil
	}
	cleaned, err := security.Sanitize(*value, maxLen)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, field+" rejected").
			WithDetails(map[string]string{field: err.Error()})
	}
	if cleaned == "" {
		return nil, nil
	}
	return &cleaned, nil
}
