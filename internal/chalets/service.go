// Package chalets manages the chalet registry: listing, pricing, capacity
// and the delete guard that keeps booked chalets from disappearing.
package chalets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/pagination"
	"github.com/angelmondragon/chalets-backend/pkg/security"
)

const nameMaxLength = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines chalet registry operations.
type Service interface {
	Create(ctx context.Context, actor auth.Principal, input CreateInput) (*models.Chalet, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Chalet, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) (pagination.Result[models.Chalet], error)
	Update(ctx context.Context, actor auth.Principal, id uuid.UUID, input UpdateInput) (*models.Chalet, error)
	Deactivate(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Chalet, error)
	Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error
}

// CreateInput describes a new listing. OwnerID is only honoured for admins;
// owners always create listings for themselves.
type CreateInput struct {
	OwnerID      *uuid.UUID
	Name         string
	NightlyPrice decimal.Decimal
	MaxGuests    int
}

// UpdateInput carries the mutable fields; nil leaves a field untouched.
type UpdateInput struct {
	Name         *string
	NightlyPrice *decimal.Decimal
	MaxGuests    *int
	IsActive     *bool
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("chalets repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, tx: tx, logg: logg, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Principal, input CreateInput) (*models.Chalet, error) {
	ownerID, err := resolveOwner(actor, input.OwnerID)
	if err != nil {
		return nil, err
	}
	name, err := cleanName(input.Name)
	if err != nil {
		return nil, err
	}
	if err := validatePricing(input.NightlyPrice, input.MaxGuests); err != nil {
		return nil, err
	}

	chalet := &models.Chalet{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		Name:         name,
		NightlyPrice: input.NightlyPrice.Round(2),
		MaxGuests:    input.MaxGuests,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, chalet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create chalet")
	}
	s.logg.Info(s.logg.WithField(ctx, "chalet_id", chalet.ID.String()), "chalet created")
	return chalet, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Chalet, error) {
	chalet, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return chalet, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, page pagination.Params) (pagination.Result[models.Chalet], error) {
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[models.Chalet]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list chalets")
	}
	return pagination.NewResult(rows, page, total), nil
}

func (s *service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, input UpdateInput) (*models.Chalet, error) {
	var updated *models.Chalet
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		chalet, err := repo.LockByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		if err := authorizeManage(actor, chalet); err != nil {
			return err
		}
		if input.Name != nil {
			name, err := cleanName(*input.Name)
			if err != nil {
				return err
			}
			chalet.Name = name
		}
		if input.NightlyPrice != nil {
			chalet.NightlyPrice = input.NightlyPrice.Round(2)
		}
		if input.MaxGuests != nil {
			chalet.MaxGuests = *input.MaxGuests
		}
		if input.IsActive != nil {
			chalet.IsActive = *input.IsActive
		}
		if err := validatePricing(chalet.NightlyPrice, chalet.MaxGuests); err != nil {
			return err
		}
		if err := repo.Save(ctx, chalet); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update chalet")
		}
		updated = chalet
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "chalet_id", id.String()), "chalet updated")
	return updated, nil
}

func (s *service) Deactivate(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Chalet, error) {
	inactive := false
	return s.Update(ctx, actor, id, UpdateInput{IsActive: &inactive})
}

// Delete refuses while pending or confirmed bookings reference the chalet.
// Otherwise the chalet is deactivated and stamped deleted.
func (s *service) Delete(ctx context.Context, actor auth.Principal, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		chalet, err := repo.LockByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		if err := authorizeManage(actor, chalet); err != nil {
			return err
		}
		open, err := repo.CountOpenBookings(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count chalet bookings")
		}
		if open > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "chalet has active bookings").
				WithDetails(map[string]any{"active_bookings": open})
		}
		now := s.now().UTC()
		chalet.IsActive = false
		chalet.DeletedAt = &now
		if err := repo.Save(ctx, chalet); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete chalet")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "chalet_id", id.String()), "chalet deleted")
	return nil
}

func resolveOwner(actor auth.Principal, requested *uuid.UUID) (uuid.UUID, error) {
	switch {
	case actor.IsOwner():
		return actor.UserID, nil
	case actor.IsAdmin():
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "owner_id is required").
				WithDetails(map[string]string{"owner_id": "required"})
		}
		return *requested, nil
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "only owners can list chalets")
	}
}

func authorizeManage(actor auth.Principal, chalet *models.Chalet) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsOwner() && chalet.IsOwnedBy(actor.UserID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to manage this chalet")
}

func validatePricing(price decimal.Decimal, maxGuests int) error {
	details := map[string]string{}
	if price.IsNegative() {
		details["nightly_price"] = "must be >= 0"
	}
	if maxGuests < 1 {
		details["max_guests"] = "must be >= 1"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid chalet").WithDetails(details)
	}
	return nil
}

func cleanName(raw string) (string, error) {
	name, err := security.Sanitize(raw, nameMaxLength)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid chalet name").
			WithDetails(map[string]string{"name": err.Error()})
	}
	if name == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required").
			WithDetails(map[string]string{"name": "required"})
	}
	return name, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "chalet not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chalet")
}
