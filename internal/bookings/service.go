// Package bookings implements the booking lifecycle: creation under a
// per-chalet lock, the pending -> confirmed -> completed state machine with
// cancellation, visibility rules and the append-only audit trail.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/internal/bookingnumber"
	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/config"
	"github.com/angelmondragon/chalets-backend/pkg/db"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/metrics"
	"github.com/angelmondragon/chalets-backend/pkg/pagination"
)

const (
	bookingNumberConstraint = "bookings_booking_number_key"
	noOverlapConstraint     = "bookings_no_overlap"
	specialRequestsMaxLen   = 1000
	extraNameMaxLen         = 255
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the booking lifecycle operations.
type Service interface {
	CheckAvailability(ctx context.Context, chaletID uuid.UUID, stay availability.Range) (bool, error)
	Create(ctx context.Context, actor auth.Principal, input CreateInput, opts CreateOptions) (*models.Booking, error)
	Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Booking, error)
	GetByNumber(ctx context.Context, actor auth.Principal, number string) (*models.Booking, error)
	Details(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Details, error)
	List(ctx context.Context, actor auth.Principal, filter ListFilter, page pagination.Params) (pagination.Result[models.Booking], error)
	Transition(ctx context.Context, actor auth.Principal, id uuid.UUID, target enums.BookingStatus, reason string) (*models.Booking, error)
	Confirm(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Booking, error)
	Cancel(ctx context.Context, actor auth.Principal, id uuid.UUID, reason string) (*models.Booking, error)
	Complete(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Booking, error)
	DueForCompletion(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// CreateInput describes a booking request. CustomerID is only honoured for
// admins booking on a customer's behalf.
type CreateInput struct {
	ChaletID        uuid.UUID
	CustomerID      *uuid.UUID
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	Extras          []ExtraInput
	SpecialRequests *string
}

type ExtraInput struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// CreateOptions holds call-site choices for Create. AsConfirmed skips the
// pending state and creates the booking already confirmed.
type CreateOptions struct {
	AsConfirmed bool
}

// Details is a booking with its extras and audit trail.
type Details struct {
	Booking     models.Booking
	Extras      []models.BookingExtra
	ExtrasTotal decimal.Decimal
	Events      []models.BookingEvent
}

// ServiceParams wires the booking service.
type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Checker    *availability.Checker
	Numbers    *bookingnumber.Generator
	Recorder   *Recorder
	Metrics    *metrics.BookingMetrics
	Logger     *logger.Logger
	Config     config.BookingConfig
	Now        func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	checker  *availability.Checker
	numbers  *bookingnumber.Generator
	recorder *Recorder
	metrics  *metrics.BookingMetrics
	logg     *logger.Logger
	cfg      config.BookingConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Checker == nil {
		return nil, fmt.Errorf("availability checker required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("booking recorder required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	// Numbers carry the year of the service clock.
	numbers := params.Numbers
	if numbers == nil {
		numbers = bookingnumber.New(bookingnumber.WithMaxAttempts(params.Config.NumberMaxAttempts))
	}
	numbers = numbers.With(bookingnumber.WithClock(now))
	return &service{
		repo:     params.Repository,
		tx:       params.Tx,
		checker:  params.Checker,
		numbers:  numbers,
		recorder: params.Recorder,
		metrics:  params.Metrics,
		logg:     logg,
		cfg:      params.Config,
		now:      now,
	}, nil
}

func (s *service) CheckAvailability(ctx context.Context, chaletID uuid.UUID, stay availability.Range) (bool, error) {
	if err := stay.Validate(); err != nil {
		return false, err
	}
	if _, err := s.repo.FindChalet(ctx, chaletID); err != nil {
		return false, mapLookupError(err, "chalet")
	}
	return s.checker.IsAvailable(ctx, chaletID, stay)
}

func (s *service) Create(ctx context.Context, actor auth.Principal, input CreateInput, opts CreateOptions) (*models.Booking, error) {
	customerID, err := resolveCustomer(actor, input.CustomerID)
	if err != nil {
		return nil, err
	}
	stay, err := availability.NewRange(input.CheckIn, input.CheckOut)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if stay.CheckIn.Before(availability.Day(now)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "check_in cannot be in the past").
			WithDetails(map[string]string{"check_in": availability.FormatDate(stay.CheckIn)})
	}
	if input.Guests < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guests must be at least 1").
			WithDetails(map[string]string{"guests": "must be >= 1"})
	}
	special, err := cleanOptional("special_requests", input.SpecialRequests, specialRequestsMaxLen)
	if err != nil {
		return nil, err
	}
	extras, err := buildExtras(input.Extras)
	if err != nil {
		return nil, err
	}

	status := enums.BookingStatusPending
	if opts.AsConfirmed {
		status = enums.BookingStatusConfirmed
	}

	var created *models.Booking
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		chalet, err := repo.LockChalet(ctx, input.ChaletID)
		if err != nil {
			return mapLookupError(err, "chalet")
		}
		if !chalet.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "chalet is not available for booking")
		}
		if input.Guests > chalet.MaxGuests {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "guest count exceeds the maximum of %d", chalet.MaxGuests).
				WithDetails(map[string]any{"guests": input.Guests, "max_guests": chalet.MaxGuests})
		}
		free, err := s.checker.InTx(tx, chalet.ID, stay, nil)
		if err != nil {
			return err
		}
		if !free {
			return errDatesTaken()
		}

		nights := stay.Nights()
		booking := &models.Booking{
			ChaletID:        chalet.ID,
			CustomerID:      customerID,
			CheckIn:         stay.CheckIn,
			CheckOut:        stay.CheckOut,
			Guests:          input.Guests,
			TotalAmount:     chalet.NightlyPrice.Mul(decimal.NewFromInt(int64(nights))).Round(2),
			DiscountAmount:  decimal.Zero,
			Status:          status,
			SpecialRequests: special,
		}
		if err := s.insertWithNumber(ctx, tx, booking); err != nil {
			return err
		}
		for i := range extras {
			extras[i].ID = uuid.New()
			extras[i].BookingID = booking.ID
		}
		if err := repo.InsertExtras(ctx, extras); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert booking extras")
		}
		payload := map[string]any{
			"nights":         nights,
			"nightly_price":  chalet.NightlyPrice.StringFixed(2),
			"total_amount":   booking.TotalAmount.StringFixed(2),
			"chalet_name":    chalet.Name,
			"guests":         booking.Guests,
			"initial_status": string(status),
		}
		if err := s.recorder.Record(ctx, tx, booking, enums.BookingEventCreated, actor, payload, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record booking creation")
		}
		created = booking
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			s.metrics.BookingConflict()
		}
		return nil, err
	}

	s.metrics.BookingCreated(string(created.Status))
	logCtx := s.logg.WithBookingID(ctx, created.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"booking_number": created.BookingNumber,
		"chalet_id":      created.ChaletID.String(),
		"status":         string(created.Status),
	})
	s.logg.Info(logCtx, "booking created")
	return created, nil
}

// insertWithNumber mints a booking number and inserts the row. A number that
// is already taken, whether seen by the pre-check or by the unique
// constraint, costs one of the generator's attempts. Each insert runs in a
// savepoint so a failed one does not abort the surrounding transaction.
func (s *service) insertWithNumber(ctx context.Context, tx *gorm.DB, booking *models.Booking) error {
	repo := s.repo.WithTx(tx)
	_, err := s.numbers.Generate(ctx, func(ctx context.Context, number string) (bool, error) {
		taken, err := repo.NumberExists(ctx, number)
		if err != nil || taken {
			return taken, err
		}
		booking.ID = uuid.New()
		booking.BookingNumber = number
		err = tx.Transaction(func(inner *gorm.DB) error {
			return s.repo.WithTx(inner).Insert(ctx, booking)
		})
		switch {
		case err == nil:
			return false, nil
		case db.IsUniqueViolation(err, bookingNumberConstraint):
			s.logg.Warn(s.logg.WithField(ctx, "booking_number", number), "booking number collision; retrying")
			return true, nil
		case db.IsExclusionViolation(err, noOverlapConstraint):
			return false, errDatesTaken()
		default:
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert booking")
		}
	})
	return err
}

func (s *service) Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "booking")
	}
	if err := s.authorizeView(ctx, actor, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) GetByNumber(ctx context.Context, actor auth.Principal, number string) (*models.Booking, error) {
	booking, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		return nil, mapLookupError(err, "booking")
	}
	if err := s.authorizeView(ctx, actor, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) Details(ctx context.Context, actor auth.Principal, id uuid.UUID) (*Details, error) {
	booking, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	extras, err := s.repo.Extras(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking extras")
	}
	events, err := s.repo.Events(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking events")
	}
	total := decimal.Zero
	for _, extra := range extras {
		total = total.Add(extra.Total())
	}
	return &Details{Booking: *booking, Extras: extras, ExtrasTotal: total, Events: events}, nil
}

func (s *service) List(ctx context.Context, actor auth.Principal, filter ListFilter, page pagination.Params) (pagination.Result[models.Booking], error) {
	page = page.Normalize()
	filter.CustomerID, filter.OwnerID = nil, nil
	switch {
	case actor.IsAdmin():
	case actor.IsOwner():
		filter.OwnerID = &actor.UserID
	case actor.IsCustomer():
		filter.CustomerID = &actor.UserID
	default:
		return pagination.Result[models.Booking]{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to list bookings")
	}
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[models.Booking]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
	}
	return pagination.NewResult(rows, page, total), nil
}

func (s *service) DueForCompletion(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = pagination.MaxPerPage
	}
	ids, err := s.repo.DueForCompletion(ctx, availability.Day(s.now().UTC()), limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings due for completion")
	}
	return ids, nil
}

func (s *service) authorizeView(ctx context.Context, actor auth.Principal, booking *models.Booking) error {
	switch {
	case actor.IsAdmin(), actor.IsSystem():
		return nil
	case actor.IsCustomer():
		if booking.CustomerID == actor.UserID {
			return nil
		}
	case actor.IsOwner():
		chalet, err := s.repo.FindChalet(ctx, booking.ChaletID)
		if err != nil {
			return mapLookupError(err, "chalet")
		}
		if chalet.IsOwnedBy(actor.UserID) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this booking")
}

func resolveCustomer(actor auth.Principal, requested *uuid.UUID) (uuid.UUID, error) {
	switch {
	case actor.IsCustomer():
		return actor.UserID, nil
	case actor.IsAdmin():
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "customer_id is required").
				WithDetails(map[string]string{"customer_id": "required"})
		}
		return *requested, nil
	default:
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can make bookings")
	}
}

func buildExtras(inputs []ExtraInput) ([]models.BookingExtra, error) {
	extras := make([]models.BookingExtra, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("extras[%d]", i)
		name, err := cleanRequired(field+".name", in.Name, extraNameMaxLen)
		if err != nil {
			return nil, err
		}
		if in.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "extra price must be >= 0").
				WithDetails(map[string]string{field + ".price": "must be >= 0"})
		}
		if in.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "extra quantity must be >= 1").
				WithDetails(map[string]string{field + ".quantity": "must be >= 1"})
		}
		extras = append(extras, models.BookingExtra{Name: name, Price: in.Price.Round(2), Quantity: in.Quantity})
	}
	return extras, nil
}

func errDatesTaken() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "chalet is not available for the selected dates")
}

func mapLookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
