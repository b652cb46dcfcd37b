// Package payments reconciles payments against bookings: exact-amount
// initiation per method, the gateway checkpoint flow, idempotent webhook
// application and the pending-payment sync.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/internal/bookings"
	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/config"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/metrics"
	"github.com/angelmondragon/chalets-backend/pkg/money"
	"github.com/angelmondragon/chalets-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the payment reconciliation operations.
type Service interface {
	Initiate(ctx context.Context, actor auth.Principal, input InitiateInput) (*Result, error)
	Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, actor auth.Principal, filter ListFilter, page pagination.Params) (pagination.Result[models.Payment], error)
	ApplyWebhook(ctx context.Context, event WebhookEvent) (bool, error)
	SyncPending(ctx context.Context, limit int) (int, error)
	Callback(ctx context.Context, externalID string) (*models.Payment, error)
}

type InitiateInput struct {
	BookingID uuid.UUID
	Amount    decimal.Decimal
	Method    Method
}

// Result is the outcome of Initiate. RedirectURL is set when the gateway
// hands back a page for the customer to finish the charge.
type Result struct {
	Payment     models.Payment
	RedirectURL string
}

type ServiceParams struct {
	Repository Repository
	Tx         txRunner
	Recorder   *Recorder
	Bookings   *bookings.Transitioner
	Cards      CardAuthorizer
	// Gateway handles card payments when set; otherwise Cards decides them.
	Gateway Gateway
	Metrics *metrics.BookingMetrics
	Logger  *logger.Logger
	Config  config.PaymentsConfig
	Now     func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	recorder *Recorder
	bookings *bookings.Transitioner
	cards    CardAuthorizer
	gateway  Gateway
	metrics  *metrics.BookingMetrics
	logg     *logger.Logger
	cfg      config.PaymentsConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking transitioner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cards := params.Cards
	if cards == nil {
		cards = NewLocalAuthorizer(now)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	cfg := params.Config
	if cfg.Currency == "" {
		cfg.Currency = "SAR"
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	return &service{
		repo:     params.Repository,
		tx:       params.Tx,
		recorder: params.Recorder,
		bookings: params.Bookings,
		cards:    cards,
		gateway:  params.Gateway,
		metrics:  params.Metrics,
		logg:     logg,
		cfg:      cfg,
		now:      now,
	}, nil
}

func (s *service) Initiate(ctx context.Context, actor auth.Principal, input InitiateInput) (*Result, error) {
	if input.Method == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment_method is required").
			WithDetails(map[string]string{"payment_method": "is required"})
	}
	now := s.now().UTC()
	if err := input.Method.Validate(now); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
			WithDetails(map[string]string{"amount": "must be greater than 0"})
	}

	if card, ok := input.Method.(CreditCard); ok && s.gateway != nil {
		return s.initiateWithGateway(ctx, actor, input, card, now)
	}
	return s.initiateOffline(ctx, actor, input, now)
}

// initiateOffline creates, processes and settles the payment in one
// transaction. A processing error rolls back the pending row.
func (s *service) initiateOffline(ctx context.Context, actor auth.Principal, input InitiateInput, now time.Time) (*Result, error) {
	var payment *models.Payment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := s.checkPayable(ctx, repo, actor, input.BookingID, input.Amount)
		if err != nil {
			return err
		}
		payment, err = s.insertPending(ctx, tx, booking, input, actor, now)
		if err != nil {
			return err
		}

		outcome, err := input.Method.process(ctx, processEnv{cards: s.cards, now: now}, payment.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "payment processing failed")
		}
		return s.settle(ctx, tx, payment, outcome, actor, now)
	})
	if err != nil {
		return nil, err
	}
	s.afterInitiate(ctx, payment)
	return &Result{Payment: *payment}, nil
}

// initiateWithGateway commits the pending row first, calls the gateway with
// no transaction open and then records what the gateway reported. A gateway
// failure leaves the payment pending for the sync job or a webhook.
func (s *service) initiateWithGateway(ctx context.Context, actor auth.Principal, input InitiateInput, card CreditCard, now time.Time) (*Result, error) {
	if card.SourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"source_id": "is required"})
	}

	var (
		payment       *models.Payment
		bookingNumber string
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		booking, err := s.checkPayable(ctx, repo, actor, input.BookingID, input.Amount)
		if err != nil {
			return err
		}
		bookingNumber = booking.BookingNumber
		payment, err = s.insertPending(ctx, tx, booking, input, actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	charge, chargeErr := s.gateway.Charge(callCtx, ChargeRequest{
		PaymentID:     payment.ID,
		AmountMinor:   money.ToMinorUnits(payment.Amount),
		Currency:      payment.Currency,
		SourceID:      card.SourceID,
		BookingNumber: bookingNumber,
	})
	if chargeErr != nil {
		logCtx := s.logg.WithPaymentID(ctx, payment.ID.String())
		s.logg.Error(logCtx, "payment gateway charge failed", chargeErr)
		recordErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.recorder.Record(ctx, tx, payment, enums.PaymentEventGatewayError, actor,
				map[string]any{"error": gatewayErrorLabel(chargeErr)}, s.now())
		})
		if recordErr != nil {
			s.logg.Error(logCtx, "record gateway error", recordErr)
		}
		s.metrics.Payment(string(payment.Method), "gateway_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, chargeErr, "payment gateway unavailable")
	}

	var result Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
		}
		payment = locked
		if payment.Status != enums.PaymentStatusPending {
			// a webhook got here first
			result = Result{Payment: *payment, RedirectURL: charge.RedirectURL}
			return nil
		}
		details := map[string]any{
			"gateway":          "square",
			"gateway_status":   charge.RawStatus,
			"card_last_four":   card.LastFour(),
			"gateway_payment":  charge.ExternalID,
			"amount_minor":     money.ToMinorUnits(payment.Amount),
			"gateway_response": string(charge.Status),
		}
		outcome := Outcome{Status: charge.Status, ExternalID: charge.ExternalID, Details: details}
		if charge.Status == enums.PaymentStatusFailed {
			outcome.FailureReason = "declined by gateway: " + charge.RawStatus
		}
		if charge.RedirectURL != "" {
			redirect := charge.RedirectURL
			payment.RedirectURL = &redirect
		}
		if err := s.settle(ctx, tx, payment, outcome, actor, s.now().UTC()); err != nil {
			return err
		}
		result = Result{Payment: *payment, RedirectURL: charge.RedirectURL}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterInitiate(ctx, payment)
	return &result, nil
}

func (s *service) checkPayable(ctx context.Context, repo Repository, actor auth.Principal, bookingID uuid.UUID, amount decimal.Decimal) (*models.Booking, error) {
	booking, err := repo.LockBooking(ctx, bookingID)
	if err != nil {
		return nil, mapLookupError(err, "booking")
	}
	if !actor.IsAdmin() && !(actor.IsCustomer() && booking.CustomerID == actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to pay for this booking")
	}
	if booking.Status != enums.BookingStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payments are only accepted for confirmed bookings").
			WithDetails(map[string]string{"status": string(booking.Status)})
	}
	due := booking.AmountDue()
	if !amount.Equal(due) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the booking total").
			WithDetails(map[string]string{"amount": amount.StringFixed(2), "expected": due.StringFixed(2)})
	}
	paid, err := repo.HasCompleted(ctx, booking.ID, uuid.Nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payments")
	}
	if paid {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "booking is already paid")
	}
	return booking, nil
}

func (s *service) insertPending(ctx context.Context, tx *gorm.DB, booking *models.Booking, input InitiateInput, actor auth.Principal, now time.Time) (*models.Payment, error) {
	payment := &models.Payment{
		ID:        uuid.New(),
		BookingID: booking.ID,
		Method:    input.Method.Kind(),
		Amount:    input.Amount.Round(2),
		Currency:  s.cfg.Currency,
		Status:    enums.PaymentStatusPending,
	}
	if err := s.repo.WithTx(tx).Insert(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment")
	}
	payload := map[string]any{
		"method":   string(payment.Method),
		"amount":   payment.Amount.StringFixed(2),
		"currency": payment.Currency,
	}
	if err := s.recorder.Record(ctx, tx, payment, enums.PaymentEventInitiated, actor, payload, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment initiation")
	}
	return payment, nil
}

// settle stores a processing outcome on a pending payment and appends the
// matching audit event.
func (s *service) settle(ctx context.Context, tx *gorm.DB, payment *models.Payment, outcome Outcome, actor auth.Principal, now time.Time) error {
	payment.Status = outcome.Status
	if outcome.ExternalID != "" {
		external := outcome.ExternalID
		payment.ExternalID = &external
	}
	if len(outcome.Details) > 0 {
		raw, err := json.Marshal(outcome.Details)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment details")
		}
		payment.Details = raw
	}
	if outcome.FailureReason != "" {
		reason := outcome.FailureReason
		payment.FailureReason = &reason
	}
	if outcome.Status == enums.PaymentStatusCompleted {
		paidAt := now.UTC()
		payment.PaidAt = &paidAt
	}
	if err := s.repo.WithTx(tx).Save(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}

	payload := map[string]any{"status": string(payment.Status)}
	if outcome.ExternalID != "" {
		payload["transaction_id"] = outcome.ExternalID
	}
	if outcome.FailureReason != "" {
		payload["failure_reason"] = outcome.FailureReason
	}
	if err := s.recorder.Record(ctx, tx, payment, eventKindForOutcome(outcome.Status), actor, payload, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment outcome")
	}
	if err := s.recorder.Announce(ctx, tx, payment, actor, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payment event")
	}
	return nil
}

func (s *service) afterInitiate(ctx context.Context, payment *models.Payment) {
	s.metrics.Payment(string(payment.Method), string(payment.Status))
	logCtx := s.logg.WithPaymentID(ctx, payment.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"booking_id": payment.BookingID.String(),
		"method":     string(payment.Method),
		"status":     string(payment.Status),
	})
	s.logg.Info(logCtx, "payment initiated")
}

func (s *service) Get(ctx context.Context, actor auth.Principal, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err, "payment")
	}
	booking, err := s.repo.FindBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, mapLookupError(err, "booking")
	}
	switch {
	case actor.IsAdmin(), actor.IsSystem():
		return payment, nil
	case actor.IsCustomer() && booking.CustomerID == actor.UserID:
		return payment, nil
	case actor.IsOwner():
		chalet, err := s.repo.FindChalet(ctx, booking.ChaletID)
		if err != nil {
			return nil, mapLookupError(err, "chalet")
		}
		if chalet.IsOwnedBy(actor.UserID) {
			return payment, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this payment")
}

func (s *service) List(ctx context.Context, actor auth.Principal, filter ListFilter, page pagination.Params) (pagination.Result[models.Payment], error) {
	page = page.Normalize()
	filter.CustomerID, filter.OwnerID = nil, nil
	switch {
	case actor.IsAdmin():
	case actor.IsOwner():
		filter.OwnerID = &actor.UserID
	case actor.IsCustomer():
		filter.CustomerID = &actor.UserID
	default:
		return pagination.Result[models.Payment]{}, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to list payments")
	}
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[models.Payment]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return pagination.NewResult(rows, page, total), nil
}

func eventKindForOutcome(status enums.PaymentStatus) enums.PaymentEventKind {
	switch status {
	case enums.PaymentStatusCompleted:
		return enums.PaymentEventCompleted
	case enums.PaymentStatusFailed:
		return enums.PaymentEventFailed
	default:
		return enums.PaymentEventAwaiting
	}
}

func gatewayErrorLabel(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return "error"
}

func mapLookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
