// Package refunds decides who may refund a payment and carries refunds out
// against the gateway or locally for offline methods.
package refunds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/internal/payments"
	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/config"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/money"
	"github.com/angelmondragon/chalets-backend/pkg/security"
)

// CustomerWindow is how far ahead of check-in a customer must be to refund
// their own payment.
const CustomerWindow = 24 * time.Hour

const reasonMaxLength = 500

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	CanRefund(ctx context.Context, actor auth.Principal, paymentID uuid.UUID) (bool, error)
	Refund(ctx context.Context, actor auth.Principal, paymentID uuid.UUID, input Input) (*Result, error)
	Quote(ctx context.Context, actor auth.Principal, paymentID uuid.UUID) (*Quote, error)
	ListRefunds(ctx context.Context, actor auth.Principal, paymentID uuid.UUID) (*History, error)
}

// Input describes a refund request. A nil Amount refunds the full payment.
type Input struct {
	Amount *decimal.Decimal
	Reason string
}

type Result struct {
	RefundID      string
	PaymentID     uuid.UUID
	BookingNumber string
	Amount        decimal.Decimal
	Currency      string
	Status        string
}

// Quote is the advisory view of a refund before it is requested.
type Quote struct {
	PaymentID       uuid.UUID
	Eligible        bool
	Percentage      int
	SuggestedAmount decimal.Decimal
	OriginalAmount  decimal.Decimal
	HoursToCheckIn  float64
}

type Entry struct {
	RefundID   string          `json:"refund_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type History struct {
	PaymentID      uuid.UUID
	OriginalAmount decimal.Decimal
	Refunds        []Entry
	TotalRefunded  decimal.Decimal
}

type ServiceParams struct {
	Payments payments.Repository
	Tx       txRunner
	Recorder *payments.Recorder
	Gateway  payments.Gateway
	Logger   *logger.Logger
	Config   config.PaymentsConfig
	Now      func() time.Time
}

type service struct {
	repo     payments.Repository
	tx       txRunner
	recorder *payments.Recorder
	gateway  payments.Gateway
	logg     *logger.Logger
	cfg      config.PaymentsConfig
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Payments == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("payment recorder required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 15 * time.Second
	}
	return &service{
		repo:     params.Payments,
		tx:       params.Tx,
		recorder: params.Recorder,
		gateway:  params.Gateway,
		logg:     logg,
		cfg:      cfg,
		now:      now,
	}, nil
}

type paymentContext struct {
	payment *models.Payment
	booking *models.Booking
	chalet  *models.Chalet
}

func (s *service) load(ctx context.Context, paymentID uuid.UUID) (*paymentContext, error) {
	payment, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		return nil, mapLookupError(err, "payment")
	}
	booking, err := s.repo.FindBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, mapLookupError(err, "booking")
	}
	chalet, err := s.repo.FindChalet(ctx, booking.ChaletID)
	if err != nil {
		return nil, mapLookupError(err, "chalet")
	}
	return &paymentContext{payment: payment, booking: booking, chalet: chalet}, nil
}

// eligible applies the role rules: admins always, owners for their chalets,
// customers for their own booking while more than CustomerWindow remains.
func eligible(actor auth.Principal, pc *paymentContext, now time.Time) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsOwner():
		return pc.chalet.IsOwnedBy(actor.UserID)
	case actor.IsCustomer():
		return pc.booking.CustomerID == actor.UserID && pc.booking.CheckIn.Sub(now) > CustomerWindow
	default:
		return false
	}
}

func canView(actor auth.Principal, pc *paymentContext) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsOwner():
		return pc.chalet.IsOwnedBy(actor.UserID)
	case actor.IsCustomer():
		return pc.booking.CustomerID == actor.UserID
	default:
		return false
	}
}

func (s *service) CanRefund(ctx context.Context, actor auth.Principal, paymentID uuid.UUID) (bool, error) {
	pc, err := s.load(ctx, paymentID)
	if err != nil {
		return false, err
	}
	return eligible(actor, pc, s.now().UTC()), nil
}

func (s *service) Refund(ctx context.Context, actor auth.Principal, paymentID uuid.UUID, input Input) (*Result, error) {
	pc, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !eligible(actor, pc, now) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to refund this payment")
	}
	payment := pc.payment
	if payment.Status != enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed payments can be refunded").
			WithDetails(map[string]string{"status": string(payment.Status)})
	}
	amount, err := refundAmount(input.Amount, payment.Amount)
	if err != nil {
		return nil, err
	}
	reason, err := security.Sanitize(input.Reason, reasonMaxLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reason rejected").
			WithDetails(map[string]string{"reason": err.Error()})
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required").
			WithDetails(map[string]string{"reason": "is required"})
	}

	refund, err := s.execute(ctx, payment, amount, reason)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, payment.ID)
		if err != nil {
			return mapLookupError(err, "payment")
		}
		if locked.Status != enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment was refunded concurrently")
		}
		locked.Status = enums.PaymentStatusRefunded
		refundedAt := now
		locked.RefundedAt = &refundedAt
		if err := repo.Save(ctx, locked); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
		}
		payload := map[string]any{
			"refund_id": refund.RefundID,
			"amount":    refund.Amount.StringFixed(2),
			"status":    refund.Status,
			"reason":    reason,
		}
		if err := s.recorder.Record(ctx, tx, locked, enums.PaymentEventRefunded, actor, payload, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
		}
		if err := s.recorder.Announce(ctx, tx, locked, actor, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue refund event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	refund.PaymentID = payment.ID
	refund.BookingNumber = pc.booking.BookingNumber
	refund.Currency = payment.Currency
	logCtx := s.logg.WithPaymentID(ctx, payment.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"refund_id":    refund.RefundID,
		"refund_total": refund.Amount.StringFixed(2),
		"processed_by": actor.UserID.String(),
	})
	s.logg.Info(logCtx, "refund processed")
	return refund, nil
}

// execute refunds through the gateway when the payment was charged there,
// and locally otherwise. The payment row is not touched.
func (s *service) execute(ctx context.Context, payment *models.Payment, amount decimal.Decimal, reason string) (*Result, error) {
	if s.gateway == nil || !chargedByGateway(payment) {
		return &Result{
			RefundID: "RF_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16]),
			Amount:   amount,
			Status:   "COMPLETED",
		}, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	res, err := s.gateway.Refund(callCtx, payments.RefundRequest{
		RefundKey:   payment.ID.String(),
		ExternalID:  *payment.ExternalID,
		AmountMinor: money.ToMinorUnits(amount),
		Currency:    payment.Currency,
		Reason:      reason,
	})
	if err != nil {
		s.logg.Error(s.logg.WithPaymentID(ctx, payment.ID.String()), "gateway refund failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "refund could not be processed")
	}
	return &Result{RefundID: res.RefundID, Amount: money.FromMinorUnits(res.AmountMinor), Status: res.Status}, nil
}

func chargedByGateway(payment *models.Payment) bool {
	if payment.ExternalID == nil || len(payment.Details) == 0 {
		return false
	}
	var details struct {
		Gateway string `json:"gateway"`
	}
	if err := json.Unmarshal(payment.Details, &details); err != nil {
		return false
	}
	return details.Gateway == "square"
}

func refundAmount(requested *decimal.Decimal, original decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return original, nil
	}
	amount := *requested
	switch {
	case !amount.IsPositive():
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive").
			WithDetails(map[string]string{"amount": "must be greater than 0"})
	case amount.GreaterThan(original):
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount exceeds the payment").
			WithDetails(map[string]string{"amount": "must be at most " + original.StringFixed(2)})
	case !amount.Equal(amount.Round(2)):
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "refund amount has too many decimals").
			WithDetails(map[string]string{"amount": "must have at most 2 decimal places"})
	}
	return amount, nil
}

func (s *service) Quote(ctx context.Context, actor auth.Principal, paymentID uuid.UUID) (*Quote, error) {
	pc, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, pc) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view this payment")
	}
	now := s.now().UTC()
	pct := TierPercentage(now, pc.booking.CheckIn)
	return &Quote{
		PaymentID:       pc.payment.ID,
		Eligible:        pc.payment.Status == enums.PaymentStatusCompleted && eligible(actor, pc, now),
		Percentage:      pct,
		SuggestedAmount: pc.payment.Amount.Mul(decimal.NewFromInt(int64(pct))).Div(decimal.NewFromInt(100)).Round(2),
		OriginalAmount:  pc.payment.Amount,
		HoursToCheckIn:  pc.booking.CheckIn.Sub(now).Hours(),
	}, nil
}

func (s *service) ListRefunds(ctx context.Context, actor auth.Principal, paymentID uuid.UUID) (*History, error) {
	pc, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, pc) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to view refunds for this payment")
	}
	events, err := s.repo.Events(ctx, paymentID, enums.PaymentEventRefunded, enums.PaymentEventWebhookRefunded)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund events")
	}
	history := &History{
		PaymentID:      paymentID,
		OriginalAmount: pc.payment.Amount,
		Refunds:        make([]Entry, 0, len(events)),
		TotalRefunded:  decimal.Zero,
	}
	for _, ev := range events {
		entry := entryFromEvent(ev)
		history.Refunds = append(history.Refunds, entry)
		history.TotalRefunded = history.TotalRefunded.Add(entry.Amount)
	}
	return history, nil
}

func entryFromEvent(ev models.PaymentEvent) Entry {
	var payload struct {
		RefundID string `json:"refund_id"`
		Amount   string `json:"amount"`
		Status   string `json:"status"`
		Reason   string `json:"reason"`
	}
	_ = json.Unmarshal(ev.Payload, &payload)
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	status := payload.Status
	if status == "" {
		status = "unknown"
	}
	return Entry{
		RefundID:   payload.RefundID,
		Amount:     amount,
		Status:     status,
		Reason:     payload.Reason,
		OccurredAt: ev.OccurredAt,
	}
}

func mapLookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s not found", what)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}
