package payments

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

// WebhookEventType is a normalized gateway event.
type WebhookEventType string

const (
	WebhookPaymentPaid     WebhookEventType = "payment_paid"
	WebhookPaymentFailed   WebhookEventType = "payment_failed"
	WebhookPaymentRefunded WebhookEventType = "payment_refunded"
)

// Supported reports whether ApplyWebhook acts on events of this type.
func (t WebhookEventType) Supported() bool {
	switch t {
	case WebhookPaymentPaid, WebhookPaymentFailed, WebhookPaymentRefunded:
		return true
	}
	return false
}

// WebhookEvent is a verified, normalized gateway notification keyed by the
// gateway's payment id.
type WebhookEvent struct {
	ID         string
	Type       WebhookEventType
	ExternalID string
	Reason     string
	RefundID   string
	Amount     *decimal.Decimal
	Metadata   map[string]any
}

// Webhook outcomes reported to metrics.
const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeNotFound  = "not_found"
	outcomeError     = "error"
)

// ApplyWebhook applies a gateway event to the payment it names. It reports
// false, with no error, when the event type is unknown or the payment is not
// visible yet; the gateway's retry covers the latter. Replaying an event
// that was already applied changes nothing.
func (s *service) ApplyWebhook(ctx context.Context, event WebhookEvent) (bool, error) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"webhook_event_id": event.ID,
		"webhook_type":     string(event.Type),
		"external_id":      event.ExternalID,
	})
	if !event.Type.Supported() {
		s.logg.Info(logCtx, "ignoring unsupported webhook event")
		s.metrics.Webhook(string(event.Type), outcomeIgnored)
		return false, nil
	}
	if event.ExternalID == "" {
		s.metrics.Webhook(string(event.Type), outcomeIgnored)
		return false, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing payment id")
	}

	system := auth.SystemPrincipal()
	outcome := outcomeApplied
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.LockByExternalID(ctx, event.ExternalID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = outcomeNotFound
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		now := s.now().UTC()
		switch event.Type {
		case WebhookPaymentPaid:
			outcome, err = s.applyPaid(ctx, tx, payment, event, system, now)
		case WebhookPaymentFailed:
			outcome, err = s.applyFailed(ctx, tx, payment, event, system, now)
		case WebhookPaymentRefunded:
			outcome, err = s.applyRefunded(ctx, tx, payment, event, system, now)
		}
		return err
	})
	if err != nil {
		s.metrics.Webhook(string(event.Type), outcomeError)
		s.logg.Error(logCtx, "apply payment webhook", err)
		return false, err
	}

	s.metrics.Webhook(string(event.Type), outcome)
	switch outcome {
	case outcomeNotFound:
		s.logg.Warn(logCtx, "webhook payment not found")
		return false, nil
	case outcomeIgnored:
		s.logg.Info(logCtx, "webhook does not apply to payment state")
	default:
		s.logg.Info(s.logg.WithField(logCtx, "outcome", outcome), "payment webhook processed")
	}
	return true, nil
}

func (s *service) applyPaid(ctx context.Context, tx *gorm.DB, payment *models.Payment, event WebhookEvent, actor auth.Principal, now time.Time) (string, error) {
	switch payment.Status {
	case enums.PaymentStatusCompleted:
		return outcomeDuplicate, nil
	case enums.PaymentStatusRefunded:
		return outcomeIgnored, nil
	}
	repo := s.repo.WithTx(tx)
	paidElsewhere, err := repo.HasCompleted(ctx, payment.BookingID, payment.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payments")
	}
	if paidElsewhere {
		// The gateway captured a second charge for an already paid booking.
		// Keep one completed payment and leave the evidence for an operator.
		payload := webhookPayload(event)
		payload["duplicate_charge"] = true
		if err := s.recorder.Record(ctx, tx, payment, enums.PaymentEventWebhookPaid, actor, payload, now); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment webhook")
		}
		s.logg.Warn(s.logg.WithPaymentID(ctx, payment.ID.String()), "paid webhook for a booking that already has a completed payment")
		return outcomeIgnored, nil
	}

	payment.Status = enums.PaymentStatusCompleted
	payment.FailureReason = nil
	if payment.PaidAt == nil {
		paidAt := now
		payment.PaidAt = &paidAt
	}
	if err := repo.Save(ctx, payment); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	if err := s.recordWebhook(ctx, tx, payment, enums.PaymentEventWebhookPaid, event, actor, now); err != nil {
		return "", err
	}

	booking, err := repo.LockBooking(ctx, payment.BookingID)
	if err != nil {
		return "", mapLookupError(err, "booking")
	}
	if booking.Status == enums.BookingStatusPending {
		if err := s.bookings.Apply(ctx, tx, booking, enums.BookingStatusConfirmed, actor,
			map[string]any{"payment_id": payment.ID.String()}, now); err != nil {
			return "", err
		}
	}
	return outcomeApplied, nil
}

func (s *service) applyFailed(ctx context.Context, tx *gorm.DB, payment *models.Payment, event WebhookEvent, actor auth.Principal, now time.Time) (string, error) {
	switch payment.Status {
	case enums.PaymentStatusFailed:
		return outcomeDuplicate, nil
	case enums.PaymentStatusCompleted, enums.PaymentStatusRefunded:
		return outcomeIgnored, nil
	}
	payment.Status = enums.PaymentStatusFailed
	reason := event.Reason
	if reason == "" {
		reason = "payment failed at gateway"
	}
	payment.FailureReason = &reason
	if err := s.repo.WithTx(tx).Save(ctx, payment); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	return outcomeApplied, s.recordWebhook(ctx, tx, payment, enums.PaymentEventWebhookFailed, event, actor, now)
}

func (s *service) applyRefunded(ctx context.Context, tx *gorm.DB, payment *models.Payment, event WebhookEvent, actor auth.Principal, now time.Time) (string, error) {
	switch payment.Status {
	case enums.PaymentStatusRefunded:
		return outcomeDuplicate, nil
	case enums.PaymentStatusPending, enums.PaymentStatusFailed:
		return outcomeIgnored, nil
	}
	payment.Status = enums.PaymentStatusRefunded
	if payment.RefundedAt == nil {
		refundedAt := now
		payment.RefundedAt = &refundedAt
	}
	if err := s.repo.WithTx(tx).Save(ctx, payment); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment")
	}
	return outcomeApplied, s.recordWebhook(ctx, tx, payment, enums.PaymentEventWebhookRefunded, event, actor, now)
}

func (s *service) recordWebhook(ctx context.Context, tx *gorm.DB, payment *models.Payment, kind enums.PaymentEventKind, event WebhookEvent, actor auth.Principal, now time.Time) error {
	if err := s.recorder.Record(ctx, tx, payment, kind, actor, webhookPayload(event), now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment webhook")
	}
	if err := s.recorder.Announce(ctx, tx, payment, actor, now); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue payment event")
	}
	return nil
}

func webhookPayload(event WebhookEvent) map[string]any {
	payload := map[string]any{"external_id": event.ExternalID}
	if event.ID != "" {
		payload["event_id"] = event.ID
	}
	if event.Reason != "" {
		payload["reason"] = event.Reason
	}
	if event.RefundID != "" {
		payload["refund_id"] = event.RefundID
	}
	if event.Amount != nil {
		payload["amount"] = event.Amount.StringFixed(2)
	}
	if len(event.Metadata) > 0 {
		payload["metadata"] = event.Metadata
	}
	return payload
}

// SyncPending asks the gateway about card payments that have stayed pending
// longer than the configured age and applies what it reports through the
// webhook path. It returns how many payments changed state.
func (s *service) SyncPending(ctx context.Context, limit int) (int, error) {
	if s.gateway == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 50
	}
	cutoff := s.now().UTC().Add(-s.cfg.PendingSyncAge)
	stale, err := s.repo.StalePending(ctx, enums.PaymentMethodCreditCard, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payments")
	}

	updated := 0
	var errs error
	for _, payment := range stale {
		if payment.ExternalID == nil {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
		remote, err := s.gateway.Lookup(callCtx, *payment.ExternalID)
		cancel()
		if err != nil {
			s.logg.Error(s.logg.WithPaymentID(ctx, payment.ID.String()), "payment sync lookup failed", err)
			errs = multierr.Append(errs, err)
			continue
		}
		applied, err := s.reconcile(ctx, payment, remote, "sync")
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if applied {
			updated++
		}
	}
	return updated, errs
}

// Callback checks a payment with the gateway when the customer comes back
// from the gateway's redirect, applies what the gateway reports and returns
// the stored payment.
func (s *service) Callback(ctx context.Context, externalID string) (*models.Payment, error) {
	if externalID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required").
			WithDetails(map[string]string{"id": "is required"})
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	payment, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, mapLookupError(err, "payment")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()
	remote, err := s.gateway.Lookup(callCtx, externalID)
	if err != nil {
		s.logg.Error(s.logg.WithPaymentID(ctx, payment.ID.String()), "payment callback lookup failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "payment verification failed")
	}
	if _, err := s.reconcile(ctx, *payment, remote, "callback"); err != nil {
		return nil, err
	}
	updated, err := s.repo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, mapLookupError(err, "payment")
	}
	return updated, nil
}

// reconcile feeds a gateway status into the webhook path. Statuses that are
// still in flight change nothing.
func (s *service) reconcile(ctx context.Context, payment models.Payment, remote GatewayPayment, source string) (bool, error) {
	var eventType WebhookEventType
	switch remote.Status {
	case enums.PaymentStatusCompleted:
		eventType = WebhookPaymentPaid
	case enums.PaymentStatusFailed:
		eventType = WebhookPaymentFailed
	default:
		return false, nil
	}
	return s.ApplyWebhook(ctx, WebhookEvent{
		ID:         source + ":" + payment.ID.String(),
		Type:       eventType,
		ExternalID: *payment.ExternalID,
		Reason:     "gateway status " + remote.RawStatus,
		Metadata:   map[string]any{"source": source},
	})
}
