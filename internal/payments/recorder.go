package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	"github.com/angelmondragon/chalets-backend/pkg/outbox"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Recorder appends payment audit rows and, for terminal statuses, queues the
// matching domain event in the same transaction.
type Recorder struct {
	outbox outboxPublisher
}

func NewRecorder(ob outboxPublisher) *Recorder {
	return &Recorder{outbox: ob}
}

func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, payment *models.Payment, kind enums.PaymentEventKind, actor auth.Principal, payload map[string]any, at time.Time) error {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payment event payload: %w", err)
	}
	event := models.PaymentEvent{
		ID:         models.NewEventID(),
		PaymentID:  payment.ID,
		Kind:       kind,
		ActorID:    actor.ActorID(),
		ActorRole:  actor.Role,
		Payload:    raw,
		OccurredAt: at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

// Announce emits payment_completed, payment_failed or payment_refunded for
// the payment's current status. Other statuses are not announced.
func (r *Recorder) Announce(ctx context.Context, tx *gorm.DB, payment *models.Payment, actor auth.Principal, at time.Time) error {
	eventType, ok := enums.PaymentEventTypeFor(payment.Status)
	if !ok || r.outbox == nil {
		return nil
	}
	external := ""
	if payment.ExternalID != nil {
		external = *payment.ExternalID
	}
	return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
		OccurredAt:    at.UTC(),
		Data: outbox.PaymentEventData{
			PaymentID:  payment.ID,
			BookingID:  payment.BookingID,
			Method:     string(payment.Method),
			Status:     string(payment.Status),
			Amount:     payment.Amount.StringFixed(2),
			Currency:   payment.Currency,
			ExternalID: external,
		},
	})
}
