package bookings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	"github.com/angelmondragon/chalets-backend/pkg/outbox"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Recorder appends booking audit rows and queues the matching domain event
// inside the caller's transaction.
type Recorder struct {
	outbox outboxPublisher
}

func NewRecorder(ob outboxPublisher) *Recorder {
	return &Recorder{outbox: ob}
}

// Record writes one audit event for booking. payload may be nil.
func (r *Recorder) Record(ctx context.Context, tx *gorm.DB, booking *models.Booking, kind enums.BookingEventKind, actor auth.Principal, payload map[string]any, at time.Time) error {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal booking event payload: %w", err)
	}
	event := models.BookingEvent{
		ID:         models.NewEventID(),
		BookingID:  booking.ID,
		Kind:       kind,
		ActorID:    actor.ActorID(),
		ActorRole:  actor.Role,
		Payload:    raw,
		OccurredAt: at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}

	if r.outbox == nil {
		return nil
	}
	reason, _ := payload["reason"].(string)
	return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     kind.EventType(),
		AggregateType: enums.AggregateBooking,
		AggregateID:   booking.ID,
		Actor:         actorRef(actor),
		OccurredAt:    at.UTC(),
		Data: outbox.BookingEventData{
			BookingID:     booking.ID,
			BookingNumber: booking.BookingNumber,
			ChaletID:      booking.ChaletID,
			CustomerID:    booking.CustomerID,
			Status:        string(booking.Status),
			CheckIn:       availability.FormatDate(booking.CheckIn),
			CheckOut:      availability.FormatDate(booking.CheckOut),
			Reason:        reason,
		},
	})
}

func actorRef(actor auth.Principal) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
