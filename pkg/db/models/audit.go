package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/chalets-backend/pkg/enums"
)

// NewEventID returns a time-ordered UUIDv7. Audit trails are read back
// ordered by id, so rows must be created with this rather than uuid.New.
func NewEventID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// BookingEvent is an append-only audit row for a booking.
type BookingEvent struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	BookingID  uuid.UUID              `gorm:"column:booking_id;type:uuid;not null"`
	Kind       enums.BookingEventKind `gorm:"column:kind;not null"`
	ActorID    *uuid.UUID             `gorm:"column:actor_id;type:uuid"`
	ActorRole  enums.Role             `gorm:"column:actor_role;not null"`
	Payload    json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	OccurredAt time.Time              `gorm:"column:occurred_at;not null"`
}

func (BookingEvent) TableName() string { return "booking_events" }

// PaymentEvent is an append-only audit row for a payment.
type PaymentEvent struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID  uuid.UUID              `gorm:"column:payment_id;type:uuid;not null"`
	Kind       enums.PaymentEventKind `gorm:"column:kind;not null"`
	ActorID    *uuid.UUID             `gorm:"column:actor_id;type:uuid"`
	ActorRole  enums.Role             `gorm:"column:actor_role;not null"`
	Payload    json.RawMessage        `gorm:"column:payload;type:jsonb;not null"`
	OccurredAt time.Time              `gorm:"column:occurred_at;not null"`
}

func (PaymentEvent) TableName() string { return "payment_events" }
