package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateBooking OutboxAggregateType = "booking"
	AggregatePayment OutboxAggregateType = "payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBooking,
	AggregatePayment,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType names a domain event published through the outbox.
type OutboxEventType string

const (
	EventBookingCreated   OutboxEventType = "booking_created"
	EventBookingConfirmed OutboxEventType = "booking_confirmed"
	EventBookingCancelled OutboxEventType = "booking_cancelled"
	EventBookingCompleted OutboxEventType = "booking_completed"
	EventPaymentCompleted OutboxEventType = "payment_completed"
	EventPaymentFailed    OutboxEventType = "payment_failed"
	EventPaymentRefunded  OutboxEventType = "payment_refunded"
)

var validEventTypes = []OutboxEventType{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventBookingCompleted,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentRefunded,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// BookingEventTypeFor maps a booking status onto the event announcing it.
func BookingEventTypeFor(status BookingStatus) OutboxEventType {
	switch status {
	case BookingStatusConfirmed:
		return EventBookingConfirmed
	case BookingStatusCancelled:
		return EventBookingCancelled
	case BookingStatusCompleted:
		return EventBookingCompleted
	default:
		return EventBookingCreated
	}
}

// PaymentEventTypeFor maps a terminal payment status onto its event. ok is
// false for statuses that are not announced.
func PaymentEventTypeFor(status PaymentStatus) (OutboxEventType, bool) {
	switch status {
	case PaymentStatusCompleted:
		return EventPaymentCompleted, true
	case PaymentStatusFailed:
		return EventPaymentFailed, true
	case PaymentStatusRefunded:
		return EventPaymentRefunded, true
	default:
		return "", false
	}
}

// EventType maps a booking audit kind onto its outbox event.
func (k BookingEventKind) EventType() OutboxEventType {
	switch k {
	case BookingEventConfirmed:
		return EventBookingConfirmed
	case BookingEventCancelled:
		return EventBookingCancelled
	case BookingEventCompleted:
		return EventBookingCompleted
	default:
		return EventBookingCreated
	}
}
