package enums

// BookingEventKind labels rows in the booking audit trail.
type BookingEventKind string

const (
	BookingEventCreated   BookingEventKind = "created"
	BookingEventConfirmed BookingEventKind = "confirmed"
	BookingEventCancelled BookingEventKind = "cancelled"
	BookingEventCompleted BookingEventKind = "completed"
)

// BookingEventKindFor maps a target status onto its audit kind.
func BookingEventKindFor(status BookingStatus) BookingEventKind {
	switch status {
	case BookingStatusConfirmed:
		return BookingEventConfirmed
	case BookingStatusCancelled:
		return BookingEventCancelled
	case BookingStatusCompleted:
		return BookingEventCompleted
	default:
		return BookingEventCreated
	}
}

// PaymentEventKind labels rows in the payment audit trail.
type PaymentEventKind string

const (
	PaymentEventInitiated       PaymentEventKind = "initiated"
	PaymentEventCompleted       PaymentEventKind = "completed"
	PaymentEventFailed          PaymentEventKind = "failed"
	PaymentEventAwaiting        PaymentEventKind = "awaiting_confirmation"
	PaymentEventGatewayError    PaymentEventKind = "gateway_error"
	PaymentEventWebhookPaid     PaymentEventKind = "webhook_paid"
	PaymentEventWebhookFailed   PaymentEventKind = "webhook_failed"
	PaymentEventWebhookRefunded PaymentEventKind = "webhook_refunded"
	PaymentEventRefunded        PaymentEventKind = "refunded"
)
