package controllers

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/internal/bookings"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

// Amounts leave the API as fixed two-decimal strings and stay dates as
// YYYY-MM-DD.
var copyOptions = copier.Option{
	Converters: []copier.TypeConverter{
		{
			SrcType: decimal.Decimal{},
			DstType: copier.String,
			Fn: func(src any) (any, error) {
				d, ok := src.(decimal.Decimal)
				if !ok {
					return nil, fmt.Errorf("expected decimal, got %T", src)
				}
				return d.StringFixed(2), nil
			},
		},
		{
			SrcType: time.Time{},
			DstType: copier.String,
			Fn: func(src any) (any, error) {
				t, ok := src.(time.Time)
				if !ok {
					return nil, fmt.Errorf("expected time, got %T", src)
				}
				return t.Format(dateLayout), nil
			},
		},
	},
}

func mapInto[T any](src any) (T, error) {
	var dst T
	if err := copier.CopyWithOption(&dst, src, copyOptions); err != nil {
		return dst, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "map response")
	}
	return dst, nil
}

type chaletResponse struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	Name         string    `json:"name"`
	NightlyPrice string    `json:"nightly_price"`
	MaxGuests    int       `json:"max_guests"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type availabilityResponse struct {
	ChaletID  uuid.UUID `json:"chalet_id"`
	CheckIn   string    `json:"check_in"`
	CheckOut  string    `json:"check_out"`
	Available bool      `json:"available"`
}

type bookingResponse struct {
	ID              uuid.UUID `json:"id"`
	BookingNumber   string    `json:"booking_number"`
	ChaletID        uuid.UUID `json:"chalet_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	CheckIn         string    `json:"check_in"`
	CheckOut        string    `json:"check_out"`
	Nights          int       `json:"nights"`
	Guests          int       `json:"guests"`
	TotalAmount     string    `json:"total_amount"`
	DiscountAmount  string    `json:"discount_amount"`
	AmountDue       string    `json:"amount_due"`
	Status          string    `json:"status"`
	SpecialRequests *string   `json:"special_requests,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type bookingExtraResponse struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Price    string    `json:"price"`
	Quantity int       `json:"quantity"`
}

type auditEventResponse struct {
	ID         uuid.UUID       `json:"id"`
	Kind       string          `json:"kind"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	ActorRole  string          `json:"actor_role"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type bookingDetailsResponse struct {
	Booking     bookingResponse        `json:"booking"`
	Extras      []bookingExtraResponse `json:"extras"`
	ExtrasTotal string                 `json:"extras_total"`
	Events      []auditEventResponse   `json:"events"`
}

type paymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	BookingID     uuid.UUID  `json:"booking_id"`
	Method        string     `json:"method"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	ExternalID    *string    `json:"external_id,omitempty"`
	RedirectURL   *string    `json:"redirect_url,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type refundResponse struct {
	RefundID      string    `json:"refund_id"`
	PaymentID     uuid.UUID `json:"payment_id"`
	BookingNumber string    `json:"booking_number"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
}

type refundEntryResponse struct {
	RefundID   string    `json:"refund_id"`
	Amount     string    `json:"amount"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type refundHistoryResponse struct {
	PaymentID      uuid.UUID             `json:"payment_id"`
	OriginalAmount string                `json:"original_amount"`
	Refunds        []refundEntryResponse `json:"refunds"`
	TotalRefunded  string                `json:"total_refunded"`
}

type refundQuoteResponse struct {
	PaymentID       uuid.UUID `json:"payment_id"`
	Eligible        bool      `json:"eligible"`
	Percentage      int       `json:"percentage"`
	SuggestedAmount string    `json:"suggested_amount"`
	OriginalAmount  string    `json:"original_amount"`
	HoursToCheckIn  float64   `json:"hours_to_check_in"`
}

type reviewResponse struct {
	ID         uuid.UUID `json:"id"`
	ChaletID   uuid.UUID `json:"chalet_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	Rating     int       `json:"rating"`
	Comment    *string   `json:"comment,omitempty"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBookingResponse(b models.Booking) (bookingResponse, error) {
	out, err := mapInto[bookingResponse](b)
	if err != nil {
		return out, err
	}
	out.Nights = b.Nights()
	out.AmountDue = b.AmountDue().StringFixed(2)
	return out, nil
}

func toBookingResponses(items []models.Booking) ([]bookingResponse, error) {
	out := make([]bookingResponse, 0, len(items))
	for _, b := range items {
		mapped, err := toBookingResponse(b)
		if err != nil {
			return nil, err
		}
		out = append(out, mapped)
	}
	return out, nil
}

func toBookingDetailsResponse(d *bookings.Details) (bookingDetailsResponse, error) {
	booking, err := toBookingResponse(d.Booking)
	if err != nil {
		return bookingDetailsResponse{}, err
	}
	extras, err := mapInto[[]bookingExtraResponse](d.Extras)
	if err != nil {
		return bookingDetailsResponse{}, err
	}
	events, err := mapInto[[]auditEventResponse](d.Events)
	if err != nil {
		return bookingDetailsResponse{}, err
	}
	if extras == nil {
		extras = []bookingExtraResponse{}
	}
	if events == nil {
		events = []auditEventResponse{}
	}
	return bookingDetailsResponse{
		Booking:     booking,
		Extras:      extras,
		ExtrasTotal: d.ExtrasTotal.StringFixed(2),
		Events:      events,
	}, nil
}
