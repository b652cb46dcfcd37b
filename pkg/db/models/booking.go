package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/pkg/enums"
)

// Booking reserves a chalet for the half-open date range [CheckIn, CheckOut).
type Booking struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BookingNumber   string              `gorm:"column:booking_number;not null;uniqueIndex"`
	ChaletID        uuid.UUID           `gorm:"column:chalet_id;type:uuid;not null"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	CheckIn         time.Time           `gorm:"column:check_in;type:date;not null"`
	CheckOut        time.Time           `gorm:"column:check_out;type:date;not null"`
	Guests          int                 `gorm:"column:guests;not null"`
	TotalAmount     decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	DiscountAmount  decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	Status          enums.BookingStatus `gorm:"column:status;not null"`
	SpecialRequests *string             `gorm:"column:special_requests"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Booking) TableName() string { return "bookings" }

// AmountDue is the exact amount a payment must carry.
func (b Booking) AmountDue() decimal.Decimal {
	return b.TotalAmount.Sub(b.DiscountAmount)
}

// Nights is the calendar-day difference between check-in and check-out.
func (b Booking) Nights() int {
	return CalendarNights(b.CheckIn, b.CheckOut)
}

// CalendarNights counts calendar days between two dates, ignoring time of day.
func CalendarNights(checkIn, checkOut time.Time) int {
	in := time.Date(checkIn.Year(), checkIn.Month(), checkIn.Day(), 0, 0, 0, 0, time.UTC)
	out := time.Date(checkOut.Year(), checkOut.Month(), checkOut.Day(), 0, 0, 0, 0, time.UTC)
	return int(out.Sub(in).Hours() / 24)
}

// BookingExtra is an add-on priced per unit.
type BookingExtra struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	BookingID uuid.UUID       `gorm:"column:booking_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (BookingExtra) TableName() string { return "booking_extras" }

func (e BookingExtra) Total() decimal.Decimal {
	return e.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}
