package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/chalets-backend/pkg/enums"
)

// Payment is one attempt to settle a booking. Many attempts may exist per
// booking; at most one reaches completed.
type Payment struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BookingID     uuid.UUID           `gorm:"column:booking_id;type:uuid;not null"`
	Method        enums.PaymentMethod `gorm:"column:method;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string              `gorm:"column:currency;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;not null"`
	ExternalID    *string             `gorm:"column:external_id"`
	RedirectURL   *string             `gorm:"column:redirect_url"`
	Details       json.RawMessage     `gorm:"column:details;type:jsonb"`
	FailureReason *string             `gorm:"column:failure_reason"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	RefundedAt    *time.Time          `gorm:"column:refunded_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
