package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Chalet is a rentable property listing.
type Chalet struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID      uuid.UUID       `gorm:"column:owner_id;type:uuid;not null"`
	Name         string          `gorm:"column:name;not null"`
	NightlyPrice decimal.Decimal `gorm:"column:nightly_price;type:numeric(12,2);not null"`
	MaxGuests    int             `gorm:"column:max_guests;not null"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt    *time.Time      `gorm:"column:deleted_at"`
}

func (Chalet) TableName() string { return "chalets" }

// IsOwnedBy reports whether userID owns the chalet.
func (c Chalet) IsOwnedBy(userID uuid.UUID) bool {
	return userID != uuid.Nil && c.OwnerID == userID
}
