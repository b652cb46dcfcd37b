package availability

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

// Checker reads the bookings table for date conflicts. It is a point-in-time
// read; writers must repeat the check under the chalet lock via InTx.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

// IsAvailable reports whether no occupying booking overlaps r.
func (c *Checker) IsAvailable(ctx context.Context, chaletID uuid.UUID, r Range) (bool, error) {
	return c.InTx(c.db.WithContext(ctx), chaletID, r, nil)
}

// InTx runs the overlap query on tx. exclude skips one booking id.
func (c *Checker) InTx(tx *gorm.DB, chaletID uuid.UUID, r Range, exclude *uuid.UUID) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}
	conflicts, err := Conflicts(tx, chaletID, r, exclude)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts returns the occupying bookings on chaletID that overlap r.
func Conflicts(tx *gorm.DB, chaletID uuid.UUID, r Range, exclude *uuid.UUID) ([]models.Booking, error) {
	q := tx.Model(&models.Booking{}).
		Where("chalet_id = ?", chaletID).
		Where("status <> ?", enums.BookingStatusCancelled).
		Where("check_in < ? AND check_out > ?", r.CheckOut, r.CheckIn)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var rows []models.Booking
	if err := q.Order("check_in ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("check availability for %s", r))
	}
	return rows, nil
}
