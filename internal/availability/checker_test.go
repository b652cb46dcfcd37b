package availability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/pkg/db/dbtest"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
)

func seedBooking(t *testing.T, conn *gorm.DB, chaletID uuid.UUID, in, out string, status enums.BookingStatus) models.Booking {
	t.Helper()
	b := models.Booking{
		ID:             uuid.New(),
		BookingNumber:  "BK2025" + uuid.NewString()[:6],
		ChaletID:       chaletID,
		CustomerID:     uuid.New(),
		CheckIn:        day(in),
		CheckOut:       day(out),
		Guests:         2,
		TotalAmount:    decimal.NewFromInt(1000),
		DiscountAmount: decimal.Zero,
		Status:         status,
	}
	require.NoError(t, conn.Create(&b).Error)
	return b
}

func TestCheckerIgnoresCancelledAndOtherChalets(t *testing.T) {
	conn := dbtest.Open(t)
	chaletID := uuid.New()
	seedBooking(t, conn, chaletID, "2025-06-10", "2025-06-15", enums.BookingStatusCancelled)
	seedBooking(t, conn, uuid.New(), "2025-06-10", "2025-06-15", enums.BookingStatusConfirmed)

	checker := NewChecker(conn)
	ok, err := checker.IsAvailable(context.Background(), chaletID, mustRange(t, "2025-06-11", "2025-06-12"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckerDetectsConflicts(t *testing.T) {
	conn := dbtest.Open(t)
	chaletID := uuid.New()
	existing := seedBooking(t, conn, chaletID, "2025-06-10", "2025-06-15", enums.BookingStatusPending)
	checker := NewChecker(conn)
	ctx := context.Background()

	ok, err := checker.IsAvailable(ctx, chaletID, mustRange(t, "2025-06-14", "2025-06-16"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = checker.IsAvailable(ctx, chaletID, mustRange(t, "2025-06-15", "2025-06-16"))
	require.NoError(t, err)
	assert.True(t, ok, "back-to-back stays must not conflict")

	ok, err = checker.InTx(conn, chaletID, mustRange(t, "2025-06-10", "2025-06-15"), &existing.ID)
	require.NoError(t, err)
	assert.True(t, ok, "excluded booking must not count")

	conflicts, err := Conflicts(conn, chaletID, mustRange(t, "2025-06-01", "2025-06-30"), nil)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, existing.ID, conflicts[0].ID)
}
