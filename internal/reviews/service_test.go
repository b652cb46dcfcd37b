package reviews

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/db"
	"github.com/angelmondragon/chalets-backend/pkg/db/dbtest"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
)

var now = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repository: NewRepository(conn),
		Tx:         db.Wrap(conn),
		Logger:     logger.Nop(),
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc, conn
}

func seedBooking(t *testing.T, conn *gorm.DB, customer uuid.UUID, status enums.BookingStatus, checkOut time.Time) models.Booking {
	t.Helper()
	chalet := models.Chalet{ID: uuid.New(), OwnerID: uuid.New(), Name: "Palm Lodge", NightlyPrice: decimal.NewFromInt(300), MaxGuests: 4, IsActive: true}
	require.NoError(t, conn.Create(&chalet).Error)
	booking := models.Booking{
		ID:             uuid.New(),
		BookingNumber:  "BK2025" + uuid.NewString()[:6],
		ChaletID:       chalet.ID,
		CustomerID:     customer,
		CheckIn:        checkOut.AddDate(0, 0, -2),
		CheckOut:       checkOut,
		Guests:         2,
		TotalAmount:    decimal.NewFromInt(600),
		DiscountAmount: decimal.Zero,
		Status:         status,
	}
	require.NoError(t, conn.Create(&booking).Error)
	return booking
}

func TestCreateReview(t *testing.T) {
	svc, conn := setup(t)
	ctx := context.Background()
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
	booking := seedBooking(t, conn, customer.UserID, enums.BookingStatusCompleted, now.AddDate(0, 0, -3))

	comment := "  <b>Lovely</b> stay  "
	review, err := svc.Create(ctx, customer, booking.ID, CreateInput{Rating: 5, Comment: &comment})
	require.NoError(t, err)
	assert.False(t, review.IsApproved)
	require.NotNil(t, review.Comment)
	assert.Equal(t, "Lovely stay", *review.Comment)
	assert.Equal(t, booking.ChaletID, review.ChaletID)

	_, err = svc.Create(ctx, customer, booking.ID, CreateInput{Rating: 4})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateReviewGate(t *testing.T) {
	svc, conn := setup(t)
	ctx := context.Background()
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}

	pastConfirmed := seedBooking(t, conn, customer.UserID, enums.BookingStatusConfirmed, now.AddDate(0, 0, -1))
	_, err := svc.Create(ctx, customer, pastConfirmed.ID, CreateInput{Rating: 4})
	require.NoError(t, err)

	upcoming := seedBooking(t, conn, customer.UserID, enums.BookingStatusConfirmed, now.AddDate(0, 0, 5))
	pending := seedBooking(t, conn, customer.UserID, enums.BookingStatusPending, now.AddDate(0, 0, -1))
	cancelled := seedBooking(t, conn, customer.UserID, enums.BookingStatusCancelled, now.AddDate(0, 0, -1))
	done := seedBooking(t, conn, customer.UserID, enums.BookingStatusCompleted, now.AddDate(0, 0, -1))
	long := strings.Repeat("a", 1001)
	bad := "nice; rm -rf"

	cases := []struct {
		name    string
		actor   auth.Principal
		booking uuid.UUID
		input   CreateInput
		code    pkgerrors.Code
	}{
		{"stay not over", customer, upcoming.ID, CreateInput{Rating: 4}, pkgerrors.CodeStateConflict},
		{"pending", customer, pending.ID, CreateInput{Rating: 4}, pkgerrors.CodeStateConflict},
		{"cancelled", customer, cancelled.ID, CreateInput{Rating: 4}, pkgerrors.CodeStateConflict},
		{"other customer", auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}, done.ID, CreateInput{Rating: 4}, pkgerrors.CodeForbidden},
		{"admin", auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}, done.ID, CreateInput{Rating: 4}, pkgerrors.CodeForbidden},
		{"rating zero", customer, done.ID, CreateInput{Rating: 0}, pkgerrors.CodeValidation},
		{"rating six", customer, done.ID, CreateInput{Rating: 6}, pkgerrors.CodeValidation},
		{"long comment", customer, done.ID, CreateInput{Rating: 3, Comment: &long}, pkgerrors.CodeValidation},
		{"hostile comment", customer, done.ID, CreateInput{Rating: 3, Comment: &bad}, pkgerrors.CodeValidation},
		{"unknown booking", customer, uuid.New(), CreateInput{Rating: 3}, pkgerrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.actor, tc.booking, tc.input)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestApproveReview(t *testing.T) {
	svc, conn := setup(t)
	ctx := context.Background()
	customer := auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}
	booking := seedBooking(t, conn, customer.UserID, enums.BookingStatusCompleted, now.AddDate(0, 0, -1))
	review, err := svc.Create(ctx, customer, booking.ID, CreateInput{Rating: 5})
	require.NoError(t, err)

	listed, err := svc.ListForChalet(ctx, booking.ChaletID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = svc.Approve(ctx, auth.Principal{UserID: uuid.New(), Role: enums.RoleOwner}, review.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	admin := auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}
	approved, err := svc.Approve(ctx, admin, review.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)

	listed, err = svc.ListForChalet(ctx, booking.ChaletID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, review.ID, listed[0].ID)

	_, err = svc.Approve(ctx, admin, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
