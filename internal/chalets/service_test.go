package chalets

import (
	"context"
	"testing"

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
	"github.com/angelmondragon/chalets-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), nil)
	require.NoError(t, err)
	return svc, conn
}

func owner() auth.Principal {
	return auth.Principal{UserID: uuid.New(), Role: enums.RoleOwner}
}

func TestCreateAssignsOwnerAndValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	actor := owner()

	chalet, err := svc.Create(ctx, actor, CreateInput{Name: "  Cedar Lodge ", NightlyPrice: decimal.NewFromInt(500), MaxGuests: 6})
	require.NoError(t, err)
	assert.Equal(t, actor.UserID, chalet.OwnerID)
	assert.Equal(t, "Cedar Lodge", chalet.Name)
	assert.True(t, chalet.IsActive)

	_, err = svc.Create(ctx, actor, CreateInput{Name: "x", NightlyPrice: decimal.NewFromInt(-1), MaxGuests: 0})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"nightly_price": "must be >= 0", "max_guests": "must be >= 1"}, typed.Details())

	_, err = svc.Create(ctx, auth.Principal{UserID: uuid.New(), Role: enums.RoleCustomer}, CreateInput{Name: "x", MaxGuests: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = svc.Create(ctx, actor, CreateInput{Name: "<script>alert(1)</script>", MaxGuests: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateRequiresOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	actor := owner()
	chalet, err := svc.Create(ctx, actor, CreateInput{Name: "Pine", NightlyPrice: decimal.NewFromInt(300), MaxGuests: 4})
	require.NoError(t, err)

	price := decimal.RequireFromString("450.50")
	_, err = svc.Update(ctx, owner(), chalet.ID, UpdateInput{NightlyPrice: &price})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	updated, err := svc.Update(ctx, actor, chalet.ID, UpdateInput{NightlyPrice: &price})
	require.NoError(t, err)
	assert.True(t, updated.NightlyPrice.Equal(price))

	admin := auth.Principal{UserID: uuid.New(), Role: enums.RoleAdmin}
	deactivated, err := svc.Deactivate(ctx, admin, chalet.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
}

func TestDeleteBlockedByActiveBookings(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	actor := owner()
	chalet, err := svc.Create(ctx, actor, CreateInput{Name: "Oak", NightlyPrice: decimal.NewFromInt(200), MaxGuests: 2})
	require.NoError(t, err)

	booking := models.Booking{
		ID: uuid.New(), BookingNumber: "BK2025000001", ChaletID: chalet.ID, CustomerID: uuid.New(),
		CheckIn: dbtestDate(2025, 6, 1), CheckOut: dbtestDate(2025, 6, 3), Guests: 2,
		TotalAmount: decimal.NewFromInt(400), DiscountAmount: decimal.Zero, Status: enums.BookingStatusConfirmed,
	}
	require.NoError(t, conn.Create(&booking).Error)

	err = svc.Delete(ctx, actor, chalet.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	require.NoError(t, conn.Model(&booking).Update("status", enums.BookingStatusCancelled).Error)
	require.NoError(t, svc.Delete(ctx, actor, chalet.ID))

	_, err = svc.Get(ctx, chalet.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersByOwner(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, b := owner(), owner()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, a, CreateInput{Name: "A", NightlyPrice: decimal.NewFromInt(100), MaxGuests: 2})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, b, CreateInput{Name: "B", NightlyPrice: decimal.NewFromInt(100), MaxGuests: 2})
	require.NoError(t, err)

	page, err := svc.List(ctx, ListFilter{OwnerID: &a.UserID}, pagination.Params{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 2)
}
