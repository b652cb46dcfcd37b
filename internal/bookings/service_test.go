package bookings

import (
	"context"
	"math/rand/v2"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/chalets-backend/internal/availability"
	"github.com/angelmondragon/chalets-backend/internal/bookingnumber"
	"github.com/angelmondragon/chalets-backend/pkg/auth"
	"github.com/angelmondragon/chalets-backend/pkg/config"
	"github.com/angelmondragon/chalets-backend/pkg/db"
	"github.com/angelmondragon/chalets-backend/pkg/db/dbtest"
	"github.com/angelmondragon/chalets-backend/pkg/db/models"
	"github.com/angelmondragon/chalets-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
	"github.com/angelmondragon/chalets-backend/pkg/logger"
	"github.com/angelmondragon/chalets-backend/pkg/outbox"
	"github.com/angelmondragon/chalets-backend/pkg/pagination"
)

var bookingNumberPattern = regexp.MustCompile(`^BK2025\d{6}$`)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc   Service
	conn  *gorm.DB
	clock *testClock
	owner auth.Principal
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithNumbers(t, nil)
}

func newFixtureWithNumbers(t *testing.T, numbers *bookingnumber.Generator) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := NewRepository(conn)
	ob := outbox.NewService(outbox.NewRepository(conn), logger.Nop())
	svc, err := NewService(ServiceParams{
		Repository: repo,
		Tx:         db.Wrap(conn),
		Checker:    availability.NewChecker(conn),
		Numbers:    numbers,
		Recorder:   NewRecorder(ob),
		Logger:     logger.Nop(),
		Config: config.BookingConfig{
			NumberMaxAttempts:     10,
			CancelReasonMaxLength: 500,
			CustomerCancelWindow:  24 * time.Hour,
		},
		Now: clock.Now,
	})
	require.NoError(t, err)
	return fixture{svc: svc, conn: conn, clock: clock, owner: principal(enums.RoleOwner)}
}

func principal(role enums.Role) auth.Principal {
	return auth.Principal{UserID: uuid.New(), Role: role}
}

func (f fixture) seedChalet(t *testing.T, price int64, maxGuests int) models.Chalet {
	t.Helper()
	chalet := models.Chalet{
		ID:           uuid.New(),
		OwnerID:      f.owner.UserID,
		Name:         "Cedar Lodge",
		NightlyPrice: decimal.NewFromInt(price),
		MaxGuests:    maxGuests,
		IsActive:     true,
	}
	require.NoError(t, f.conn.Create(&chalet).Error)
	return chalet
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func stay(chaletID uuid.UUID, in, out time.Time, guests int) CreateInput {
	return CreateInput{ChaletID: chaletID, CheckIn: in, CheckOut: out, Guests: guests}
}

func TestCreateHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chalet := f.seedChalet(t, 500, 6)
	customer := principal(enums.RoleCustomer)

	note := "  late arrival  "
	input := stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 13), 4)
	input.SpecialRequests = &note
	input.Extras = []ExtraInput{{Name: "Breakfast", Price: decimal.NewFromInt(40), Quantity: 3}}

	booking, err := f.svc.Create(ctx, customer, input, CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusPending, booking.Status)
	assert.True(t, decimal.NewFromInt(1500).Equal(booking.TotalAmount), booking.TotalAmount.String())
	assert.True(t, booking.DiscountAmount.IsZero())
	assert.Equal(t, customer.UserID, booking.CustomerID)
	assert.Regexp(t, bookingNumberPattern, booking.BookingNumber)
	require.NotNil(t, booking.SpecialRequests)
	assert.Equal(t, "late arrival", *booking.SpecialRequests)

	details, err := f.svc.Details(ctx, customer, booking.ID)
	require.NoError(t, err)
	require.Len(t, details.Extras, 1)
	assert.True(t, decimal.NewFromInt(120).Equal(details.ExtrasTotal))
	kinds := make([]enums.BookingEventKind, 0, len(details.Events))
	for _, ev := range details.Events {
		kinds = append(kinds, ev.Kind)
	}
	if diff := cmp.Diff([]enums.BookingEventKind{enums.BookingEventCreated}, kinds); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}

	events, err := outbox.NewRepository(f.conn).ListForAggregate(f.conn, booking.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventBookingCreated, events[0].EventType)

	byNumber, err := f.svc.GetByNumber(ctx, customer, booking.BookingNumber)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, byNumber.ID)
}

func TestCreateAsConfirmed(t *testing.T) {
	f := newFixture(t)
	chalet := f.seedChalet(t, 300, 2)

	booking, err := f.svc.Create(context.Background(), principal(enums.RoleCustomer),
		stay(chalet.ID, date(2025, 7, 1), date(2025, 7, 2), 2), CreateOptions{AsConfirmed: true})
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusConfirmed, booking.Status)
}

func TestCreateRejectsOverlapButAllowsBackToBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chalet := f.seedChalet(t, 500, 6)

	_, err := f.svc.Create(ctx, principal(enums.RoleCustomer), stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 15), 2), CreateOptions{})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, principal(enums.RoleCustomer), stay(chalet.ID, date(2025, 6, 14), date(2025, 6, 16), 2), CreateOptions{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	_, err = f.svc.Create(ctx, principal(enums.RoleCustomer), stay(chalet.ID, date(2025, 6, 15), date(2025, 6, 16), 2), CreateOptions{})
	assert.NoError(t, err)

	free, err := f.svc.CheckAvailability(ctx, chalet.ID, availability.Range{CheckIn: date(2025, 6, 8), CheckOut: date(2025, 6, 10)})
	require.NoError(t, err)
	assert.True(t, free)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chalet := f.seedChalet(t, 500, 4)
	inactive := f.seedChalet(t, 500, 4)
	require.NoError(t, f.conn.Model(&models.Chalet{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)
	customer := principal(enums.RoleCustomer)

	cases := []struct {
		name  string
		actor auth.Principal
		input CreateInput
		code  pkgerrors.Code
	}{
		{"too many guests", customer, stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 12), 5), pkgerrors.CodeValidation},
		{"check-in in the past", customer, stay(chalet.ID, date(2025, 5, 30), date(2025, 6, 2), 2), pkgerrors.CodeValidation},
		{"empty range", customer, stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 10), 2), pkgerrors.CodeValidation},
		{"inactive chalet", customer, stay(inactive.ID, date(2025, 6, 10), date(2025, 6, 12), 2), pkgerrors.CodeValidation},
		{"unknown chalet", customer, stay(uuid.New(), date(2025, 6, 10), date(2025, 6, 12), 2), pkgerrors.CodeNotFound},
		{"owner cannot book", f.owner, stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 12), 2), pkgerrors.CodeForbidden},
		{"admin needs customer", principal(enums.RoleAdmin), stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 12), 2), pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.actor, tc.input, CreateOptions{})
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, f.conn.Model(&models.Booking{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRejectsBadExtra(t *testing.T) {
	f := newFixture(t)
	chalet := f.seedChalet(t, 500, 4)
	input := stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 12), 2)
	input.Extras = []ExtraInput{{Name: "Firewood", Price: decimal.NewFromInt(10), Quantity: 0}}

	_, err := f.svc.Create(context.Background(), principal(enums.RoleCustomer), input, CreateOptions{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, f.conn.Model(&models.BookingExtra{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	f := newFixture(t)
	chalet := f.seedChalet(t, 500, 6)
	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Create(context.Background(), principal(enums.RoleCustomer),
				stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 13), 2), CreateOptions{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func TestCustomerCancelWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chalet := f.seedChalet(t, 500, 6)
	checkIn := date(2025, 6, 20)

	book := func(customer auth.Principal, in time.Time) *models.Booking {
		b, err := f.svc.Create(ctx, customer, stay(chalet.ID, in, in.AddDate(0, 0, 2), 2), CreateOptions{AsConfirmed: true})
		require.NoError(t, err)
		return b
	}

	early := principal(enums.RoleCustomer)
	b1 := book(early, checkIn)
	f.clock.Set(checkIn.Add(-25 * time.Hour))
	cancelled, err := f.svc.Cancel(ctx, early, b1.ID, "change of plans")
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCancelled, cancelled.Status)

	late := principal(enums.RoleCustomer)
	f.clock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	b2 := book(late, checkIn)
	f.clock.Set(checkIn.Add(-23 * time.Hour))
	_, err = f.svc.Cancel(ctx, late, b2.ID, "change of plans")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden), "got %v", err)

	byOwner, err := f.svc.Cancel(ctx, f.owner, b2.ID, "maintenance")
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCancelled, byOwner.Status)

	details, err := f.svc.Details(ctx, f.owner, b2.ID)
	require.NoError(t, err)
	require.Len(t, details.Events, 2)
	assert.Equal(t, enums.BookingEventCancelled, details.Events[1].Kind)
	assert.JSONEq(t, `{"reason":"maintenance","from":"confirmed"}`, string(details.Events[1].Payload))
}

func TestCancelRequiresCleanReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chalet := f.seedChalet(t, 500, 6)
	customer := principal(enums.RoleCustomer)
	b, err := f.svc.Create(ctx, customer, stay(chalet.ID, date(2025, 7, 1), date(2025, 7, 3), 2), CreateOptions{})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, customer, b.ID, "   ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Cancel(ctx, customer, b.ID, "x; DROP TABLE bookings")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStateMachineEdges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chalet := f.seedChalet(t, 500, 6)
	customer := principal(enums.RoleCustomer)
	b, err := f.svc.Create(ctx, customer, stay(chalet.ID, date(2025, 6, 10), date(2025, 6, 12), 2), CreateOptions{})
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, customer, b.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Complete(ctx, f.owner, b.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "pending cannot complete")

	confirmed, err := f.svc.Transition(ctx, f.owner, b.ID, enums.BookingStatusConfirmed, "")
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusConfirmed, confirmed.Status)

	_, err = f.svc.Confirm(ctx, f.owner, b.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Complete(ctx, f.owner, b.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "before check-out")

	f.clock.Set(date(2025, 6, 12).Add(time.Hour))
	due, err := f.svc.DueForCompletion(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, due)

	completed, err := f.svc.Complete(ctx, auth.SystemPrincipal(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.BookingStatusCompleted, completed.Status)

	_, err = f.svc.Cancel(ctx, f.owner, b.ID, "too late")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Transition(ctx, f.owner, b.ID, enums.BookingStatusPending, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.seedChalet(t, 500, 6)
	otherOwner := principal(enums.RoleOwner)
	theirs := models.Chalet{ID: uuid.New(), OwnerID: otherOwner.UserID, Name: "Pine", NightlyPrice: decimal.NewFromInt(200), MaxGuests: 4, IsActive: true}
	require.NoError(t, f.conn.Create(&theirs).Error)

	alice := principal(enums.RoleCustomer)
	bob := principal(enums.RoleCustomer)
	_, err := f.svc.Create(ctx, alice, stay(mine.ID, date(2025, 6, 10), date(2025, 6, 12), 2), CreateOptions{})
	require.NoError(t, err)
	bobs, err := f.svc.Create(ctx, bob, stay(theirs.ID, date(2025, 6, 10), date(2025, 6, 12), 2), CreateOptions{})
	require.NoError(t, err)

	page := pagination.Params{Page: 1, PerPage: 15}
	list := func(actor auth.Principal, filter ListFilter) int64 {
		res, err := f.svc.List(ctx, actor, filter, page)
		require.NoError(t, err)
		return res.Total
	}
	assert.EqualValues(t, 1, list(alice, ListFilter{}))
	assert.EqualValues(t, 1, list(f.owner, ListFilter{CustomerID: &bob.UserID}), "visibility fields are overridden")
	assert.EqualValues(t, 1, list(otherOwner, ListFilter{}))
	assert.EqualValues(t, 2, list(principal(enums.RoleAdmin), ListFilter{}))

	pending := enums.BookingStatusPending
	assert.EqualValues(t, 2, list(principal(enums.RoleAdmin), ListFilter{Status: &pending}))

	_, err = f.svc.Get(ctx, alice, bobs.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = f.svc.Get(ctx, f.owner, bobs.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = f.svc.Get(ctx, otherOwner, bobs.ID)
	assert.NoError(t, err)
}

func TestIsReviewable(t *testing.T) {
	now := date(2025, 6, 20)
	cases := []struct {
		status   enums.BookingStatus
		checkOut time.Time
		want     bool
	}{
		{enums.BookingStatusCompleted, date(2025, 6, 25), true},
		{enums.BookingStatusConfirmed, date(2025, 6, 19), true},
		{enums.BookingStatusConfirmed, date(2025, 6, 21), false},
		{enums.BookingStatusPending, date(2025, 6, 1), false},
		{enums.BookingStatusCancelled, date(2025, 6, 1), false},
	}
	for _, tc := range cases {
		got := IsReviewable(models.Booking{Status: tc.status, CheckOut: tc.checkOut}, now)
		assert.Equal(t, tc.want, got, "%s checkout %s", tc.status, tc.checkOut.Format(time.DateOnly))
	}
}

func seededNumbers(attempts int) *bookingnumber.Generator {
	return bookingnumber.New(bookingnumber.WithSource(rand.NewPCG(11, 13)), bookingnumber.WithMaxAttempts(attempts))
}

// takeNumbers stores bookings holding the given numbers on their own chalet.
func (f fixture) takeNumbers(t *testing.T, numbers ...string) {
	t.Helper()
	chalet := f.seedChalet(t, 200, 2)
	for i, number := range numbers {
		in := date(2025, 9, 1).AddDate(0, 0, 7*i)
		require.NoError(t, f.conn.Create(&models.Booking{
			ID:             uuid.New(),
			BookingNumber:  number,
			ChaletID:       chalet.ID,
			CustomerID:     uuid.New(),
			CheckIn:        in,
			CheckOut:       in.AddDate(0, 0, 2),
			Guests:         1,
			TotalAmount:    decimal.NewFromInt(400),
			DiscountAmount: decimal.Zero,
			Status:         enums.BookingStatusConfirmed,
		}).Error)
	}
}

func TestCreateSkipsTakenNumbers(t *testing.T) {
	f := newFixtureWithNumbers(t, seededNumbers(3))
	replay := seededNumbers(3).With(bookingnumber.WithClock(f.clock.Now))
	first, second, third := replay.Candidate(), replay.Candidate(), replay.Candidate()
	f.takeNumbers(t, first, second)
	chalet := f.seedChalet(t, 300, 4)

	booking, err := f.svc.Create(context.Background(), principal(enums.RoleCustomer),
		stay(chalet.ID, date(2025, 7, 1), date(2025, 7, 3), 2), CreateOptions{})
	require.NoError(t, err)
	assert.Equal(t, third, booking.BookingNumber)
}

func TestCreateStopsAfterConfiguredNumberAttempts(t *testing.T) {
	f := newFixtureWithNumbers(t, seededNumbers(3))
	replay := seededNumbers(3).With(bookingnumber.WithClock(f.clock.Now))
	f.takeNumbers(t, replay.Candidate(), replay.Candidate(), replay.Candidate())
	chalet := f.seedChalet(t, 300, 4)

	_, err := f.svc.Create(context.Background(), principal(enums.RoleCustomer),
		stay(chalet.ID, date(2025, 7, 1), date(2025, 7, 3), 2), CreateOptions{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal), "got %v", err)

	var count int64
	require.NoError(t, f.conn.Model(&models.Booking{}).Where("chalet_id = ?", chalet.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBookingNumberYearFollowsServiceClock(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(time.Date(2031, 1, 2, 9, 0, 0, 0, time.UTC))
	chalet := f.seedChalet(t, 300, 4)

	booking, err := f.svc.Create(context.Background(), principal(enums.RoleCustomer),
		stay(chalet.ID, date(2031, 2, 1), date(2031, 2, 3), 2), CreateOptions{})
	require.NoError(t, err)
	assert.Regexp(t, `^BK2031\d{6}$`, booking.BookingNumber)
}

func TestBookingAuditTrailKeepsWriteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chalet := f.seedChalet(t, 300, 4)
	want := []enums.BookingEventKind{enums.BookingEventCreated, enums.BookingEventConfirmed, enums.BookingEventCancelled}

	// The clock is frozen, so all three rows share one timestamp.
	for i := 0; i < 25; i++ {
		in := date(2025, 7, 1).AddDate(0, 0, 3*i)
		booking, err := f.svc.Create(ctx, principal(enums.RoleCustomer), stay(chalet.ID, in, in.AddDate(0, 0, 2), 2), CreateOptions{})
		require.NoError(t, err)
		_, err = f.svc.Confirm(ctx, f.owner, booking.ID)
		require.NoError(t, err)
		_, err = f.svc.Cancel(ctx, f.owner, booking.ID, "maintenance")
		require.NoError(t, err)

		details, err := f.svc.Details(ctx, f.owner, booking.ID)
		require.NoError(t, err)
		got := make([]enums.BookingEventKind, 0, len(details.Events))
		for _, ev := range details.Events {
			got = append(got, ev.Kind)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("booking %d events (-want +got):\n%s", i, diff)
		}
	}
}
