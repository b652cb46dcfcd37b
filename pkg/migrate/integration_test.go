//go:build integration

package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/angelmondragon/chalets-backend/pkg/db"
)

const (
	pgUser     = "chalets"
	pgPassword = "chalets"
	pgDatabase = "chalets_test"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	port := nat.Port("5432/tcp")
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{string(port)},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgPassword,
				"POSTGRES_DB":       pgDatabase,
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(port),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPassword, host, mapped.Port(), pgDatabase)
	conn, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.PingContext(ctx))
	return conn
}

func TestMigrationsEnforceBookingInvariants(t *testing.T) {
	conn := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, Run(ctx, conn, "migrations", "up"))

	chaletID := uuid.New()
	_, err := conn.ExecContext(ctx,
		`INSERT INTO chalets (id, owner_id, name, nightly_price, max_guests) VALUES ($1, $2, 'Cedar', 500, 6)`,
		chaletID, uuid.New())
	require.NoError(t, err)

	insertBooking := func(number, status, checkIn, checkOut string) error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO bookings (id, booking_number, chalet_id, customer_id, check_in, check_out, guests, total_amount, status)
			 VALUES ($1, $2, $3, $4, $5, $6, 2, 1000, $7)`,
			uuid.New(), number, chaletID, uuid.New(), checkIn, checkOut, status)
		return err
	}

	require.NoError(t, insertBooking("BK2025000001", "confirmed", "2025-07-01", "2025-07-04"))

	err = insertBooking("BK2025000002", "pending", "2025-07-03", "2025-07-05")
	require.Error(t, err)
	require.True(t, db.IsExclusionViolation(err, "bookings_no_overlap"), "expected exclusion violation, got %v", err)

	// Check-out day is free for the next arrival.
	require.NoError(t, insertBooking("BK2025000003", "pending", "2025-07-04", "2025-07-06"))

	// Cancelled stays do not hold dates.
	require.NoError(t, insertBooking("BK2025000004", "cancelled", "2025-07-01", "2025-07-03"))

	err = insertBooking("BK2025000003", "pending", "2025-08-01", "2025-08-02")
	require.True(t, db.IsUniqueViolation(err, "bookings_booking_number_key"), "expected duplicate number, got %v", err)

	require.NoError(t, Run(ctx, conn, "migrations", "down"))
}
