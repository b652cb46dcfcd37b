// Package dbtest opens throwaway sqlite databases carrying the booking schema.
// The statements mirror the goose migrations minus postgres-only features
// (the gist exclusion constraint, partial indexes on status); services guard
// those invariants in code as well.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/chalets-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chalets (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		nightly_price TEXT NOT NULL,
		max_guests INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		booking_number TEXT NOT NULL,
		chalet_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		check_in DATETIME NOT NULL,
		check_out DATETIME NOT NULL,
		guests INTEGER NOT NULL,
		total_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		status TEXT NOT NULL,
		special_requests TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT bookings_booking_number_key UNIQUE (booking_number)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_extras (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS booking_events (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		actor_id TEXT,
		actor_role TEXT NOT NULL,
		payload TEXT NOT NULL,
		occurred_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		method TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		external_id TEXT UNIQUE,
		redirect_url TEXT,
		details TEXT,
		failure_reason TEXT,
		paid_at DATETIME,
		refunded_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS payment_events (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		actor_id TEXT,
		actor_role TEXT NOT NULL,
		payload TEXT NOT NULL,
		occurred_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id TEXT PRIMARY KEY,
		chalet_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		booking_id TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT,
		is_approved BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME,
		CONSTRAINT reviews_booking_id_key UNIQUE (booking_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a gorm handle on a private in-memory database with the full
// schema applied. All access goes through a single connection, so
// transactions are serialized the way row locks serialize them in postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:chalets_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

// Client wraps Open in a *db.Client.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}
