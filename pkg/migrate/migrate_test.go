package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	require.NoError(t, err)
	require.Len(t, matches, 1, "expected exactly one migration matching %s", pattern)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestBookingsMigrationGuardsOverlap(t *testing.T) {
	content := readMigration(t, "*_create_bookings.sql")
	for _, sub := range []string{
		"CREATE EXTENSION IF NOT EXISTS btree_gist",
		"CONSTRAINT bookings_booking_number_key UNIQUE (booking_number)",
		"CONSTRAINT bookings_no_overlap EXCLUDE USING gist",
		"daterange(check_in, check_out, '[)') WITH &&",
		"WHERE (status <> 'cancelled')",
		"CREATE TABLE IF NOT EXISTS booking_extras",
		"CREATE TABLE IF NOT EXISTS booking_events",
	} {
		assert.Contains(t, content, sub)
	}
}

func TestPaymentsMigrationAllowsOneCompletedPayment(t *testing.T) {
	content := readMigration(t, "*_create_payments.sql")
	assert.Contains(t, content, "idx_payments_one_completed_per_booking ON payments (booking_id) WHERE status = 'completed'")
	assert.Contains(t, content, "idx_payments_external_id")
	assert.Contains(t, content, "CREATE TABLE IF NOT EXISTS payment_events")
}

func TestReviewsMigrationOnePerBooking(t *testing.T) {
	content := readMigration(t, "*_create_reviews.sql")
	assert.Contains(t, content, "CONSTRAINT reviews_booking_id_key UNIQUE (booking_id)")
	assert.Contains(t, content, "CHECK (rating BETWEEN 1 AND 5)")
}

func TestValidateDirAcceptsRepositoryMigrations(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("20250101000000_ok.sql", "-- +goose Up\n-- +goose Down\n")
	write("20250101000000_dupe.sql", "-- +goose Up\n-- +goose Down\n")
	write("bad-name.sql", "")
	write("20250101000001_no_down.sql", "-- +goose Up\n")

	err := ValidateDir(dir)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "duplicate migration version 20250101000000")
	assert.Contains(t, msg, `invalid migration filename "bad-name.sql"`)
	assert.Contains(t, msg, "-- +goose Down")
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Chalet Photos!", now)
	require.NoError(t, err)
	assert.Equal(t, "20250601123000_add_chalet_photos.sql", filepath.Base(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "-- +goose Up"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "Add Chalet Photos!", now)
	assert.Error(t, err)

	_, err = CreateSQLMigration(dir, "!!!", now)
	assert.Error(t, err)
}
