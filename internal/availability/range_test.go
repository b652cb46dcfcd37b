package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func mustRange(t *testing.T, in, out string) Range {
	t.Helper()
	r, err := NewRange(day(in), day(out))
	require.NoError(t, err)
	return r
}

func TestOverlapPlacements(t *testing.T) {
	existing := mustRange(t, "2025-06-10", "2025-06-15")
	cases := []struct {
		name     string
		in, out  string
		overlaps bool
	}{
		{"disjoint before", "2025-06-01", "2025-06-05", false},
		{"disjoint after", "2025-06-20", "2025-06-22", false},
		{"checkout equals existing check-in", "2025-06-08", "2025-06-10", false},
		{"check-in equals existing checkout", "2025-06-15", "2025-06-18", false},
		{"partial overlap at start", "2025-06-08", "2025-06-11", true},
		{"partial overlap at end", "2025-06-14", "2025-06-17", true},
		{"contained", "2025-06-11", "2025-06-13", true},
		{"containing", "2025-06-09", "2025-06-16", true},
		{"exact match", "2025-06-10", "2025-06-15", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			candidate := mustRange(t, tc.in, tc.out)
			assert.Equal(t, tc.overlaps, candidate.Overlaps(existing))
			assert.Equal(t, tc.overlaps, existing.Overlaps(candidate), "overlap must be symmetric")
		})
	}
}

func TestNewRangeRejectsInvertedDates(t *testing.T) {
	_, err := NewRange(day("2025-06-04"), day("2025-06-04"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = NewRange(day("2025-06-05"), day("2025-06-04"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNightsUsesCalendarDays(t *testing.T) {
	in := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	out := time.Date(2025, 6, 4, 1, 0, 0, 0, time.UTC)
	r, err := NewRange(in, out)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Nights())
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("2025-07-10", "2025-07-12")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-10/2025-07-12", r.String())

	_, err = ParseRange("10/07/2025", "2025-07-12")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
