package refunds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierPercentage(t *testing.T) {
	checkIn := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		before time.Duration
		want   int
	}{
		{48 * time.Hour, 100},
		{24*time.Hour + time.Minute, 100},
		{24 * time.Hour, 50},
		{13 * time.Hour, 50},
		{12 * time.Hour, 0},
		{time.Hour, 0},
		{-time.Hour, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TierPercentage(checkIn.Add(-tc.before), checkIn), "%s before check-in", tc.before)
	}
}

func TestPolicyReturnsCopy(t *testing.T) {
	p := Policy()
	p[0].Percentage = 1
	assert.Equal(t, 100, Policy()[0].Percentage)
	assert.Len(t, Policy(), 3)
}
