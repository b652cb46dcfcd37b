package bookingnumber

import (
	"context"
	"errors"
	"math/rand/v2"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

var numberPattern = regexp.MustCompile(`^BK2025\d{6}$`)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
}

func TestCandidateFormat(t *testing.T) {
	g := New(WithClock(fixedClock), WithSource(rand.NewPCG(1, 2)))
	for i := 0; i < 100; i++ {
		n := g.Candidate()
		require.Regexp(t, numberPattern, n)
		assert.NotEqual(t, "BK2025000000", n)
	}
	assert.Equal(t, "BK2025000042", Format(2025, 42))
}

func TestGenerateRetriesPastCollisions(t *testing.T) {
	g := New(WithClock(fixedClock), WithSource(rand.NewPCG(7, 7)))
	calls := 0
	exists := func(ctx context.Context, number string) (bool, error) {
		calls++
		return calls <= 2, nil
	}

	n, err := g.Generate(context.Background(), exists)
	require.NoError(t, err)
	assert.Regexp(t, numberPattern, n)
	assert.Equal(t, 3, calls)
}

func TestGenerateExhaustionIsInternal(t *testing.T) {
	g := New(WithClock(fixedClock), WithMaxAttempts(3))
	calls := 0
	_, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	assert.Equal(t, 3, calls)
}

func TestGenerateSurfacesLookupFailure(t *testing.T) {
	g := New()
	_, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) {
		return false, errors.New("db down")
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestTenThousandNumbersAreUnique(t *testing.T) {
	g := New(WithClock(fixedClock), WithSource(rand.NewPCG(2025, 6)), WithMaxAttempts(50))
	seen := make(map[string]struct{}, 10000)
	exists := func(_ context.Context, n string) (bool, error) {
		_, ok := seen[n]
		return ok, nil
	}
	for i := 0; i < 10000; i++ {
		n, err := g.Generate(context.Background(), exists)
		require.NoError(t, err)
		seen[n] = struct{}{}
	}
	assert.Len(t, seen, 10000)
}

func TestGenerateReturnsTypedClaimErrors(t *testing.T) {
	g := New(WithClock(fixedClock))
	conflict := pkgerrors.New(pkgerrors.CodeConflict, "dates taken")
	calls := 0
	_, err := g.Generate(context.Background(), func(context.Context, string) (bool, error) {
		calls++
		return false, conflict
	})
	assert.Same(t, conflict, err)
	assert.Equal(t, 1, calls)
}

func TestWithOverridesOnlyGivenOptions(t *testing.T) {
	base := New(WithClock(fixedClock), WithMaxAttempts(4))
	later := base.With(WithClock(func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }))

	assert.Equal(t, 4, later.MaxAttempts())
	assert.Regexp(t, `^BK2030\d{6}$`, later.Candidate())
	assert.Regexp(t, numberPattern, base.Candidate())
	assert.Equal(t, DefaultMaxAttempts, New(WithMaxAttempts(0)).MaxAttempts())
}
