// Package bookingnumber mints human-readable booking numbers: "BK", the
// four-digit year and a zero-padded random integer in [1, 999999].
package bookingnumber

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

const (
	Prefix             = "BK"
	maxSuffix          = 999999
	DefaultMaxAttempts = 10
)

// ClaimFunc tries to take number. It reports taken when the number already
// belongs to another booking, which makes Generate draw again.
type ClaimFunc func(ctx context.Context, number string) (taken bool, err error)

// Generator produces candidate numbers and retries on collisions.
type Generator struct {
	intN        func(n int) int
	now         func() time.Time
	maxAttempts int
}

type Option func(*Generator)

// WithSource makes candidate generation deterministic.
func WithSource(src rand.Source) Option {
	r := rand.New(src)
	return func(g *Generator) { g.intN = r.IntN }
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func New(opts ...Option) *Generator {
	g := &Generator{
		intN:        rand.IntN,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// With returns a copy of g with opts applied.
func (g *Generator) With(opts ...Option) *Generator {
	clone := *g
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// Candidate returns one number without checking for collisions.
func (g *Generator) Candidate() string {
	return Format(g.now().UTC().Year(), g.intN(maxSuffix)+1)
}

// Generate draws at most MaxAttempts candidates, stopping at the first one
// claim accepts. Exhausting the attempts is an internal error. Typed errors
// from claim are returned unchanged; others are dependency failures.
func (g *Generator) Generate(ctx context.Context, claim ClaimFunc) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := g.Candidate()
		if claim == nil {
			return candidate, nil
		}
		taken, err := claim(ctx, candidate)
		if err != nil {
			if pkgerrors.As(err) != nil {
				return "", err
			}
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check booking number")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted(g.maxAttempts)
}

// ErrExhausted is returned when no free number was found.
func ErrExhausted(attempts int) error {
	return pkgerrors.Newf(pkgerrors.CodeInternal, "booking number generation exhausted after %d attempts", attempts)
}

// Format renders the number for year and suffix.
func Format(year, suffix int) string {
	return fmt.Sprintf("%s%04d%06d", Prefix, year, suffix)
}
