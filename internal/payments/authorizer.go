package payments

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"
)

// Authorization is a card processor's verdict.
type Authorization struct {
	Approved      bool
	Code          string
	DeclineReason string
	Processor     string
}

// CardAuthorizer approves or declines a card charge synchronously.
type CardAuthorizer interface {
	Authorize(ctx context.Context, card CreditCard, amount decimal.Decimal) (Authorization, error)
}

// LocalAuthorizer stands in for a card processor when no gateway is
// configured. It approves cards that pass the Luhn checksum and have not
// expired.
type LocalAuthorizer struct {
	now func() time.Time
}

func NewLocalAuthorizer(now func() time.Time) *LocalAuthorizer {
	if now == nil {
		now = time.Now
	}
	return &LocalAuthorizer{now: now}
}

func (a *LocalAuthorizer) Authorize(_ context.Context, card CreditCard, amount decimal.Decimal) (Authorization, error) {
	result := Authorization{Processor: "local"}
	switch {
	case !amount.IsPositive():
		result.DeclineReason = "amount must be positive"
	case !luhnValid(card.Number):
		result.DeclineReason = "card number failed checksum"
	case cardExpired(card, a.now().UTC()):
		result.DeclineReason = "card expired"
	default:
		result.Approved = true
		result.Code = fmt.Sprintf("AUTH_%06d", rand.IntN(900000)+100000)
	}
	return result, nil
}

func luhnValid(number string) bool {
	if len(number) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// cardExpired treats a card as valid through the last day of its expiry month.
func cardExpired(card CreditCard, now time.Time) bool {
	if card.ExpiryYear != now.Year() {
		return card.ExpiryYear < now.Year()
	}
	return card.ExpiryMonth < int(now.Month())
}
