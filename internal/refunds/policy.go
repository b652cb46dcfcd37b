package refunds

import "time"

// Tier is one step of the published refund policy.
type Tier struct {
	MinHoursBeforeCheckIn int `json:"min_hours_before_check_in"`
	Percentage            int `json:"percentage"`
}

var tiers = []Tier{
	{MinHoursBeforeCheckIn: 24, Percentage: 100},
	{MinHoursBeforeCheckIn: 12, Percentage: 50},
	{MinHoursBeforeCheckIn: 0, Percentage: 0},
}

// Policy returns the published tiers, most generous first. The tiers are
// advisory; Refund does not apply them.
func Policy() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// TierPercentage returns the share of the payment the published policy
// suggests refunding when cancelling at now. A tier applies only when strictly
// more than its hours remain.
func TierPercentage(now, checkIn time.Time) int {
	remaining := checkIn.Sub(now)
	for _, tier := range tiers {
		if tier.MinHoursBeforeCheckIn == 0 {
			break
		}
		if remaining > time.Duration(tier.MinHoursBeforeCheckIn)*time.Hour {
			return tier.Percentage
		}
	}
	return 0
}
