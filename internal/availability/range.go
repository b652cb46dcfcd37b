// Package availability decides whether a chalet is free for a stay.
//
// Stays are half-open ranges [CheckIn, CheckOut): a checkout on day N does
// not conflict with a check-in on day N.
package availability

import (
	"time"

	pkgerrors "github.com/angelmondragon/chalets-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

// Range is a stay from CheckIn (inclusive) to CheckOut (exclusive).
type Range struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// NewRange normalizes both ends to UTC midnight and validates the order.
func NewRange(checkIn, checkOut time.Time) (Range, error) {
	r := Range{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// ParseRange reads YYYY-MM-DD dates.
func ParseRange(checkIn, checkOut string) (Range, error) {
	in, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return Range{}, pkgerrors.New(pkgerrors.CodeValidation, "check_in must be YYYY-MM-DD").
			WithDetails(map[string]string{"check_in": checkIn})
	}
	out, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return Range{}, pkgerrors.New(pkgerrors.CodeValidation, "check_out must be YYYY-MM-DD").
			WithDetails(map[string]string{"check_out": checkOut})
	}
	return NewRange(in, out)
}

// Validate requires check-out to fall strictly after check-in.
func (r Range) Validate() error {
	if r.CheckIn.IsZero() || r.CheckOut.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "check_in and check_out are required")
	}
	if !r.CheckOut.After(r.CheckIn) {
		return pkgerrors.New(pkgerrors.CodeValidation, "check_out must be after check_in").
			WithDetails(map[string]string{
				"check_in":  r.CheckIn.Format(dateLayout),
				"check_out": r.CheckOut.Format(dateLayout),
			})
	}
	return nil
}

// Overlaps applies the half-open test inA < outB && inB < outA.
func (r Range) Overlaps(other Range) bool {
	return r.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(r.CheckOut)
}

// Nights is the number of calendar nights in the range.
func (r Range) Nights() int {
	return int(Day(r.CheckOut).Sub(Day(r.CheckIn)).Hours() / 24)
}

func (r Range) String() string {
	return r.CheckIn.Format(dateLayout) + "/" + r.CheckOut.Format(dateLayout)
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
