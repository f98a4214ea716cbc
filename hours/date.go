package hours

import (
	"fmt"
	"time"
)

// Date is a calendar day without any time zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar day of t in t's own location, no conversion is made.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(str string) (Date, error) {
	t, err := time.Parse(dateLayout, str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", str, err)
	}
	return DateOf(t), nil
}

func Today(loc *time.Location) Date {
	return DateOf(time.Now().In(loc))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) AddDays(days int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, days))
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}
