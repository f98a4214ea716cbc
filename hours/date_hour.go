package hours

import (
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02 15"
)

var displayLocation *time.Location = time.UTC

func SetDisplayTimezone(timezone string) error {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %s: %v", timezone, err)
	}
	displayLocation = loc
	return nil
}

func DisplayLocation() *time.Location {
	return displayLocation
}

// DateHour is a UTC hour bucket, e.g. "2025-12-08 13".
type DateHour struct {
	Date string
	Hour uint8
}

func (dh DateHour) String() string {
	return fmt.Sprintf("%s %02d", dh.Date, dh.Hour)
}

func (dh DateHour) LocalizedString() string {
	t, err := time.ParseInLocation(hourLayout, dh.String(), time.UTC)
	if err != nil {
		return dh.String()
	}
	localTime := t.In(displayLocation)
	return fmt.Sprintf("%s %02d", localTime.Format(dateLayout), localTime.Hour())
}

func FromTime(t time.Time) DateHour {
	if t.IsZero() {
		return DateHour{}
	}
	t = t.UTC()
	return DateHour{
		Date: t.Format(dateLayout),
		Hour: uint8(t.Hour()),
	}
}

func FormatTimeInDisplayTimezone(t time.Time) string {
	return t.In(displayLocation).Format("2006-01-02 15:04")
}
