package models

import (
	"time"

	"github.com/pkg/errors"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"

	// localTimestampLayout is an ISO timestamp without an offset.
	localTimestampLayout = "2006-01-02T15:04:05.999999999"
)

// Stamp is the denormalized commit time kept on sales and turned-away entries
// so that date ranges can be filtered without parsing the timestamp.
type Stamp struct {
	Timestamp time.Time
	Date      string
	Time      string
}

// NewStamp derives date and time-of-day from t in t's location.
func NewStamp(t time.Time) Stamp {
	return Stamp{
		Timestamp: t,
		Date:      t.Format(DateLayout),
		Time:      t.Format(TimeLayout),
	}
}

// Hour returns the hour bucket of the time-of-day field, or -1 when it is unparseable.
func (s Stamp) Hour() int {
	t, err := time.Parse(TimeLayout, s.Time)
	if err != nil {
		return -1
	}
	return t.Hour()
}

// ParseTimestamp accepts RFC 3339 and offset-less ISO timestamps. Empty input
// yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localTimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse date %q", s)
	}
	return t, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
