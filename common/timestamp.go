package common

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Timestamp is a time.Time which keeps millisecond precision,
// maps to a nullable DATETIME(6) column, and marshals to RFC3339 with milliseconds.
type Timestamp time.Time

func CurrentTimestamp() Timestamp {
	return Timestamp(time.Now().Round(time.Millisecond))
}

func TimestampOfDate(year int, month time.Month, day, hour, min, sec, nsec int, loc *time.Location) Timestamp {
	return Timestamp(time.Date(year, month, day, hour, min, sec, nsec, loc).Round(time.Millisecond))
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t Timestamp) Value() (driver.Value, error) {
	if time.Time(t).IsZero() {
		return nil, nil
	}
	return time.Time(t), nil
}

func (t *Timestamp) Scan(v interface{}) error {
	if v == nil {
		*t = Timestamp{}
		return nil
	}
	timeValue, ok := v.(time.Time)
	if !ok {
		return fmt.Errorf("unable to scan %T into Timestamp: %v", v, v)
	}
	*t = Timestamp(timeValue.Round(time.Millisecond))
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if time.Time(t).IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + time.Time(t).Format("2006-01-02T15:04:05.000Z07:00") + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	value := strings.Trim(string(data), `"`)
	if value == "" || value == "null" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed.Round(time.Millisecond))
	return nil
}
