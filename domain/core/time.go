package core

import (
	"time"
)

// Timestamp is a UTC instant recorded with a stored run
type Timestamp time.Time

// NewTimestamp converts t to UTC
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC())
}

// Now returns the current instant
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// String formats the instant for listings
func (t Timestamp) String() string {
	return time.Time(t).Format("2006-01-02 15:04:05")
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tt time.Time
	if err := tt.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = NewTimestamp(tt)
	return nil
}
