package utils

import "time"

// Now returns the current time in UTC, truncated to microseconds to match
// postgres timestamp precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}

func TimePtr(t time.Time) *time.Time {
	return &t
}
