package util

import (
	"strconv"
	"time"
)

// unix timestamps above this are taken as milliseconds
const unixMillisThreshold = 1e12

// ParseTime accepts RFC3339 (with or without fraction) and unix seconds or
// milliseconds, fractional seconds included.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return time.Time{}, false
	}
	if f >= unixMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), true
}

// ParseTimeDefault parses time or returns def if empty or invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// DaysAgo returns now minus n days, truncated to the minute.
func DaysAgo(now time.Time, n int) time.Time {
	return now.UTC().AddDate(0, 0, -n).Truncate(time.Minute)
}
