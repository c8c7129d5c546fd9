package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	got, ok := ParseTime("2024-10-10T12:10:10+02:00")
	require.True(t, ok)
	assert.Equal(t, "2024-10-10T10:10:10Z", got.Format(time.RFC3339))

	got, ok = ParseTime("2024-10-10T10:10:10.250Z")
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)

	got, ok := ParseTime(strconv.FormatInt(ts.Unix(), 10))
	require.True(t, ok)
	assert.True(t, ts.Equal(got))

	got, ok = ParseTime(strconv.FormatInt(ts.UnixMilli()+500, 10))
	require.True(t, ok)
	assert.True(t, ts.Add(500*time.Millisecond).Equal(got))

	got, ok = ParseTime("1700000000.5")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), got.Unix())
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	assert.True(t, ParseTimeDefault("", def).Equal(def))
	assert.True(t, ParseTimeDefault("garbage", def).Equal(def))
	assert.True(t, ParseTimeDefault("-5", def).Equal(def))
}

func TestDaysAgo(t *testing.T) {
	now := time.Date(2024, 3, 2, 13, 47, 12, 0, time.FixedZone("X", 3600))
	assert.Equal(t, time.Date(2024, 2, 1, 12, 47, 0, 0, time.UTC), DaysAgo(now, 30))
}
