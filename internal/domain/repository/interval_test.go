package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeInterval(t *testing.T) {
	assert.Equal(t, Interval1h, NormalizeInterval(""))
	assert.Equal(t, Interval4h, NormalizeInterval(" 4H "))
	assert.Equal(t, Interval1h, NormalizeInterval("2h"))
	assert.Equal(t, 10080, Interval1w.Minutes())
	assert.Equal(t, 0, Interval("3m").Minutes())
	assert.False(t, IsValidInterval("1s"))
}
