package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAndStdDev(t *testing.T) {
	xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(xs), 1e-12)
	// population std
	assert.InDelta(t, 2.0, StdDev(xs), 1e-12)
	assert.Zero(t, Mean(nil))
	assert.Zero(t, StdDev(nil))
}

func TestSMA(t *testing.T) {
	_, ok := SMA([]float64{1, 2}, 3)
	assert.False(t, ok)

	v, ok := SMA([]float64{100, 1, 2, 3}, 3)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12)
}

func TestRSI(t *testing.T) {
	rising := make([]float64, 15)
	for i := range rising {
		rising[i] = float64(100 + i)
	}
	v, ok := RSI(rising, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	falling := make([]float64, 15)
	for i := range falling {
		falling[i] = float64(100 - i)
	}
	v, ok = RSI(falling, 14)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-12)

	v, ok = RSI(rising[:14], 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)

	_, ok = RSI(rising[:13], 14)
	assert.False(t, ok)
}

func TestPercentChange(t *testing.T) {
	v, ok := PercentChange(110, []float64{100, 101, 102, 103, 104}, 5)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-12)

	_, ok = PercentChange(1, []float64{0, 1}, 2)
	assert.False(t, ok)
}

func TestOBV(t *testing.T) {
	obv := OBV([]float64{10, 11, 11, 9}, []float64{5, 6, 7, 8})
	assert.Equal(t, []float64{0, 6, 6, -2}, obv)
	assert.Nil(t, OBV(nil, nil))
}

func TestSimpleReturns(t *testing.T) {
	r := SimpleReturns([]float64{100, 110, 99})
	require.Len(t, r, 2)
	assert.InDelta(t, 0.1, r[0], 1e-12)
	assert.InDelta(t, -0.1, r[1], 1e-12)
	assert.False(t, math.IsNaN(SimpleReturns([]float64{0, 1})[0]))
}
