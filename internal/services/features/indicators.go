package features

import "math"

// Mean returns the arithmetic mean, 0 for an empty series.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	sum2 := 0.0
	for _, x := range xs {
		d := x - m
		sum2 += d * d
	}
	return math.Sqrt(sum2 / float64(len(xs)))
}

// SMA is the mean of the last n values. Returns false if there are fewer than n.
func SMA(xs []float64, n int) (float64, bool) {
	if n <= 0 || len(xs) < n {
		return 0, false
	}
	return Mean(xs[len(xs)-n:]), true
}

// RSI computes the relative strength index over at most the last `period`
// changes using simple averages. It needs at least `period` prices.
// A series without losses yields 100.
func RSI(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period || len(prices) < 2 {
		return 0, false
	}
	start := len(prices) - period
	if start < 1 {
		start = 1
	}
	gains, losses := 0.0, 0.0
	for i := start; i < len(prices); i++ {
		ch := prices[i] - prices[i-1]
		if ch > 0 {
			gains += ch
		} else {
			losses -= ch
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// PercentChange returns (cur-ref)/ref*100 where ref is xs[len-back].
func PercentChange(cur float64, xs []float64, back int) (float64, bool) {
	if back <= 0 || len(xs) < back {
		return 0, false
	}
	ref := xs[len(xs)-back]
	if ref == 0 {
		return 0, false
	}
	return (cur - ref) / ref * 100, true
}

// OBV returns the cumulative on-balance volume series starting at 0.
func OBV(prices, volumes []float64) []float64 {
	n := len(prices)
	if len(volumes) < n {
		n = len(volumes)
	}
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := 1; i < n; i++ {
		switch {
		case prices[i] > prices[i-1]:
			out[i] = out[i-1] + volumes[i]
		case prices[i] < prices[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// SimpleReturns computes r_t = (v_t - v_{t-1}) / v_{t-1}.
// Steps from a non-positive value contribute 0.
func SimpleReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (values[i]-prev)/prev)
	}
	return out
}
