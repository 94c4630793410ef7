package ta

import "math"

// Valid reports whether an indicator value is defined.
func Valid(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMASeries is the rolling mean aligned with vals; the first n-1 entries are NaN.
func SMASeries(vals []float64, n int) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= n {
			sum -= vals[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMASeries is an exponential mean with alpha 2/(span+1), seeded with the
// first value and defined from the first bar on.
func EMASeries(vals []float64, span int) []float64 {
	out := nanSlice(len(vals))
	if span <= 0 || len(vals) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	prev := math.NaN()
	for i, v := range vals {
		switch {
		case !Valid(v):
			out[i] = prev
			continue
		case !Valid(prev):
			prev = v
		default:
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// RSI is the simple-average RSI of the last period price changes.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	return rsiFrom(gain, loss)
}

// RSISeries evaluates RSI at every bar. The first period entries are NaN.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 {
		return out
	}
	for i := period; i < len(closes); i++ {
		out[i] = RSI(closes[:i+1], period)
	}
	return out
}

func rsiFrom(gain, loss float64) float64 {
	switch {
	case gain == 0 && loss == 0:
		return math.NaN()
	case loss == 0:
		return 100.0
	}
	rs := gain / loss
	return 100.0 - (100.0 / (1.0 + rs))
}

// PriorMax is the max of the n values before each index, current excluded.
func PriorMax(vals []float64, n int) []float64 {
	return prior(vals, n, math.Max)
}

// PriorMin is the min of the n values before each index, current excluded.
func PriorMin(vals []float64, n int) []float64 {
	return prior(vals, n, math.Min)
}

func prior(vals []float64, n int, pick func(a, b float64) float64) []float64 {
	out := nanSlice(len(vals))
	if n <= 0 {
		return out
	}
	for i := n; i < len(vals); i++ {
		acc := vals[i-n]
		for j := i - n + 1; j < i; j++ {
			acc = pick(acc, vals[j])
		}
		out[i] = acc
	}
	return out
}

// RollingMax is the max over a trailing window that includes the current
// value, defined once minPeriods values are available.
func RollingMax(vals []float64, window, minPeriods int) []float64 {
	return rolling(vals, window, minPeriods, math.Max)
}

// RollingMin mirrors RollingMax.
func RollingMin(vals []float64, window, minPeriods int) []float64 {
	return rolling(vals, window, minPeriods, math.Min)
}

func rolling(vals []float64, window, minPeriods int, pick func(a, b float64) float64) []float64 {
	out := nanSlice(len(vals))
	if window <= 0 {
		return out
	}
	for i := range vals {
		from := i - window + 1
		if from < 0 {
			from = 0
		}
		if i-from+1 < minPeriods {
			continue
		}
		acc := vals[from]
		for j := from + 1; j <= i; j++ {
			acc = pick(acc, vals[j])
		}
		out[i] = acc
	}
	return out
}

// Sub returns a-b element-wise.
func Sub(a, b []float64) []float64 {
	out := nanSlice(len(a))
	for i := range a {
		if i < len(b) {
			out[i] = a[i] - b[i]
		}
	}
	return out
}
