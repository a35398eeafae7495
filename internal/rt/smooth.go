package rt

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/rtestimate/internal/models"
)

// Smooth denoises cases with a centered gaussian rolling mean and trims the
// unreliable leading segment.
//
// Each day is the weighted mean of the windowSize days around it, with
// weights from a gaussian kernel of the given standard deviation. Near the
// ends of the series only the days present contribute and the weights are
// renormalized over them. Means are rounded to the nearest integer.
//
// A smoothed day equal to zero would give the next day a Poisson rate of
// zero, so everything up to and including the last zero day is dropped from
// both returned series. An all-zero history yields two empty series.
func Smooth(cases models.CaseSeries, windowSize int, stdDev float64) (original, smoothed models.CaseSeries) {
	if windowSize < 1 {
		windowSize = 1
	}
	counts := cases.Counts()
	weights := gaussianWindow(windowSize, stdDev)
	after := (windowSize - 1) / 2
	before := windowSize - 1 - after

	smoothed = make(models.CaseSeries, len(cases))
	start := 0
	for t := range cases {
		lo, hi := t-before, t+after+1
		wLo, wHi := 0, windowSize
		if lo < 0 {
			wLo = -lo
			lo = 0
		}
		if hi > len(counts) {
			wHi -= hi - len(counts)
			hi = len(counts)
		}
		w := weights[wLo:wHi]
		mean := floats.Dot(w, counts[lo:hi]) / floats.Sum(w)

		smoothed[t] = models.Observation{Date: cases[t].Date, Count: math.RoundToEven(mean)}
		if smoothed[t].Count == 0 {
			start = t + 1
		}
	}

	original = make(models.CaseSeries, len(cases)-start)
	copy(original, cases[start:])
	return original, smoothed[start:]
}

// gaussianWindow returns n kernel weights centered on (n-1)/2.
func gaussianWindow(n int, std float64) []float64 {
	w := make([]float64, n)
	center := float64(n-1) / 2
	for k := range w {
		x := (float64(k) - center) / std
		w[k] = math.Exp(-0.5 * x * x)
	}
	return w
}
