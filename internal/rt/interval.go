package rt

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/rtestimate/internal/models"
)

// Interval is a credible interval in Rt units.
type Interval struct {
	Low  float64
	High float64
}

// MostLikely returns, per day, the grid value carrying the most probability
// mass. Ties go to the lowest Rt.
func MostLikely(p *Posterior) []float64 {
	out := make([]float64, p.Days())
	for j := range out {
		out[j] = p.grid.At(floats.MaxIdx(p.Column(j)))
	}
	return out
}

// HighestDensityInterval returns, per day, the narrowest run of grid points
// whose cumulative mass exceeds mass.
func HighestDensityInterval(p *Posterior, mass float64) ([]Interval, error) {
	out := make([]Interval, p.Days())
	for j := range out {
		lo, hi, ok := densestWindow(p.Column(j), mass)
		if !ok {
			return nil, fmt.Errorf("%s: %w at mass %v", p.Date(j).Format(time.DateOnly), ErrNoIntervalFound, mass)
		}
		out[j] = Interval{Low: p.grid.At(lo), High: p.grid.At(hi)}
	}
	return out, nil
}

// densestWindow scans i in ascending order and, for each i, stops at the
// first j > i with cumsum[j]-cumsum[i] > mass. A candidate replaces the best
// one only when strictly narrower, so the lowest i wins among equal widths.
func densestWindow(pmf []float64, mass float64) (lo, hi int, ok bool) {
	if len(pmf) < 2 {
		return 0, 0, false
	}
	cumsum := floats.CumSum(make([]float64, len(pmf)), pmf)
	last := cumsum[len(cumsum)-1]
	for i := range cumsum {
		// cumsum is non-decreasing: once the tail is too light, no later i qualifies.
		if !(last-cumsum[i] > mass) {
			break
		}
		for j := i + 1; j < len(cumsum); j++ {
			if cumsum[j]-cumsum[i] > mass {
				if !ok || j-i < hi-lo {
					lo, hi, ok = i, j, true
				}
				break
			}
		}
	}
	return lo, hi, ok
}

// Summarize reduces every day of p to its most likely Rt and the highest
// density interval at the given mass.
func Summarize(p *Posterior, mass float64) ([]models.Estimate, error) {
	intervals, err := HighestDensityInterval(p, mass)
	if err != nil {
		return nil, err
	}
	ml := MostLikely(p)

	estimates := make([]models.Estimate, p.Days())
	for j := range estimates {
		estimates[j] = models.Estimate{
			Date:       p.Date(j),
			MostLikely: ml[j],
			Low:        intervals[j].Low,
			High:       intervals[j].High,
		}
	}
	return estimates, nil
}
