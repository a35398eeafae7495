package rt

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rewired-gh/rtestimate/internal/models"
)

// priorEpsilon keeps the log of the gamma prior finite at Rt = 0.
const priorEpsilon = 1e-14

// Estimator computes daily Rt posteriors over a fixed grid.
// It holds no per-call state and may be reused across series.
type Estimator struct {
	cfg  Config
	grid *Grid
}

// NewEstimator validates cfg and builds its Rt grid.
func NewEstimator(cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator config: %w", err)
	}
	grid, err := NewGrid(cfg.RMax, cfg.RStep)
	if err != nil {
		return nil, err
	}
	return &Estimator{cfg: cfg, grid: grid}, nil
}

// Grid returns the estimator's Rt grid.
func (e *Estimator) Grid() *Grid { return e.grid }

// Config returns the estimator's parameters.
func (e *Estimator) Config() Config { return e.cfg }

// Posterior is the per-day probability mass over the Rt grid, stored as a
// grid × days matrix. Each column sums to 1.
type Posterior struct {
	grid  *Grid
	dates []time.Time
	probs *mat.Dense
}

// Grid returns the Rt grid the posterior is defined on.
func (p *Posterior) Grid() *Grid { return p.grid }

// Days returns the number of estimated days.
func (p *Posterior) Days() int { return len(p.dates) }

// Date returns the date of day j.
func (p *Posterior) Date(j int) time.Time { return p.dates[j] }

// Column returns a copy of the probability mass of day j in grid order.
func (p *Posterior) Column(j int) []float64 {
	return mat.Col(nil, j, p.probs)
}

// Matrix exposes the grid × days posterior for read-only use.
func (p *Posterior) Matrix() mat.Matrix { return p.probs }

// Estimate computes the posterior for every day of smoothed except the first,
// which only seeds the recursion with the gamma prior.
//
// Day t's likelihood at grid point r is the Poisson probability of count[t]
// given rate count[t-1]·exp(γ(r-1)). A day's posterior is the product of the
// likelihoods of the last Window days (the prior stands in for day 0), so
// evidence older than the window no longer affects it. Days with fewer than
// MinPeriods columns in their window are left out.
func (e *Estimator) Estimate(smoothed models.CaseSeries) (*Posterior, error) {
	if err := smoothed.Validate(); err != nil {
		return nil, fmt.Errorf("invalid smoothed series: %w", err)
	}
	if len(smoothed) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 smoothed days, got %d", ErrEmptyInput, len(smoothed))
	}

	ll := e.logLikelihoods(smoothed.Counts())
	n := len(smoothed)
	rows := e.grid.Len()

	var dates []time.Time
	var data []float64
	windowSum := make([]float64, rows)
	col := make([]float64, rows)
	for t := 1; t < n; t++ {
		first := max(0, t-e.cfg.Window+1)
		if t-first+1 < e.cfg.MinPeriods {
			continue
		}
		for i := range windowSum {
			windowSum[i] = 0
		}
		for k := first; k <= t; k++ {
			floats.Add(windowSum, mat.Col(col, k, ll))
		}
		if err := expNormalize(windowSum); err != nil {
			return nil, fmt.Errorf("%s: %w", smoothed[t].Date.Format(time.DateOnly), err)
		}
		dates = append(dates, smoothed[t].Date)
		data = append(data, windowSum...)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: no day has %d periods of support", ErrEmptyInput, e.cfg.MinPeriods)
	}

	// data is day-major; transpose into grid rows × day columns.
	probs := mat.NewDense(rows, len(dates), nil)
	probs.Copy(mat.NewDense(len(dates), rows, data).T())
	return &Posterior{grid: e.grid, dates: dates, probs: probs}, nil
}

// logLikelihoods returns the grid × days log-likelihood matrix. Column 0 is
// the log gamma prior; column t is the Poisson log-likelihood of day t.
func (e *Estimator) logLikelihoods(counts []float64) *mat.Dense {
	rows := e.grid.Len()
	ll := mat.NewDense(rows, len(counts), nil)

	prior := distuv.Gamma{Alpha: e.cfg.PriorShape, Beta: 1}
	growth := make([]float64, rows)
	for i := 0; i < rows; i++ {
		r := e.grid.At(i)
		ll.Set(i, 0, math.Log(prior.Prob(r)+priorEpsilon))
		growth[i] = math.Exp(e.cfg.Gamma * (r - 1))
	}

	for t := 1; t < len(counts); t++ {
		for i := 0; i < rows; i++ {
			v := distuv.Poisson{Lambda: counts[t-1] * growth[i]}.LogProb(counts[t])
			if math.IsNaN(v) {
				v = math.Inf(-1)
			}
			ll.Set(i, t, v)
		}
	}
	return ll
}

// expNormalize turns a log-space vector into a probability vector in place.
// The maximum is subtracted first so large log-likelihoods do not underflow.
func expNormalize(v []float64) error {
	m := floats.Max(v)
	if math.IsInf(m, 0) || math.IsNaN(m) {
		return ErrDegeneratePosterior
	}
	for i, x := range v {
		v[i] = math.Exp(x - m)
	}
	floats.Scale(1/floats.Sum(v), v)
	return nil
}
