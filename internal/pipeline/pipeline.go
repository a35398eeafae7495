// Package pipeline runs one Rt estimation over a case series: validation,
// smoothing, posterior estimation and interval extraction. It performs no
// I/O beyond logging; fetching and publishing are left to the caller.
package pipeline

import (
	"fmt"
	"time"

	"github.com/rewired-gh/rtestimate/internal/logger"
	"github.com/rewired-gh/rtestimate/internal/models"
	"github.com/rewired-gh/rtestimate/internal/rt"
)

// Result holds every intermediate product of a run
type Result struct {
	Original  models.CaseSeries // input trimmed to the smoothed dates
	Smoothed  models.CaseSeries
	Posterior *rt.Posterior
	Estimates []models.Estimate
}

// Latest returns the estimate of the most recent day.
func (r *Result) Latest() models.Estimate {
	return r.Estimates[len(r.Estimates)-1]
}

// Run estimates Rt for cases. Any failure aborts the whole run; no partial
// result is returned.
func Run(cases models.CaseSeries, e *rt.Estimator) (*Result, error) {
	start := time.Now()
	cfg := e.Config()

	if err := cases.Validate(); err != nil {
		return nil, fmt.Errorf("invalid case series: %w", err)
	}
	if err := cases.CheckContiguous(); err != nil {
		return nil, err
	}
	logger.Debug("Validated %d days of cases", len(cases))

	original, smoothed := rt.Smooth(cases, cfg.SmoothingWindow, cfg.SmoothingStdDev)
	if trimmed := len(cases) - len(smoothed); trimmed > 0 {
		logger.Info("Trimmed %d leading days through the last zero-valued smoothed day", trimmed)
	}
	if len(smoothed) == 0 {
		return nil, fmt.Errorf("%w: every smoothed day is zero", rt.ErrEmptyInput)
	}
	logger.Debug("Smoothed series: %d days from %s", len(smoothed), smoothed[0].Date.Format(time.DateOnly))

	posterior, err := e.Estimate(smoothed)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate posteriors: %w", err)
	}
	logger.Debug("Computed posteriors for %d days over %d grid points", posterior.Days(), posterior.Grid().Len())

	estimates, err := rt.Summarize(posterior, cfg.CredibleMass)
	if err != nil {
		return nil, fmt.Errorf("failed to extract intervals: %w", err)
	}

	res := &Result{
		Original:  original,
		Smoothed:  smoothed,
		Posterior: posterior,
		Estimates: estimates,
	}
	latest := res.Latest()
	logger.Info("Estimated Rt for %d days in %v; latest %s: %.2f [%.2f, %.2f]",
		len(estimates), time.Since(start), latest.Date.Format(time.DateOnly),
		latest.MostLikely, latest.Low, latest.High)
	return res, nil
}
