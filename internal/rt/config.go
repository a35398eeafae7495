// Package rt estimates the effective reproduction number Rt from daily case
// counts by sequential Bayesian updating over a discretized Rt grid.
//
// The pipeline has three stages, each consuming the previous one's output:
//
//	Smooth       gaussian rolling mean, then trim up to the last zero day
//	Estimate     Poisson likelihood of each day given the previous day,
//	             summed in log space over a trailing window and normalized
//	Summarize    most likely Rt and highest density interval per day
//
// All tunables live in Config; nothing is process-wide.
package rt

import (
	"fmt"
	"math"
)

// Config holds the estimation parameters.
type Config struct {
	SmoothingWindow int     // days in the gaussian smoothing window
	SmoothingStdDev float64 // kernel standard deviation, in days
	RMax            float64 // upper bound of the Rt grid
	RStep           float64 // grid resolution
	Gamma           float64 // reciprocal of the serial interval, in 1/days
	Window          int     // trailing days of likelihood per posterior
	MinPeriods      int     // minimum days in the window for a posterior
	PriorShape      float64 // shape of the gamma prior seeding the first day
	CredibleMass    float64 // target mass of the highest density interval
}

// DefaultConfig returns the parameters used for the published estimates:
// a serial interval of 4 days and a 95% interval over a 0..12 grid.
func DefaultConfig() Config {
	return Config{
		SmoothingWindow: 7,
		SmoothingStdDev: 2,
		RMax:            12,
		RStep:           0.01,
		Gamma:           0.25,
		Window:          7,
		MinPeriods:      1,
		PriorShape:      3,
		CredibleMass:    0.95,
	}
}

// Validate checks that all parameters are usable.
func (c Config) Validate() error {
	if c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing window must be at least 1")
	}
	if !(c.SmoothingStdDev > 0) {
		return fmt.Errorf("smoothing std dev must be positive")
	}
	if !(c.RMax > 0) || math.IsInf(c.RMax, 0) {
		return fmt.Errorf("r max must be positive and finite")
	}
	if !(c.RStep > 0) || c.RStep > c.RMax {
		return fmt.Errorf("r step must be in (0, r max]")
	}
	if !(c.Gamma > 0) {
		return fmt.Errorf("gamma must be positive")
	}
	if c.Window < 1 {
		return fmt.Errorf("window must be at least 1")
	}
	if c.MinPeriods < 1 || c.MinPeriods > c.Window {
		return fmt.Errorf("min periods must be between 1 and window (%d)", c.Window)
	}
	if !(c.PriorShape > 0) {
		return fmt.Errorf("prior shape must be positive")
	}
	if !(c.CredibleMass > 0) || c.CredibleMass >= 1 {
		return fmt.Errorf("credible mass must be in (0, 1)")
	}
	return nil
}
