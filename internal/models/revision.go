package models

import "time"

// Verdict classifies an estimate by where its interval lies relative to 1.
type Verdict string

const (
	VerdictGrowing   Verdict = "growing"   // low > 1
	VerdictShrinking Verdict = "shrinking" // high < 1
	VerdictUncertain Verdict = "uncertain" // interval contains 1
)

// VerdictOf returns the verdict for e.
func VerdictOf(e Estimate) Verdict {
	switch {
	case e.Low > 1:
		return VerdictGrowing
	case e.High < 1:
		return VerdictShrinking
	default:
		return VerdictUncertain
	}
}

// Revision describes how a new run differs from the previous run of the same
// region on the days both runs estimated.
type Revision struct {
	PreviousRunID   string    `json:"previous_run_id"`
	Overlap         int       `json:"overlap"`         // days estimated by both runs
	MaxShift        float64   `json:"max_shift"`       // signed ML change with the largest magnitude
	MaxShiftDate    time.Time `json:"max_shift_date"`
	MeanShift       float64   `json:"mean_shift"`
	PreviousVerdict Verdict   `json:"previous_verdict"` // of the previous run's latest day
	Verdict         Verdict   `json:"verdict"`
	Significant     bool      `json:"significant"`
}

// VerdictChanged reports whether the latest verdict differs from the previous run's.
func (r *Revision) VerdictChanged() bool {
	return r.PreviousVerdict != r.Verdict
}
