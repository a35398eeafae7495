// Package models defines the core domain entities for rtestimate.
// These models represent daily case-count series, per-day Rt estimates and
// the metadata of an estimation run. All models include built-in validation
// so that bad input is rejected before it reaches the estimator.
//
// Terminology:
//   - Observation: the number of new confirmed cases reported for one calendar day.
//   - CaseSeries: consecutive observations for one region, oldest first.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrGap is returned when a case series skips one or more calendar days.
var ErrGap = errors.New("case series is not contiguous")

// Observation is the new case count for a single calendar day.
type Observation struct {
	Date  time.Time `json:"date"`
	Count float64   `json:"count"` // daily new cases, never cumulative
}

// CaseSeries is an ordered sequence of daily observations.
// Smoothed series share this shape; their counts are integer-valued floats.
type CaseSeries []Observation

// Validate checks that counts are non-negative and finite and that dates
// are strictly increasing. An empty series is valid.
func (s CaseSeries) Validate() error {
	for i, o := range s {
		if o.Date.IsZero() {
			return fmt.Errorf("observation %d: date must be set", i)
		}
		if math.IsNaN(o.Count) || math.IsInf(o.Count, 0) {
			return fmt.Errorf("observation %s: count must be finite", o.Date.Format(time.DateOnly))
		}
		if o.Count < 0 {
			return fmt.Errorf("observation %s: count must not be negative", o.Date.Format(time.DateOnly))
		}
		if i > 0 && !o.Date.After(s[i-1].Date) {
			return fmt.Errorf("observation %s: dates must be strictly increasing", o.Date.Format(time.DateOnly))
		}
	}
	return nil
}

// CheckContiguous returns ErrGap if any two consecutive observations are not
// exactly one calendar day apart.
func (s CaseSeries) CheckContiguous() error {
	for i := 1; i < len(s); i++ {
		prev, cur := truncateDay(s[i-1].Date), truncateDay(s[i].Date)
		if !cur.Equal(prev.AddDate(0, 0, 1)) {
			return fmt.Errorf("%w: %s is followed by %s", ErrGap,
				prev.Format(time.DateOnly), cur.Format(time.DateOnly))
		}
	}
	return nil
}

// FillGaps returns a copy of s with a zero-count observation inserted for
// every missing calendar day.
func (s CaseSeries) FillGaps() CaseSeries {
	if len(s) == 0 {
		return CaseSeries{}
	}
	filled := make(CaseSeries, 0, len(s))
	filled = append(filled, s[0])
	for i := 1; i < len(s); i++ {
		next := truncateDay(filled[len(filled)-1].Date).AddDate(0, 0, 1)
		cur := truncateDay(s[i].Date)
		for next.Before(cur) {
			filled = append(filled, Observation{Date: next})
			next = next.AddDate(0, 0, 1)
		}
		filled = append(filled, s[i])
	}
	return filled
}

// Dates returns the observation dates in order.
func (s CaseSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s))
	for i, o := range s {
		dates[i] = o.Date
	}
	return dates
}

// Counts returns the observation counts in order.
func (s CaseSeries) Counts() []float64 {
	counts := make([]float64, len(s))
	for i, o := range s {
		counts[i] = o.Count
	}
	return counts
}

// Since returns the suffix of s starting at the first observation dated on
// or after t. The returned slice shares storage with s.
func (s CaseSeries) Since(t time.Time) CaseSeries {
	for i, o := range s {
		if !o.Date.Before(t) {
			return s[i:]
		}
	}
	return CaseSeries{}
}

// Before returns the prefix of s strictly before t.
func (s CaseSeries) Before(t time.Time) CaseSeries {
	for i, o := range s {
		if !o.Date.Before(t) {
			return s[:i]
		}
	}
	return s
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
