package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// Estimate is the reduced Rt posterior for one day: the most likely grid
// value and the bounds of the highest density interval.
type Estimate struct {
	Date       time.Time `json:"date"`
	MostLikely float64   `json:"ml"`
	Low        float64   `json:"low"`
	High       float64   `json:"high"`
}

// Validate checks that all estimate fields are valid
func (e *Estimate) Validate() error {
	if e.Date.IsZero() {
		return errors.New("estimate date must be set")
	}
	for _, v := range []float64{e.MostLikely, e.Low, e.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.New("estimate values must be finite and non-negative")
		}
	}
	if e.Low > e.MostLikely || e.MostLikely > e.High {
		return errors.New("estimate must satisfy low <= ml <= high")
	}
	return nil
}

// Run describes one estimation run for a region.
type Run struct {
	ID        string    `json:"id"`
	Region    string    `json:"region"`
	CreatedAt time.Time `json:"created_at"`
	FirstDate time.Time `json:"first_date"` // first estimated day
	LastDate  time.Time `json:"last_date"`  // last estimated day
	Days      int       `json:"days"`
	Latest    Estimate  `json:"latest"`
}

// NewRun builds run metadata from the estimates of a finished run.
func NewRun(region string, createdAt time.Time, estimates []Estimate) *Run {
	r := &Run{
		ID:        uuid.New().String(),
		Region:    region,
		CreatedAt: createdAt,
		Days:      len(estimates),
	}
	if len(estimates) > 0 {
		r.FirstDate = estimates[0].Date
		r.LastDate = estimates[len(estimates)-1].Date
		r.Latest = estimates[len(estimates)-1]
	}
	return r
}

// Validate checks that all run fields are valid
func (r *Run) Validate() error {
	if r.ID == "" {
		return errors.New("run ID must not be empty")
	}
	if r.Region == "" {
		return errors.New("region must not be empty")
	}
	if r.Days < 1 {
		return errors.New("run must contain at least one estimate")
	}
	if r.LastDate.Before(r.FirstDate) {
		return errors.New("last date must not be before first date")
	}
	if r.CreatedAt.After(time.Now()) {
		return errors.New("created at must not be in the future")
	}
	return r.Latest.Validate()
}
