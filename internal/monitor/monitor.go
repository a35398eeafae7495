// Package monitor detects revisions between consecutive estimation runs of a
// region.
//
// Back-filled case reports change the tail of the series between runs, so the
// most recent estimates of the previous run are re-estimated by the next one.
// Compare matches both runs by date and reports the largest shift of the most
// likely value together with any change of the latest verdict (growing,
// shrinking or uncertain).
//
// A revision is significant when the largest shift reaches the configured
// threshold or the verdict changed.
package monitor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/rewired-gh/rtestimate/internal/logger"
	"github.com/rewired-gh/rtestimate/internal/models"
	"github.com/rewired-gh/rtestimate/internal/storage"
)

// Monitor compares new runs against the stored history
type Monitor struct {
	storage   *storage.Storage
	threshold float64
}

// New creates a new Monitor. threshold is the absolute change of the most
// likely Rt that makes a revision significant.
func New(s *storage.Storage, threshold float64) *Monitor {
	return &Monitor{storage: s, threshold: threshold}
}

// Compare returns the revision of estimates against the latest stored run for
// region. It returns nil without error when region has no stored run yet.
// Call it before saving the new run.
func (m *Monitor) Compare(region string, estimates []models.Estimate) (*models.Revision, error) {
	if len(estimates) == 0 {
		return nil, fmt.Errorf("no estimates to compare for %s", region)
	}

	prevRun, err := m.storage.LatestRun(region)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Debug("No previous run for %s, skipping revision check", region)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load previous run: %w", err)
	}
	previous, err := m.storage.GetEstimates(prevRun.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous estimates: %w", err)
	}

	rev := Diff(previous, estimates, m.threshold)
	rev.PreviousRunID = prevRun.ID
	logger.Debug("Revision against run %s: overlap=%d, max_shift=%+.3f, verdict %s -> %s",
		prevRun.ID, rev.Overlap, rev.MaxShift, rev.PreviousVerdict, rev.Verdict)
	return rev, nil
}

// Diff compares two runs' estimates day by day. Both slices must be non-empty
// and in date order.
func Diff(previous, current []models.Estimate, threshold float64) *models.Revision {
	byDate := make(map[string]models.Estimate, len(previous))
	for _, e := range previous {
		byDate[e.Date.Format(time.DateOnly)] = e
	}

	rev := &models.Revision{
		Verdict: models.VerdictOf(current[len(current)-1]),
	}
	if len(previous) > 0 {
		rev.PreviousVerdict = models.VerdictOf(previous[len(previous)-1])
	} else {
		rev.PreviousVerdict = rev.Verdict
	}

	var shifts []float64
	for _, e := range current {
		old, ok := byDate[e.Date.Format(time.DateOnly)]
		if !ok {
			continue
		}
		shift := e.MostLikely - old.MostLikely
		// Earliest day wins ties
		if len(shifts) == 0 || math.Abs(shift) > math.Abs(rev.MaxShift) {
			rev.MaxShift = shift
			rev.MaxShiftDate = e.Date
		}
		shifts = append(shifts, shift)
	}

	rev.Overlap = len(shifts)
	if rev.Overlap > 0 {
		rev.MeanShift = floats.Sum(shifts) / float64(rev.Overlap)
	}
	rev.Significant = rev.VerdictChanged() || (rev.Overlap > 0 && math.Abs(rev.MaxShift) >= threshold)
	return rev
}
