package rt

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/rewired-gh/rtestimate/internal/models"
)

var day0 = time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)

// series builds a contiguous daily series starting at day0.
func series(counts ...float64) models.CaseSeries {
	s := make(models.CaseSeries, len(counts))
	for i, c := range counts {
		s[i] = models.Observation{Date: day0.AddDate(0, 0, i), Count: c}
	}
	return s
}

// posteriorOf wraps hand-written probability columns in a Posterior.
func posteriorOf(g *Grid, columns ...[]float64) *Posterior {
	probs := mat.NewDense(g.Len(), len(columns), nil)
	dates := make([]time.Time, len(columns))
	for j, c := range columns {
		probs.SetCol(j, c)
		dates[j] = day0.AddDate(0, 0, j+1)
	}
	return &Posterior{grid: g, dates: dates, probs: probs}
}
