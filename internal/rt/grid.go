package rt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Grid is the immutable set of candidate Rt values, evenly spaced over
// [0, max]. It is shared read-only by every day of a posterior.
type Grid struct {
	values []float64
	step   float64
}

// NewGrid builds a grid of round(max/step)+1 points from 0 to max inclusive.
func NewGrid(max, step float64) (*Grid, error) {
	if !(max > 0) || math.IsInf(max, 0) {
		return nil, fmt.Errorf("grid max must be positive and finite, got %v", max)
	}
	if !(step > 0) || step > max {
		return nil, fmt.Errorf("grid step must be in (0, %v], got %v", max, step)
	}
	n := int(math.Round(max/step)) + 1
	return &Grid{
		values: floats.Span(make([]float64, n), 0, max),
		step:   max / float64(n-1),
	}, nil
}

// Len returns the number of grid points.
func (g *Grid) Len() int { return len(g.values) }

// At returns the Rt value of grid point i.
func (g *Grid) At(i int) float64 { return g.values[i] }

// Step returns the spacing between adjacent grid points.
func (g *Grid) Step() float64 { return g.step }

// Values returns a copy of the grid points.
func (g *Grid) Values() []float64 {
	out := make([]float64, len(g.values))
	copy(out, g.values)
	return out
}

// Index returns the index of the grid point nearest to r, clamped to the grid.
func (g *Grid) Index(r float64) int {
	i := int(math.Round(r / g.step))
	if i < 0 {
		return 0
	}
	if i >= len(g.values) {
		return len(g.values) - 1
	}
	return i
}
