package rt

import "errors"

var (
	// ErrEmptyInput means the smoothed series has too few days to estimate anything.
	ErrEmptyInput = errors.New("no days to estimate")
	// ErrDegeneratePosterior means a day's windowed log-likelihood is non-finite
	// at every grid point, so its posterior cannot be normalized.
	ErrDegeneratePosterior = errors.New("degenerate posterior")
	// ErrNoIntervalFound means no grid window reaches the requested credible mass.
	ErrNoIntervalFound = errors.New("no credible interval found")
)
