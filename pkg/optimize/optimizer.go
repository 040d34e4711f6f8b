// Package optimize defines the objective and optimizer abstractions consumed
// by the clustering engine, along with two implementations: a stochastic
// differential-evolution minimizer and a deterministic grid search used in
// tests.
package optimize

import (
	"errors"
	"fmt"
)

// Objective is a scalar function to be minimized
type Objective interface {
	Evaluate(params []float64) float64
}

// ObjectiveFunc adapts an ordinary function to the Objective interface
type ObjectiveFunc func(params []float64) float64

// Evaluate calls f(params)
func (f ObjectiveFunc) Evaluate(params []float64) float64 { return f(params) }

// Optimizer searches the box [Lower, Upper] for the parameter vector that
// minimizes an objective.
type Optimizer interface {
	Minimize(obj Objective, s Settings) []float64
}

// Settings configures a single minimization run
type Settings struct {
	Lower []float64 // Lower bound per parameter
	Upper []float64 // Upper bound per parameter

	PopulationSize int     // Number of candidate vectors (DE)
	ScaleFactor    float64 // Differential weight F (DE)
	CrossoverRate  float64 // Binomial crossover probability CR (DE)
	MaxIterations  int     // Generations (DE)
	Tolerance      float64 // Relative fitness spread at which the run stops
}

// ErrBadBounds is returned by Validate for inconsistent bounds
var ErrBadBounds = errors.New("invalid parameter bounds")

// Validate checks that the bounds are usable
func (s Settings) Validate() error {
	if len(s.Lower) == 0 {
		return fmt.Errorf("%w: no parameters", ErrBadBounds)
	}
	if len(s.Lower) != len(s.Upper) {
		return fmt.Errorf("%w: %d lower bounds, %d upper bounds", ErrBadBounds, len(s.Lower), len(s.Upper))
	}
	for i := range s.Lower {
		if s.Lower[i] > s.Upper[i] {
			return fmt.Errorf("%w: parameter %d has lower %g > upper %g", ErrBadBounds, i, s.Lower[i], s.Upper[i])
		}
	}
	return nil
}

// Dim returns the number of parameters
func (s Settings) Dim() int { return len(s.Lower) }

// clamp returns v limited to the bounds of parameter i
func (s Settings) clamp(i int, v float64) float64 {
	if v < s.Lower[i] {
		return s.Lower[i]
	}
	if v > s.Upper[i] {
		return s.Upper[i]
	}
	return v
}
