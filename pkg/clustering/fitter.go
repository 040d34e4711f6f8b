package clustering

import (
	"errors"
	"fmt"
	"math"

	"fociclust/pkg/geometry"
	"fociclust/pkg/optimize"
)

// ErrNoFiniteFit is returned when every optimizer run produced the
// MaxValue sentinel.
var ErrNoFiniteFit = errors.New("no finite mixture fit found")

// ErrInvalidK is returned for a requested cluster count below one
var ErrInvalidK = errors.New("cluster count must be at least 1")

// FitterParams holds the optimizer settings used for every mixture fit
type FitterParams struct {
	// PopulationPerCluster sets the DE population to this many vectors per component
	PopulationPerCluster int

	ScaleFactor   float64
	CrossoverRate float64
	MaxIterations int
	Tolerance     float64

	// VarianceTolerance is the smallest variance a component may take, in px²
	VarianceTolerance float64

	// MaxAttempts bounds the optimizer restarts spent looking for a finite fit
	MaxAttempts int
}

// DefaultFitterParams returns the standard mixture fit settings
func DefaultFitterParams() FitterParams {
	return FitterParams{
		PopulationPerCluster: 5,
		ScaleFactor:          0.9,
		CrossoverRate:        0.05,
		MaxIterations:        10,
		Tolerance:            1e-3,
		VarianceTolerance:    1.0,
		MaxAttempts:          20,
	}
}

// MixtureFitter fits a k-component Gaussian mixture to the objects of an
// Assignment and materializes the resulting clusters.
type MixtureFitter struct {
	params    FitterParams
	optimizer optimize.Optimizer
}

// NewMixtureFitter creates a fitter that drives the given optimizer
func NewMixtureFitter(params FitterParams, optimizer optimize.Optimizer) *MixtureFitter {
	return &MixtureFitter{params: params, optimizer: optimizer}
}

// Settings builds the optimizer bounds for k components in a region of
// the given width and height: centers within [-10%, 110%] of the region,
// variances within [tolerance, (5% of width)²] and correlation in [-1, 1].
func (f *MixtureFitter) Settings(width, height float64, k int) optimize.Settings {
	tol := f.params.VarianceTolerance
	maxVar := max((0.05*width)*(0.05*width), tol)

	s := optimize.Settings{
		Lower:          make([]float64, 0, k*ParamsPerCluster),
		Upper:          make([]float64, 0, k*ParamsPerCluster),
		PopulationSize: f.params.PopulationPerCluster * k,
		ScaleFactor:    f.params.ScaleFactor,
		CrossoverRate:  f.params.CrossoverRate,
		MaxIterations:  f.params.MaxIterations,
		Tolerance:      f.params.Tolerance,
	}
	for c := 0; c < k; c++ {
		s.Lower = append(s.Lower, -0.1*width, -0.1*height, tol, -1, tol)
		s.Upper = append(s.Upper, 1.1*width, 1.1*height, maxVar, 1, maxVar)
	}
	return s
}

// Fit runs the optimizer until it returns a finite likelihood, at most
// MaxAttempts times, then rebuilds a with k clusters numbered 1..k: each
// cluster takes its fitted center and covariance and every object joins
// its most probable component. Components that attract no object stay
// empty. Fit returns the achieved log-likelihood (higher is better).
//
// On ErrNoFiniteFit the assignment is left untouched.
func (f *MixtureFitter) Fit(a *Assignment, width, height float64, k int) (float64, error) {
	if k < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(a.Objects) == 0 {
		return 0, fmt.Errorf("%w: no objects", ErrNoFiniteFit)
	}

	settings := f.Settings(width, height, k)
	objects := append([]ClusterObject(nil), a.Objects...)
	likelihood := NewMixtureLikelihood(objects)

	attempts := max(f.params.MaxAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		best := f.optimizer.Minimize(likelihood, settings)
		if best == nil {
			continue
		}
		// re-evaluate so the per-object side effects match the winner
		value := likelihood.Evaluate(best)
		if value == MaxValue {
			continue
		}

		a.Objects = objects
		a.Reset(k)
		for c := 0; c < k; c++ {
			p := best[c*ParamsPerCluster : (c+1)*ParamsPerCluster]
			cl := &a.Clusters[c]
			cl.Centroid = geometry.Point3D{X: p[0], Y: p[1]}
			cl.Covariance = geometry.Point3D{X: p[2], Y: fitCovariance(p[2], p[3], p[4]), Z: p[4]}
		}
		for i := range a.Objects {
			a.Assign(i, a.Objects[i].MostProbableCluster)
		}
		return -value, nil
	}
	return 0, fmt.Errorf("%w after %d attempts with k=%d", ErrNoFiniteFit, attempts, k)
}

// fitCovariance returns the off-diagonal term b = sqrt(a*d)*corr
func fitCovariance(a, corr, d float64) float64 {
	return math.Sqrt(math.Max(a*d, 0)) * corr
}
