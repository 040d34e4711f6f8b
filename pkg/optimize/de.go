package optimize

import (
	"math"
	"math/rand/v2"
)

// DifferentialEvolution is a rand/1/bin differential-evolution minimizer.
// It is not safe for concurrent use because it draws from a single random
// source.
type DifferentialEvolution struct {
	rng *rand.Rand
}

// NewDifferentialEvolution creates a minimizer drawing from rng
func NewDifferentialEvolution(rng *rand.Rand) *DifferentialEvolution {
	return &DifferentialEvolution{rng: rng}
}

// Minimize runs at most s.MaxIterations generations and returns the best
// vector seen. Invalid bounds yield nil.
func (de *DifferentialEvolution) Minimize(obj Objective, s Settings) []float64 {
	if err := s.Validate(); err != nil {
		return nil
	}
	dim := s.Dim()
	np := max(s.PopulationSize, 4)
	iterations := max(s.MaxIterations, 1)

	pop := make([][]float64, np)
	fitness := make([]float64, np)
	for i := range pop {
		pop[i] = make([]float64, dim)
		for j := range pop[i] {
			pop[i][j] = s.Lower[j] + de.rng.Float64()*(s.Upper[j]-s.Lower[j])
		}
		fitness[i] = obj.Evaluate(pop[i])
	}

	trial := make([]float64, dim)
	for gen := 0; gen < iterations; gen++ {
		for i := 0; i < np; i++ {
			a, b, c := de.pickDistinct(np, i)
			jrand := de.rng.IntN(dim)
			for j := 0; j < dim; j++ {
				if j == jrand || de.rng.Float64() < s.CrossoverRate {
					trial[j] = s.clamp(j, pop[a][j]+s.ScaleFactor*(pop[b][j]-pop[c][j]))
				} else {
					trial[j] = pop[i][j]
				}
			}
			if f := obj.Evaluate(trial); f <= fitness[i] {
				copy(pop[i], trial)
				fitness[i] = f
			}
		}
		if converged(fitness, s.Tolerance) {
			break
		}
	}

	best := 0
	for i := range fitness {
		if fitness[i] < fitness[best] {
			best = i
		}
	}
	return append([]float64(nil), pop[best]...)
}

// pickDistinct draws three population indices that differ from each other and from i.
func (de *DifferentialEvolution) pickDistinct(np, i int) (int, int, int) {
	a := i
	for a == i {
		a = de.rng.IntN(np)
	}
	b := i
	for b == i || b == a {
		b = de.rng.IntN(np)
	}
	c := i
	for c == i || c == a || c == b {
		c = de.rng.IntN(np)
	}
	return a, b, c
}

// converged reports whether the population fitness spread is within tol of the best value
func converged(fitness []float64, tol float64) bool {
	if tol <= 0 {
		return false
	}
	best, worst := math.Inf(1), math.Inf(-1)
	for _, f := range fitness {
		best = math.Min(best, f)
		worst = math.Max(worst, f)
	}
	if math.IsInf(best, 0) || math.IsInf(worst, 0) || math.IsNaN(best) || math.IsNaN(worst) {
		return false
	}
	return worst-best <= tol*(math.Abs(best)+tol)
}
