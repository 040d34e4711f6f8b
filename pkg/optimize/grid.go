package optimize

// GridSearch evaluates the objective on a regular grid spanning the bounds
// and returns the best grid point. It is deterministic, which makes it a
// convenient stand-in for DifferentialEvolution in tests. The population,
// crossover and iteration settings are ignored.
type GridSearch struct {
	// Steps is the number of grid points per parameter (minimum 2).
	Steps int
}

// Minimize walks the whole grid in lexicographic order. Ties keep the
// first point found.
func (g GridSearch) Minimize(obj Objective, s Settings) []float64 {
	if err := s.Validate(); err != nil {
		return nil
	}
	steps := max(g.Steps, 2)
	dim := s.Dim()

	counter := make([]int, dim)
	point := make([]float64, dim)
	var best []float64
	bestValue := 0.0

	for {
		for j := range point {
			frac := float64(counter[j]) / float64(steps-1)
			point[j] = s.Lower[j] + frac*(s.Upper[j]-s.Lower[j])
		}
		if v := obj.Evaluate(point); best == nil || v < bestValue {
			best = append(best[:0], point...)
			bestValue = v
		}

		// advance the mixed-radix counter
		j := 0
		for ; j < dim; j++ {
			counter[j]++
			if counter[j] < steps {
				break
			}
			counter[j] = 0
		}
		if j == dim {
			break
		}
	}
	return best
}
