package clustering

import (
	"math"
	"testing"
)

// TestLikelihoodSingleObject checks the closed form for one object at the component center
func TestLikelihoodSingleObject(t *testing.T) {
	l := NewMixtureLikelihood(objectsAt([2]float64{3, 4}))
	got := l.Evaluate([]float64{3, 4, 1, 0, 1})

	// -log N(0; 0, I) = log(2π), mixing weight is exactly 1
	want := math.Log(2 * math.Pi)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %f, got %f", want, got)
	}
}

func TestLikelihoodSingularRejection(t *testing.T) {
	objects := objectsAt([2]float64{0, 0}, [2]float64{1, 1})
	l := NewMixtureLikelihood(objects)

	testCases := []struct {
		name   string
		params []float64
	}{
		{"zero covariance", []float64{0, 0, 0, 0, 0}},
		{"perfect correlation", []float64{0, 0, 4, 1, 4}},
		{"negative variance", []float64{0, 0, -1, 0, 1}},
		{"NaN correlation", []float64{0, 0, 1, math.NaN(), 1}},
		{"one bad component of two", []float64{0, 0, 1, 0, 1, 5, 5, 0, 0, 0}},
		{"truncated vector", []float64{0, 0, 1, 0}},
		{"empty vector", nil},
	}

	for _, tc := range testCases {
		got := l.Evaluate(tc.params)
		if got != MaxValue {
			t.Errorf("%s: expected MaxValue, got %g", tc.name, got)
		}
	}
}

func TestLikelihoodNoObjects(t *testing.T) {
	l := NewMixtureLikelihood(nil)
	if got := l.Evaluate([]float64{0, 0, 1, 0, 1}); got != MaxValue {
		t.Errorf("Expected MaxValue without objects, got %g", got)
	}
}

// TestLikelihoodMostProbableCluster checks the per-object side effect
func TestLikelihoodMostProbableCluster(t *testing.T) {
	objects := objectsAt([2]float64{0, 0}, [2]float64{1, 0}, [2]float64{50, 50}, [2]float64{51, 50})
	l := NewMixtureLikelihood(objects)

	value := l.Evaluate([]float64{
		50, 50, 2, 0, 2,
		0, 0, 2, 0, 2,
	})
	if value == MaxValue || math.IsNaN(value) {
		t.Fatalf("Expected finite likelihood, got %g", value)
	}

	want := []int{1, 1, 0, 0}
	for i, w := range want {
		if objects[i].MostProbableCluster != w {
			t.Errorf("Object %d: expected cluster %d, got %d", i, w, objects[i].MostProbableCluster)
		}
		if objects[i].MembershipProbability < 0.99 {
			t.Errorf("Object %d: expected confident membership, got %f", i, objects[i].MembershipProbability)
		}
	}
}

// TestLikelihoodPrefersTrueModel checks that a well-placed mixture scores better than a misplaced one
func TestLikelihoodPrefersTrueModel(t *testing.T) {
	objects := objectsAt([2]float64{0, 0}, [2]float64{1, 0}, [2]float64{50, 50}, [2]float64{51, 50})
	l := NewMixtureLikelihood(objects)

	good := l.Evaluate([]float64{0.5, 0, 1, 0, 1, 50.5, 50, 1, 0, 1})
	bad := l.Evaluate([]float64{25, 25, 1, 0, 1, 30, 30, 1, 0, 1})
	if !(good < bad) {
		t.Errorf("Expected true model (%f) to score lower than misplaced model (%f)", good, bad)
	}
}

// TestLikelihoodBufferReallocation evaluates with alternating component counts
func TestLikelihoodBufferReallocation(t *testing.T) {
	l := NewMixtureLikelihood(objectsAt([2]float64{0, 0}, [2]float64{3, 3}, [2]float64{6, 0}))
	one := []float64{3, 1, 4, 0, 4}
	three := []float64{0, 0, 1, 0, 1, 3, 3, 1, 0, 1, 6, 0, 1, 0, 1}

	first := l.Evaluate(one)
	l.Evaluate(three)
	again := l.Evaluate(one)
	if first != again {
		t.Errorf("Expected identical results for identical input, got %f and %f", first, again)
	}
}

func BenchmarkLikelihood(b *testing.B) {
	points := make([][2]float64, 200)
	for i := range points {
		points[i] = [2]float64{float64(i % 20), float64(i / 20)}
	}
	l := NewMixtureLikelihood(objectsAt(points...))
	params := []float64{
		5, 5, 10, 0.2, 10,
		15, 5, 10, -0.2, 10,
		10, 8, 20, 0, 5,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Evaluate(params)
	}
}
