package geometry

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestPointArithmetic(t *testing.T) {
	p := Point3D{1, 2, 3}
	q := Point3D{4, 6, 3}

	if got := p.Add(q); got != (Point3D{5, 8, 6}) {
		t.Errorf("Expected (5, 8, 6), got %v", got)
	}
	if got := q.Sub(p); got != (Point3D{3, 4, 0}) {
		t.Errorf("Expected (3, 4, 0), got %v", got)
	}
	if got := p.Scale(2); got != (Point3D{2, 4, 6}) {
		t.Errorf("Expected (2, 4, 6), got %v", got)
	}
	if got := q.Sub(p).Norm(); got != 5 {
		t.Errorf("Expected norm 5, got %f", got)
	}
}

func TestDistance(t *testing.T) {
	testCases := []struct {
		a, b Point3D
		want float64
	}{
		{Point3D{0, 0, 0}, Point3D{3, 4, 0}, 5},
		{Point3D{1, 1, 1}, Point3D{1, 1, 1}, 0},
		{Point3D{-1, 0, 0}, Point3D{1, 0, 0}, 2},
		{Point3D{0, 0, 0}, Point3D{1, 2, 2}, 3},
	}

	for _, tc := range testCases {
		if got := tc.a.DistanceTo(tc.b); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("DistanceTo(%v, %v): expected %f, got %f", tc.a, tc.b, tc.want, got)
		}
		if got := tc.b.DistanceTo(tc.a); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Expected DistanceTo to be symmetric for %v, %v", tc.a, tc.b)
		}
		if got := tc.a.Distance(tc.b); math.Abs(got-tc.want*tc.want) > 1e-12 {
			t.Errorf("Distance(%v, %v): expected squared %f, got %f", tc.a, tc.b, tc.want*tc.want, got)
		}
	}
}

type located Point3D

func (l located) Position() Point3D { return Point3D(l) }

func TestDistanceBetween(t *testing.T) {
	if got := DistanceBetween(located{0, 0, 0}, located{0, 3, 4}); got != 5 {
		t.Errorf("Expected 5, got %f", got)
	}
}

func TestMean(t *testing.T) {
	if got := Mean(nil); got != (Point3D{}) {
		t.Errorf("Expected origin for no points, got %v", got)
	}
	got := Mean([]Point3D{{0, 0, 0}, {2, 0, 0}, {0, 4, 0}, {2, 4, 8}})
	if got != (Point3D{1, 2, 2}) {
		t.Errorf("Expected (1, 2, 2), got %v", got)
	}
}

func TestNearestIndex(t *testing.T) {
	centers := []Point3D{{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {10, 10, 0}}
	idx := NewNearestIndex(centers)

	testCases := []struct {
		q    Point3D
		want int
		dist float64
	}{
		{Point3D{1, 1, 0}, 0, math.Sqrt2},
		{Point3D{9, 0, 0}, 1, 1},
		{Point3D{2, 13, 0}, 2, math.Sqrt(13)},
		{Point3D{10, 10, 0}, 3, 0},
		// equidistant from all four centers
		{Point3D{5, 5, 0}, 0, math.Sqrt(50)},
		// equidistant from centers 1 and 3
		{Point3D{12, 5, 0}, 1, math.Sqrt(29)},
	}

	for _, tc := range testCases {
		got, d := idx.Nearest(tc.q)
		if got != tc.want {
			t.Errorf("Nearest(%v): expected center %d, got %d", tc.q, tc.want, got)
		}
		if math.Abs(d-tc.dist) > 1e-9 {
			t.Errorf("Nearest(%v): expected distance %f, got %f", tc.q, tc.dist, d)
		}
	}
}

func TestNearestIndexEmpty(t *testing.T) {
	if got, _ := NewNearestIndex(nil).Nearest(Point3D{}); got != -1 {
		t.Errorf("Expected -1 for an empty index, got %d", got)
	}
}

// TestNearestIndexMatchesScan compares the tree against a linear scan
func TestNearestIndexMatchesScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 9))
	centers := make([]Point3D, 50)
	for i := range centers {
		centers[i] = Point3D{X: math.Round(rng.Float64() * 20), Y: math.Round(rng.Float64() * 20)}
	}
	idx := NewNearestIndex(centers)

	for i := 0; i < 200; i++ {
		q := Point3D{X: math.Round(rng.Float64() * 20), Y: math.Round(rng.Float64() * 20)}
		want := 0
		for j, c := range centers {
			if q.Distance(c) < q.Distance(centers[want]) {
				want = j
			}
		}
		if got, _ := idx.Nearest(q); got != want {
			t.Fatalf("Nearest(%v): expected center %d, got %d", q, want, got)
		}
	}
}

func TestNeighbourDistances(t *testing.T) {
	idx := NewNearestIndex([]Point3D{{0, 0, 0}, {3, 4, 0}, {3, 5, 0}, {20, 0, 0}})
	got := idx.NeighbourDistances()
	want := []float64{5, 1, 1, math.Sqrt(17*17 + 4*4)}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("Neighbour distance mismatch (-want +got):\n%s", diff)
	}

	if d := NewNearestIndex([]Point3D{{1, 1, 0}}).NeighbourDistances(); d[0] != 0 {
		t.Errorf("Expected 0 for a single center, got %f", d[0])
	}
}
