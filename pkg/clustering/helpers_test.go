package clustering

import (
	"testing"

	"fociclust/pkg/geometry"
	"fociclust/pkg/labelmask"
	"fociclust/pkg/optimize"
)

// paintSquare draws a size x size object with the given label whose top-left corner is (x, y)
func paintSquare(m *labelmask.Mask, x, y, size, label int) {
	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			m.Set(x+dx, y+dy, 0, label)
		}
	}
}

// paintClump draws a 2 x 5 grid of 2x2 objects starting at (x, y) with 6px
// spacing, labelling them first..first+9. It returns the mean of the
// object centroids.
func paintClump(m *labelmask.Mask, x, y, first int) geometry.Point3D {
	var centers []geometry.Point3D
	label := first
	for row := 0; row < 2; row++ {
		for col := 0; col < 5; col++ {
			px, py := x+col*6, y+row*6
			paintSquare(m, px, py, 2, label)
			centers = append(centers, geometry.Point3D{X: float64(px) + 0.5, Y: float64(py) + 0.5})
			label++
		}
	}
	return geometry.Mean(centers)
}

// objectsAt creates unassigned objects at the given 2D positions
func objectsAt(points ...[2]float64) []ClusterObject {
	objects := make([]ClusterObject, len(points))
	for i, p := range points {
		objects[i] = ClusterObject{
			Label:      i + 1,
			Centroid:   geometry.Point3D{X: p[0], Y: p[1]},
			PixelCount: 1,
			Cluster:    -1,
		}
	}
	return objects
}

// assignmentOf builds an arena from objects and a per-object cluster index
func assignmentOf(objects []ClusterObject, k int, clusters ...int) *Assignment {
	a := NewAssignment(objects, k)
	for i, c := range clusters {
		a.Assign(i, c)
	}
	a.Recompute()
	return a
}

// countingOptimizer records how often it is called and delegates to next,
// returning nil when next is nil.
type countingOptimizer struct {
	calls int
	next  optimize.Optimizer
}

func (o *countingOptimizer) Minimize(obj optimize.Objective, s optimize.Settings) []float64 {
	o.calls++
	if o.next == nil {
		return nil
	}
	return o.next.Minimize(obj, s)
}

// fixedOptimizer always proposes the same parameter vector
type fixedOptimizer struct {
	params []float64
	calls  int
}

func (o *fixedOptimizer) Minimize(obj optimize.Objective, s optimize.Settings) []float64 {
	o.calls++
	return append([]float64(nil), o.params...)
}

// checkMaskAgreement verifies that result's mask and object graph describe the same clustering
func checkMaskAgreement(t *testing.T, objects *labelmask.Mask, result *Result) {
	t.Helper()
	if err := result.Assignment.Validate(); err != nil {
		t.Fatalf("Invalid assignment: %v", err)
	}
	k, err := result.Clusters.ValidateDense()
	if err != nil {
		t.Fatalf("Cluster ids are not dense: %v", err)
	}
	if k != result.K || k != result.Assignment.K() {
		t.Errorf("Expected mask k=%d to match result k=%d and assignment k=%d", k, result.K, result.Assignment.K())
	}
	for i, v := range objects.Data {
		if v == 0 {
			if result.Clusters.Data[i] != 0 {
				t.Fatalf("Background voxel %d labelled %d", i, result.Clusters.Data[i])
			}
			continue
		}
		obj := result.Assignment.Objects[v-1]
		want := result.Assignment.Clusters[obj.Cluster].ID
		if result.Clusters.Data[i] != want {
			t.Fatalf("Voxel %d of object %d labelled %d, expected cluster %d", i, v, result.Clusters.Data[i], want)
		}
	}
}
