package clustering

import (
	"fmt"

	"fociclust/pkg/geometry"
	"fociclust/pkg/labelmask"
)

// ObjectsFromMask builds one ClusterObject per label of a dense object
// mask. Object i carries label i+1 and the mean coordinate of its voxels.
func ObjectsFromMask(m *labelmask.Mask) ([]ClusterObject, error) {
	n, err := m.ValidateDense()
	if err != nil {
		return nil, fmt.Errorf("object mask: %w", err)
	}

	objects := make([]ClusterObject, n)
	sums := make([]geometry.Point3D, n)
	m.ForEach(func(x, y, z, v int) {
		if v == 0 {
			return
		}
		sums[v-1] = sums[v-1].Add(geometry.Point3D{X: float64(x), Y: float64(y), Z: float64(z)})
		objects[v-1].PixelCount++
	})
	for i := range objects {
		objects[i].Label = i + 1
		objects[i].Cluster = -1
		objects[i].Centroid = sums[i].Scale(1 / float64(objects[i].PixelCount))
	}
	return objects, nil
}

// InitializeFromMask creates the objects of m and seeds k clusters with
// k-means++ style sampling: the first center is a uniformly random object,
// each further center is drawn with probability proportional to an
// object's distance to its nearest chosen center. Every object then joins
// its nearest center. k is capped at the object count.
func (c *Clusterer) InitializeFromMask(m *labelmask.Mask, k int) (*Assignment, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	objects, err := ObjectsFromMask(m)
	if err != nil {
		return nil, err
	}
	n := len(objects)
	k = min(k, n)
	a := NewAssignment(objects, k)
	if n == 0 {
		return a, nil
	}

	chosen := make([]bool, n)
	centers := make([]int, 0, k)
	first := c.rng.IntN(n)
	centers = append(centers, first)
	chosen[first] = true

	nearest := make([]float64, n)
	for i := range objects {
		nearest[i] = objects[i].Centroid.DistanceTo(objects[first].Centroid)
	}

	cumulative := make([]float64, n)
	for len(centers) < k {
		total := 0.0
		for i := range objects {
			if !chosen[i] {
				total += nearest[i]
			}
			cumulative[i] = total
		}

		next := -1
		if total > 0 {
			r := c.rng.Float64() * total
			for i := range objects {
				if !chosen[i] && r < cumulative[i] {
					next = i
					break
				}
			}
		}
		if next < 0 {
			// remaining objects coincide with a center
			for i := range objects {
				if !chosen[i] {
					next = i
					break
				}
			}
		}

		centers = append(centers, next)
		chosen[next] = true
		for i := range objects {
			nearest[i] = min(nearest[i], objects[i].Centroid.DistanceTo(objects[next].Centroid))
		}
	}

	points := make([]geometry.Point3D, len(centers))
	for i, o := range centers {
		points[i] = objects[o].Centroid
	}
	index := geometry.NewNearestIndex(points)
	for i := range a.Objects {
		ci, _ := index.Nearest(a.Objects[i].Centroid)
		a.Assign(i, ci)
	}
	a.Recompute()
	return a, nil
}

// InitializeFromClusterMask builds the objects of objects and assigns each
// to the cluster painted under it in clusters. An object whose voxels
// straddle several clusters joins the one covering most of them, ties going
// to the lower id. Cluster centroids are the mean of their members'
// centroids; clusters that receive no object are dropped.
func InitializeFromClusterMask(objects, clusters *labelmask.Mask) (*Assignment, error) {
	if !objects.SameShape(clusters) {
		return nil, fmt.Errorf("%w: objects %dx%dx%d, clusters %dx%dx%d", labelmask.ErrSizeMismatch,
			objects.Width, objects.Height, objects.Depth, clusters.Width, clusters.Height, clusters.Depth)
	}
	objs, err := ObjectsFromMask(objects)
	if err != nil {
		return nil, err
	}
	k, err := clusters.ValidateDense()
	if err != nil {
		return nil, fmt.Errorf("cluster mask: %w", err)
	}

	a := NewAssignment(objs, k)
	votes := majorityVotes(objects, clusters, len(objs))
	for i, id := range votes {
		if id == 0 {
			return nil, fmt.Errorf("object %d has no cluster label", i+1)
		}
		a.Assign(i, id-1)
	}
	a.Compact()
	a.Recompute()
	return a, nil
}

// majorityVotes returns, per object, the region label of regions covering
// most of its voxels (0 when none is covered). Ties go to the lower label.
func majorityVotes(objects, regions *labelmask.Mask, n int) []int {
	counts := make([]map[int]int, n)
	for i, v := range objects.Data {
		r := regions.Data[i]
		if v == 0 || r == 0 {
			continue
		}
		if counts[v-1] == nil {
			counts[v-1] = make(map[int]int)
		}
		counts[v-1][r]++
	}

	votes := make([]int, n)
	for i, c := range counts {
		best, bestCount := 0, 0
		for r, cnt := range c {
			if cnt > bestCount || (cnt == bestCount && r < best) {
				best, bestCount = r, cnt
			}
		}
		votes[i] = best
	}
	return votes
}
