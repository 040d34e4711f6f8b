package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// indexedPoint carries the caller's slice index through the tree.
type indexedPoint struct {
	Point3D
	index int
}

// Compare implements the kdtree.Comparable interface
func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.Point3D.Compare(c.(indexedPoint).Point3D, d)
}

// Distance implements the kdtree.Comparable interface
func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return p.Point3D.Distance(c.(indexedPoint).Point3D)
}

// indexedPoints is a collection of indexedPoint that satisfies kdtree.Interface
type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p indexedPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{indexedPoints: p, Dim: d}, kdtree.MedianOfMedians(pointPlane{indexedPoints: p, Dim: d}))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for indexedPoints
type pointPlane struct {
	indexedPoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.indexedPoints[i].Compare(p.indexedPoints[j], p.Dim) < 0
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{indexedPoints: p.indexedPoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}

// NearestIndex answers nearest-neighbour queries against a fixed set of
// centers. Ties are broken towards the lower center index so results do not
// depend on tree layout.
type NearestIndex struct {
	tree    *kdtree.Tree
	centers []Point3D
}

// NewNearestIndex builds an index over centers. The slice is copied.
func NewNearestIndex(centers []Point3D) *NearestIndex {
	pts := make(indexedPoints, len(centers))
	for i, c := range centers {
		pts[i] = indexedPoint{Point3D: c, index: i}
	}
	idx := &NearestIndex{centers: append([]Point3D(nil), centers...)}
	if len(pts) > 0 {
		idx.tree = kdtree.New(pts, false)
	}
	return idx
}

// Nearest returns the index of the center closest to q and the Euclidean
// distance to it. It returns -1 when the index is empty.
func (n *NearestIndex) Nearest(q Point3D) (int, float64) {
	if n.tree == nil {
		return -1, 0
	}
	_, d := n.tree.Nearest(indexedPoint{Point3D: q})
	// the sentinel must sort strictly above every tie at d
	keeper := kdtree.NewDistKeeper(math.Nextafter(d, math.Inf(1)))
	n.tree.NearestSet(keeper, indexedPoint{Point3D: q})
	best := -1
	bestDist := 0.0
	for _, cd := range keeper.Heap {
		if cd.Comparable == nil {
			continue
		}
		ip := cd.Comparable.(indexedPoint)
		if best < 0 || cd.Dist < bestDist || (cd.Dist == bestDist && ip.index < best) {
			best = ip.index
			bestDist = cd.Dist
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, q.DistanceTo(n.centers[best])
}

// NeighbourDistances returns, for every center, the distance to the closest
// other center. With fewer than two centers every entry is zero.
func (n *NearestIndex) NeighbourDistances() []float64 {
	out := make([]float64, len(n.centers))
	if len(n.centers) < 2 {
		return out
	}
	for i, c := range n.centers {
		// the query point itself is always one of the two nearest
		keeper := kdtree.NewNKeeper(2)
		n.tree.NearestSet(keeper, indexedPoint{Point3D: c, index: i})
		best := math.Inf(1)
		for _, cd := range keeper.Heap {
			if cd.Comparable == nil || cd.Comparable.(indexedPoint).index == i {
				continue
			}
			best = math.Min(best, cd.Dist)
		}
		out[i] = math.Sqrt(best)
	}
	return out
}
