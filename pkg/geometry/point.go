// Package geometry provides the small vector type used for object and
// cluster centroids, together with the k-d tree plumbing used for
// nearest-centroid lookups.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Point3D represents a point (or vector) in image space.
// For 2D masks Z is always zero.
type Point3D struct {
	X, Y, Z float64
}

// Add returns p + q
func (p Point3D) Add(q Point3D) Point3D {
	return Point3D{p.X + q.X, p.Y + q.Y, p.Z + q.Z}
}

// Sub returns p - q
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{p.X - q.X, p.Y - q.Y, p.Z - q.Z}
}

// Scale returns p multiplied by s
func (p Point3D) Scale(s float64) Point3D {
	return Point3D{p.X * s, p.Y * s, p.Z * s}
}

// Norm returns the Euclidean length of p
func (p Point3D) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Point3D) DistanceTo(q Point3D) float64 {
	return q.Sub(p).Norm()
}

// Compare implements the kdtree.Comparable interface
func (p Point3D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point3D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point3D) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points.
// kdtree requires the squared form; use DistanceTo for the metric distance.
func (p Point3D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point3D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// Positioned is implemented by anything that has a location in image space.
// Objects and clusters both implement it so the same distance code compares
// object to object, object to cluster and cluster to cluster.
type Positioned interface {
	Position() Point3D
}

// DistanceBetween returns |b.Position() - a.Position()|.
func DistanceBetween(a, b Positioned) float64 {
	return a.Position().DistanceTo(b.Position())
}

// Mean returns the arithmetic mean of the given points.
// An empty slice yields the origin.
func Mean(points []Point3D) Point3D {
	if len(points) == 0 {
		return Point3D{}
	}
	var sum Point3D
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(points)))
}
