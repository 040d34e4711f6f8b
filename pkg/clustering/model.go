package clustering

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"fociclust/pkg/geometry"
	"fociclust/pkg/labelmask"
)

// ErrInconsistentAssignment is returned by Validate when the object and
// cluster sides of an Assignment disagree.
var ErrInconsistentAssignment = errors.New("inconsistent cluster assignment")

// ClusterObject is one segmented input object.
type ClusterObject struct {
	// Label is the object's region id in the source mask
	Label int

	// Centroid is the mean coordinate of the object's voxels
	Centroid geometry.Point3D

	// PixelCount is the number of voxels behind Centroid
	PixelCount int

	// MembershipProbability is the posterior of MostProbableCluster from
	// the last likelihood evaluation. In a committed complex clustering it
	// is the posterior of the fit that placed the object. Diagnostic only.
	MembershipProbability float64

	// MostProbableCluster indexes the working cluster list of the last fit
	MostProbableCluster int

	// Cluster is the arena index of the owning cluster, -1 when unassigned
	Cluster int
}

// Position implements geometry.Positioned
func (o ClusterObject) Position() geometry.Point3D { return o.Centroid }

// Cluster is a group of objects. Centroid and Covariance are derived from
// the members and are refreshed by Assignment.Recompute.
type Cluster struct {
	ID int

	// Objects holds indices into Assignment.Objects
	Objects []int

	Centroid geometry.Point3D

	// Covariance packs the xx, xy and yy terms of the member spread
	Covariance geometry.Point3D
}

// Position implements geometry.Positioned
func (c Cluster) Position() geometry.Point3D { return c.Centroid }

// Assignment is an arena holding the objects and clusters of one clustering
// attempt. Objects refer to their cluster by index, clusters list their
// objects by index, and both sides are only changed through Assign.
type Assignment struct {
	Objects  []ClusterObject
	Clusters []Cluster
}

// NewAssignment creates an arena over a copy of objects with k empty
// clusters numbered 1..k. Every object starts unassigned.
func NewAssignment(objects []ClusterObject, k int) *Assignment {
	a := &Assignment{Objects: append([]ClusterObject(nil), objects...)}
	a.Reset(k)
	return a
}

// Reset discards all clusters, creates k empty ones with ids 1..k and
// marks every object unassigned.
func (a *Assignment) Reset(k int) {
	a.Clusters = make([]Cluster, max(k, 0))
	for i := range a.Clusters {
		a.Clusters[i].ID = i + 1
	}
	for i := range a.Objects {
		a.Objects[i].Cluster = -1
	}
}

// K returns the number of clusters, including empty ones
func (a *Assignment) K() int { return len(a.Clusters) }

// NonEmpty returns the number of clusters with at least one member
func (a *Assignment) NonEmpty() int {
	n := 0
	for _, c := range a.Clusters {
		if len(c.Objects) > 0 {
			n++
		}
	}
	return n
}

// Assign moves object obj into cluster c, removing it from its previous
// cluster first.
func (a *Assignment) Assign(obj, c int) {
	prev := a.Objects[obj].Cluster
	if prev == c {
		return
	}
	if prev >= 0 {
		members := a.Clusters[prev].Objects
		for i, o := range members {
			if o == obj {
				a.Clusters[prev].Objects = append(members[:i], members[i+1:]...)
				break
			}
		}
	}
	a.Clusters[c].Objects = append(a.Clusters[c].Objects, obj)
	a.Objects[obj].Cluster = c
}

// Recompute refreshes every cluster's centroid and covariance from its
// current members. Empty clusters keep their previous centroid.
func (a *Assignment) Recompute() {
	for i := range a.Clusters {
		a.recomputeCluster(i)
	}
}

func (a *Assignment) recomputeCluster(i int) {
	c := &a.Clusters[i]
	if len(c.Objects) == 0 {
		c.Covariance = geometry.Point3D{}
		return
	}
	xs := make([]float64, len(c.Objects))
	ys := make([]float64, len(c.Objects))
	zs := make([]float64, len(c.Objects))
	for j, o := range c.Objects {
		p := a.Objects[o].Centroid
		xs[j], ys[j], zs[j] = p.X, p.Y, p.Z
	}
	c.Centroid = geometry.Point3D{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
	if len(c.Objects) < 2 {
		c.Covariance = geometry.Point3D{}
		return
	}
	c.Covariance = geometry.Point3D{
		X: stat.Covariance(xs, xs, nil),
		Y: stat.Covariance(xs, ys, nil),
		Z: stat.Covariance(ys, ys, nil),
	}
}

// Compact removes empty clusters and renumbers the rest 1..k in their
// current order. Object back-references are remapped accordingly.
func (a *Assignment) Compact() {
	remap := make([]int, len(a.Clusters))
	kept := a.Clusters[:0]
	for i, c := range a.Clusters {
		if len(c.Objects) == 0 {
			remap[i] = -1
			continue
		}
		remap[i] = len(kept)
		c.ID = len(kept) + 1
		kept = append(kept, c)
	}
	a.Clusters = kept
	for i := range a.Objects {
		if c := a.Objects[i].Cluster; c >= 0 {
			a.Objects[i].Cluster = remap[c]
		}
	}
}

// Validate checks the arena invariants: ids are dense 1..k, every object
// belongs to exactly one cluster and both sides of the relation agree.
func (a *Assignment) Validate() error {
	seen := make([]int, len(a.Objects))
	for i, c := range a.Clusters {
		if c.ID != i+1 {
			return fmt.Errorf("%w: cluster %d has id %d", ErrInconsistentAssignment, i, c.ID)
		}
		for _, o := range c.Objects {
			if o < 0 || o >= len(a.Objects) {
				return fmt.Errorf("%w: cluster %d lists unknown object %d", ErrInconsistentAssignment, c.ID, o)
			}
			if a.Objects[o].Cluster != i {
				return fmt.Errorf("%w: object %d listed in cluster %d but points at %d",
					ErrInconsistentAssignment, o, c.ID, a.Objects[o].Cluster)
			}
			seen[o]++
		}
	}
	for o, n := range seen {
		if n != 1 {
			return fmt.Errorf("%w: object %d is a member of %d clusters", ErrInconsistentAssignment, o, n)
		}
	}
	return nil
}

// Labels returns, for every object label 1..n, the id of its cluster.
// Index 0 is background and always 0.
func (a *Assignment) Labels() []int {
	ids := make([]int, len(a.Objects)+1)
	for _, o := range a.Objects {
		if o.Cluster >= 0 && o.Label > 0 && o.Label < len(ids) {
			ids[o.Label] = a.Clusters[o.Cluster].ID
		}
	}
	return ids
}

// Paint writes each object's cluster id into a new mask shaped like
// objects, the source object mask this arena was built from.
func (a *Assignment) Paint(objects *labelmask.Mask) *labelmask.Mask {
	ids := a.Labels()
	out := labelmask.New(objects.Width, objects.Height, objects.Depth)
	for i, v := range objects.Data {
		if v > 0 && v < len(ids) {
			out.Data[i] = ids[v]
		}
	}
	return out
}
