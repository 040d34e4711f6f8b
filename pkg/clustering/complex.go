package clustering

import (
	"errors"
	"fmt"
	"math"

	"fociclust/pkg/labelmask"
)

// ComplexClustering refines a coarse clustering. Each iteration takes the
// best labeling so far and, for every cluster in it, fits Gaussian mixtures
// with 2..kMax components (NumRepeats times each) to that cluster's
// objects alone. The fit with the lowest DistanceRatio below the cutoff
// replaces the cluster; when no fit qualifies the cluster is kept whole.
// The resulting candidate is committed only if its summed log-likelihood
// is at least the best so far and its global DistanceRatio is strictly
// lower. Committed objects carry the membership posterior of the fit
// that placed them; objects of a cluster kept whole get 1.
//
// The search stops after MaxClusters iterations, after MaxStallIterations
// iterations in a row without a commit, or when a candidate would exceed
// MaxClusters clusters. The best committed labeling is returned; when
// nothing is committed that is the relabeled initial clustering.
func (c *Clusterer) ComplexClustering(objects, initial *labelmask.Mask) (*Result, error) {
	if err := c.params.Validate(); err != nil {
		return nil, err
	}
	best, err := InitializeFromClusterMask(objects, initial)
	if err != nil {
		return nil, err
	}
	result := &Result{
		Clusters:      best.Paint(objects),
		Assignment:    best,
		K:             best.K(),
		LogLikelihood: math.Inf(-1),
		Ratio:         DistanceRatio(best),
	}
	if len(best.Objects) < 2 {
		return result, nil
	}

	stall := 0
	for attempt := 1; attempt <= c.params.MaxClusters; attempt++ {
		result.Iterations = attempt
		candidate, membership, ll := c.splitClusters(objects, result.Assignment)

		assignment, err := InitializeFromClusterMask(objects, candidate)
		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", attempt, err)
		}
		if assignment.K() > c.params.MaxClusters {
			c.logf("iteration %d: candidate has %d clusters, above the limit of %d", attempt, assignment.K(), c.params.MaxClusters)
			break
		}

		ratio := DistanceRatio(assignment)
		if ll >= result.LogLikelihood && ratio < result.Ratio {
			c.logf("iteration %d: committed k=%d (log-likelihood %.3f, ratio %.3f)", attempt, assignment.K(), ll, ratio)
			for i := range assignment.Objects {
				assignment.Objects[i].MembershipProbability = membership[assignment.Objects[i].Label]
			}
			result.Assignment = assignment
			result.Clusters = assignment.Paint(objects)
			result.K = assignment.K()
			result.LogLikelihood = ll
			result.Ratio = ratio
			stall = 0
			continue
		}

		stall++
		c.logf("iteration %d: no improvement (k=%d, log-likelihood %.3f, ratio %.3f)", attempt, assignment.K(), ll, ratio)
		if stall >= c.params.MaxStallIterations {
			break
		}
	}
	return result, nil
}

// splitClusters builds one candidate labeling from current. Clusters are
// processed in order and each one's sub-cluster ids are offset past the
// ids already handed out, so the candidate ids are 1..k without gaps. It
// returns the candidate mask, the membership posterior of every object
// indexed by its label, and the summed log-likelihood of the fits behind
// it.
func (c *Clusterer) splitClusters(objects *labelmask.Mask, current *Assignment) (*labelmask.Mask, []float64, float64) {
	kMax := 6
	if current.K() >= 3 {
		kMax = 4
	}

	ids := make([]int, len(current.Objects)+1)
	membership := make([]float64, len(current.Objects)+1)
	nextID := 1
	total := 0.0

	for ci := range current.Clusters {
		sub, labels := isolateCluster(objects, current, ci)
		subObjects, err := ObjectsFromMask(sub)
		if err != nil || len(subObjects) < 2 {
			for _, l := range labels {
				ids[l] = nextID
				membership[l] = 1
			}
			nextID++
			continue
		}
		width, height := float64(sub.Width), float64(sub.Height)

		if split, ll, ok := c.bestSplit(subObjects, width, height, min(kMax, len(subObjects))); ok {
			split.Compact()
			for j, o := range split.Objects {
				ids[labels[j]] = nextID + o.Cluster
				membership[labels[j]] = o.MembershipProbability
			}
			nextID += split.K()
			total += ll
			continue
		}

		whole := NewAssignment(subObjects, 1)
		ll, err := c.fitter.Fit(whole, width, height, 1)
		switch {
		case errors.Is(err, ErrNoFiniteFit):
			c.logf("cluster %d: no finite single-component fit, keeping it whole", current.Clusters[ci].ID)
		case err == nil:
			total += ll
		}
		// a single component owns every object outright
		for _, l := range labels {
			ids[l] = nextID
			membership[l] = 1
		}
		nextID++
	}

	candidate := labelmask.New(objects.Width, objects.Height, objects.Depth)
	for i, v := range objects.Data {
		if v > 0 && v < len(ids) {
			candidate.Data[i] = ids[v]
		}
	}
	return candidate, membership, total
}

// bestSplit tries every component count in 2..kMax and keeps the fit with
// the lowest DistanceRatio under the cutoff. Fits that leave fewer than
// two non-empty clusters are not splits and are ignored.
func (c *Clusterer) bestSplit(objects []ClusterObject, width, height float64, kMax int) (*Assignment, float64, bool) {
	var best *Assignment
	bestLL := 0.0
	bestRatio := math.Inf(1)

	for k := 2; k <= kMax; k++ {
		for rep := 0; rep < c.params.NumRepeats; rep++ {
			a := NewAssignment(objects, k)
			ll, err := c.fitter.Fit(a, width, height, k)
			if err != nil || a.NonEmpty() < 2 {
				continue
			}
			ratio := DistanceRatio(a)
			if ratio < c.params.SplitRatioCutoff && ratio < bestRatio {
				best, bestLL, bestRatio = a, ll, ratio
			}
		}
	}
	return best, bestLL, best != nil
}

// isolateCluster copies the voxels of cluster ci's objects into a mask
// cropped to their bounding box and relabeled 1..m. labels[j] is the
// original label of sub-object j+1.
func isolateCluster(objects *labelmask.Mask, a *Assignment, ci int) (*labelmask.Mask, []int) {
	member := make([]bool, len(a.Objects)+1)
	for _, o := range a.Clusters[ci].Objects {
		member[a.Objects[o].Label] = true
	}

	only := labelmask.New(objects.Width, objects.Height, objects.Depth)
	for i, v := range objects.Data {
		if v > 0 && v < len(member) && member[v] {
			only.Data[i] = v
		}
	}

	var box labelmask.Box
	for _, b := range only.BoundingBoxes() {
		if box.Empty() {
			box = b
			continue
		}
		box = labelmask.Box{
			MinX: min(box.MinX, b.MinX), MinY: min(box.MinY, b.MinY), MinZ: min(box.MinZ, b.MinZ),
			MaxX: max(box.MaxX, b.MaxX), MaxY: max(box.MaxY, b.MaxY), MaxZ: max(box.MaxZ, b.MaxZ),
		}
	}

	sub := only.Crop(box)
	labels := sub.Labels()
	sub.Relabel()
	return sub, labels
}
