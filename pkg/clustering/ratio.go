package clustering

import (
	"math"

	"fociclust/pkg/geometry"
)

// SplitRatioCutoff is the separation score below which a split is
// considered real.
const SplitRatioCutoff = 0.89

const ratioEpsilon = 1e-9

// DistanceRatio scores how well separated the clusters of a are relative
// to their internal spread. Lower is better separated. The score is only
// meaningful when comparing alternative clusterings of the same objects.
//
// For every pair of non-empty clusters it accumulates
// 2*(meanIntraA + meanIntraB) / maxCross, where meanIntra is the mean
// pairwise distance inside a cluster and maxCross the largest distance
// between members of the two. A cluster without internal pairs uses
// maxCross/4 as its spread. With fewer than two non-empty clusters the
// score falls back to 4 * meanIntra / maxIntra of the first cluster.
func DistanceRatio(a *Assignment) float64 {
	k := len(a.Clusters)
	intraSum := make([]float64, k)
	intraCount := make([]int, k)
	maxIntra := 0.0

	for i := range a.Objects {
		ci := a.Objects[i].Cluster
		if ci < 0 {
			continue
		}
		for j := i + 1; j < len(a.Objects); j++ {
			if a.Objects[j].Cluster != ci {
				continue
			}
			d := geometry.DistanceBetween(a.Objects[i], a.Objects[j])
			intraSum[ci] += d
			intraCount[ci]++
			maxIntra = math.Max(maxIntra, d)
		}
	}

	meanIntra := func(c int, fallback float64) float64 {
		if intraCount[c] == 0 {
			return fallback
		}
		return intraSum[c] / float64(intraCount[c])
	}

	sum := 0.0
	pairs := 0
	for p := 0; p < k; p++ {
		if len(a.Clusters[p].Objects) == 0 {
			continue
		}
		for q := p + 1; q < k; q++ {
			if len(a.Clusters[q].Objects) == 0 {
				continue
			}
			maxCross := 0.0
			for _, i := range a.Clusters[p].Objects {
				for _, j := range a.Clusters[q].Objects {
					maxCross = math.Max(maxCross, geometry.DistanceBetween(a.Objects[i], a.Objects[j]))
				}
			}
			if maxCross == 0 {
				// coincident clusters cannot be told apart
				sum += 4
				pairs++
				continue
			}
			sum += 2 * (meanIntra(p, maxCross/4) + meanIntra(q, maxCross/4)) / maxCross
			pairs++
		}
	}
	if pairs > 0 {
		return sum / float64(pairs)
	}

	for c := range a.Clusters {
		if len(a.Clusters[c].Objects) > 0 {
			return 4 * meanIntra(c, 0) / (maxIntra + ratioEpsilon)
		}
	}
	return 0
}
