// Package quantify turns a clustering result into per-cluster measurements.
package quantify

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"fociclust/pkg/clustering"
	"fociclust/pkg/geometry"
)

// ClusterStats summarizes one cluster of a result
type ClusterStats struct {
	ID          int
	ObjectCount int
	PixelCount  int

	// Centroid is the mean of the member object centroids
	Centroid geometry.Point3D

	// CovXX, CovXY and CovYY describe the spread of the member centroids.
	// They are zero for clusters with a single object.
	CovXX, CovXY, CovYY float64

	// MeanNeighbourDistance is the mean distance from each member object to
	// its closest fellow member, 0 for single-object clusters.
	MeanNeighbourDistance float64

	// MeanMembership averages the posterior membership probability of the
	// members under the fit that produced the clustering, 0 when no fit
	// was ever committed.
	MeanMembership float64
}

// Measure computes the statistics of every cluster in result, ordered by id.
func Measure(result *clustering.Result) []ClusterStats {
	a := result.Assignment
	stats := make([]ClusterStats, 0, a.K())
	for _, cl := range a.Clusters {
		s := ClusterStats{ID: cl.ID, ObjectCount: len(cl.Objects)}

		xs := make([]float64, len(cl.Objects))
		ys := make([]float64, len(cl.Objects))
		zs := make([]float64, len(cl.Objects))
		membership := make([]float64, len(cl.Objects))
		points := make([]geometry.Point3D, len(cl.Objects))
		for j, o := range cl.Objects {
			obj := a.Objects[o]
			xs[j], ys[j], zs[j] = obj.Centroid.X, obj.Centroid.Y, obj.Centroid.Z
			membership[j] = obj.MembershipProbability
			points[j] = obj.Centroid
			s.PixelCount += obj.PixelCount
		}

		if len(cl.Objects) > 0 {
			s.Centroid = geometry.Point3D{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
			s.MeanMembership = stat.Mean(membership, nil)
		}
		if len(cl.Objects) > 1 {
			s.CovXX = stat.Covariance(xs, xs, nil)
			s.CovXY = stat.Covariance(xs, ys, nil)
			s.CovYY = stat.Covariance(ys, ys, nil)
			s.MeanNeighbourDistance = stat.Mean(geometry.NewNearestIndex(points).NeighbourDistances(), nil)
		}
		stats = append(stats, s)
	}
	return stats
}

var csvHeader = []string{
	"cluster", "objects", "pixels",
	"centroid_x", "centroid_y", "centroid_z",
	"cov_xx", "cov_xy", "cov_yy",
	"mean_neighbour_distance", "mean_membership",
}

// WriteCSV writes stats as a CSV table with a header row.
func WriteCSV(w io.Writer, stats []ClusterStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	for _, s := range stats {
		record := []string{
			strconv.Itoa(s.ID),
			strconv.Itoa(s.ObjectCount),
			strconv.Itoa(s.PixelCount),
			formatFloat(s.Centroid.X),
			formatFloat(s.Centroid.Y),
			formatFloat(s.Centroid.Z),
			formatFloat(s.CovXX),
			formatFloat(s.CovXY),
			formatFloat(s.CovYY),
			formatFloat(s.MeanNeighbourDistance),
			formatFloat(s.MeanMembership),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing cluster %d: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
