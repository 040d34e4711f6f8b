// Package clustering groups the segmented objects of a label mask into
// clusters, for example assigning fluorescent foci to the cell that holds
// them.
//
// Clustering runs in two stages. BasicClustering is a cheap geometric
// pre-clustering: the object mask is blurred with a wide Gaussian and every
// object joins the blurred region that covers it. ComplexClustering then
// decides, for every coarse cluster, whether a Gaussian mixture with more
// components explains the objects better, fitting the mixture with a
// stochastic optimizer and accepting a split only when the separation
// score (DistanceRatio) falls below SplitRatioCutoff.
//
// A Clusterer is single threaded. Callers that want to process several
// images at once should use one Clusterer, and one random source, per
// goroutine.
package clustering

import (
	"fmt"
	"math/rand/v2"

	"fociclust/pkg/labelmask"
	"fociclust/pkg/optimize"
)

// Params holds the clustering configuration
type Params struct {
	// MaxClusters bounds both the number of search iterations and the
	// number of clusters a committed result may contain.
	MaxClusters int

	// NumRepeats is the number of mixture fits per candidate sub-cluster count
	NumRepeats int

	// SplitRatioCutoff is the DistanceRatio below which a split is accepted
	SplitRatioCutoff float64

	// MaxStallIterations stops the search after this many consecutive
	// iterations without an improvement.
	MaxStallIterations int

	// BlurDivisor sets the basic clustering blur sigma to width/BlurDivisor
	BlurDivisor float64

	// BasicThreshold is the fraction of the blurred maximum above which a
	// pixel belongs to a basic cluster region.
	BasicThreshold float64

	// SeedClusters, when positive, replaces basic clustering with k-means++
	// seeding of that many clusters as the starting point of the search.
	SeedClusters int

	Fitter FitterParams

	// Logf receives progress messages. Nil disables logging.
	Logf func(format string, args ...any)
}

// DefaultParams returns the standard clustering configuration
func DefaultParams() Params {
	return Params{
		MaxClusters:        5,
		NumRepeats:         3,
		SplitRatioCutoff:   SplitRatioCutoff,
		MaxStallIterations: 3,
		BlurDivisor:        4,
		BasicThreshold:     0.25,
		Fitter:             DefaultFitterParams(),
	}
}

// Validate checks that the parameters describe a runnable search
func (p Params) Validate() error {
	if p.MaxClusters < 1 {
		return fmt.Errorf("maxClusters must be at least 1, got %d", p.MaxClusters)
	}
	if p.NumRepeats < 1 {
		return fmt.Errorf("numRepeats must be at least 1, got %d", p.NumRepeats)
	}
	if p.BlurDivisor <= 0 {
		return fmt.Errorf("blurDivisor must be positive, got %f", p.BlurDivisor)
	}
	if p.BasicThreshold <= 0 || p.BasicThreshold > 1 {
		return fmt.Errorf("basicThreshold must be in (0, 1], got %f", p.BasicThreshold)
	}
	if p.SeedClusters < 0 || p.SeedClusters > p.MaxClusters {
		return fmt.Errorf("seedClusters must be in [0, maxClusters], got %d", p.SeedClusters)
	}
	if p.Fitter.PopulationPerCluster < 1 {
		return fmt.Errorf("populationPerCluster must be at least 1, got %d", p.Fitter.PopulationPerCluster)
	}
	if p.Fitter.VarianceTolerance <= 0 {
		return fmt.Errorf("varianceTolerance must be positive, got %f", p.Fitter.VarianceTolerance)
	}
	return nil
}

// Result is a committed clustering
type Result struct {
	// Clusters holds the cluster id of every object voxel, 0 elsewhere
	Clusters *labelmask.Mask

	// Assignment is the object graph matching Clusters
	Assignment *Assignment

	K             int
	LogLikelihood float64
	Ratio         float64

	// Iterations is the number of complex clustering iterations run
	Iterations int
}

// Clusterer runs the clustering stages for one image at a time
type Clusterer struct {
	params Params
	rng    *rand.Rand
	fitter *MixtureFitter
}

// NewClusterer creates a Clusterer that fits mixtures with differential
// evolution. Seeding and the optimizer both draw from rng.
func NewClusterer(params Params, rng *rand.Rand) *Clusterer {
	return NewClustererWithOptimizer(params, rng, optimize.NewDifferentialEvolution(rng))
}

// NewClustererWithOptimizer creates a Clusterer that fits mixtures with opt
func NewClustererWithOptimizer(params Params, rng *rand.Rand, opt optimize.Optimizer) *Clusterer {
	return &Clusterer{
		params: params,
		rng:    rng,
		fitter: NewMixtureFitter(params.Fitter, opt),
	}
}

// Params returns the configuration in use
func (c *Clusterer) Params() Params { return c.params }

// Cluster runs the initial clustering followed by complex clustering on a
// dense object mask.
func (c *Clusterer) Cluster(objects *labelmask.Mask) (*Result, error) {
	if err := c.params.Validate(); err != nil {
		return nil, err
	}
	coarse, k, err := c.InitialClustering(objects)
	if err != nil {
		return nil, fmt.Errorf("initial clustering: %w", err)
	}
	c.logf("initial clustering produced %d clusters", k)

	result, err := c.ComplexClustering(objects, coarse)
	if err != nil {
		return nil, fmt.Errorf("complex clustering: %w", err)
	}
	return result, nil
}

// InitialClustering builds the coarse cluster mask the complex stage starts
// from: BasicClustering by default, k-means++ seeding when SeedClusters is
// set. It returns the mask and its cluster count.
func (c *Clusterer) InitialClustering(objects *labelmask.Mask) (*labelmask.Mask, int, error) {
	if c.params.SeedClusters == 0 {
		return c.BasicClustering(objects)
	}
	a, err := c.InitializeFromMask(objects, c.params.SeedClusters)
	if err != nil {
		return nil, 0, err
	}
	// coincident objects can leave a seed without members
	a.Compact()
	return a.Paint(objects), a.K(), nil
}

func (c *Clusterer) logf(format string, args ...any) {
	if c.params.Logf != nil {
		c.params.Logf(format, args...)
	}
}
