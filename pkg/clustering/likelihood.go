package clustering

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MaxValue is returned by MixtureLikelihood.Evaluate for parameter vectors
// that cannot be scored: singular covariances or non-finite densities.
const MaxValue = math.MaxFloat64

// ParamsPerCluster is the number of mixture parameters per component:
// x0, y0, a, corr, d.
const ParamsPerCluster = 5

var log2Pi = math.Log(2 * math.Pi)

// MixtureLikelihood scores a 2D Gaussian mixture against a fixed set of
// object centroids. Evaluate returns the negative log-likelihood, so it can
// be handed straight to an optimize.Optimizer.
//
// Every evaluation also records, on each object, the component with the
// highest density (MostProbableCluster) and its posterior probability.
// The evaluator keeps per-call buffers and is not safe for concurrent use.
type MixtureLikelihood struct {
	objects []ClusterObject

	k         int
	inverse   [][4]float64 // row-major 2x2 inverse per component
	logDet    []float64
	density   []float64 // n*k log-densities, object major
	logWeight []float64
	column    []float64
	row       []float64

	sigma *mat.Dense
	inv   mat.Dense
	eye   *mat.Dense
	lu    mat.LU
}

// NewMixtureLikelihood creates an evaluator over objects. The slice is
// shared: the evaluator writes MostProbableCluster and
// MembershipProbability into it.
func NewMixtureLikelihood(objects []ClusterObject) *MixtureLikelihood {
	return &MixtureLikelihood{
		objects: objects,
		sigma:   mat.NewDense(2, 2, nil),
		eye:     mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
	}
}

// ensure (re)allocates the per-component buffers when k changes
func (l *MixtureLikelihood) ensure(k int) {
	if k == l.k && l.density != nil {
		return
	}
	n := len(l.objects)
	l.k = k
	l.inverse = make([][4]float64, k)
	l.logDet = make([]float64, k)
	l.density = make([]float64, n*k)
	l.logWeight = make([]float64, k)
	l.column = make([]float64, n)
	l.row = make([]float64, k)
}

// Evaluate implements optimize.Objective. params holds five values per
// component (x0, y0, a, corr, d); the covariance is [[a, b], [b, d]] with
// b = sqrt(a*d)*corr.
func (l *MixtureLikelihood) Evaluate(params []float64) float64 {
	n := len(l.objects)
	if n == 0 || len(params) == 0 || len(params)%ParamsPerCluster != 0 {
		return MaxValue
	}
	k := len(params) / ParamsPerCluster
	l.ensure(k)

	for c := 0; c < k; c++ {
		p := params[c*ParamsPerCluster : (c+1)*ParamsPerCluster]
		if !l.invertCovariance(c, p[2], p[3], p[4]) {
			return MaxValue
		}
	}

	for i, obj := range l.objects {
		best := 0
		for c := 0; c < k; c++ {
			p := params[c*ParamsPerCluster:]
			dx := obj.Centroid.X - p[0]
			dy := obj.Centroid.Y - p[1]
			inv := l.inverse[c]
			q := dx*(inv[0]*dx+inv[1]*dy) + dy*(inv[2]*dx+inv[3]*dy)
			ld := -log2Pi - 0.5*l.logDet[c] - 0.5*q
			if math.IsInf(ld, 0) || math.IsNaN(ld) {
				return MaxValue
			}
			l.density[i*k+c] = ld
			if ld > l.density[i*k+best] {
				best = c
			}
		}
		l.objects[i].MostProbableCluster = best
	}

	// mixing weights in log space, renormalized to sum to one
	logN := math.Log(float64(n))
	for c := 0; c < k; c++ {
		for i := 0; i < n; i++ {
			l.column[i] = l.density[i*k+c]
		}
		l.logWeight[c] = floats.LogSumExp(l.column) - logN
	}
	norm := floats.LogSumExp(l.logWeight)
	if math.IsInf(norm, 0) || math.IsNaN(norm) {
		return MaxValue
	}
	floats.AddConst(-norm, l.logWeight)

	total := 0.0
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			l.row[c] = l.density[i*k+c] + l.logWeight[c]
		}
		li := floats.LogSumExp(l.row)
		best := l.objects[i].MostProbableCluster
		l.objects[i].MembershipProbability = math.Exp(l.row[best] - li)
		total += li
	}
	if math.IsInf(total, 0) || math.IsNaN(total) {
		return MaxValue
	}
	return -total
}

// invertCovariance factorizes component c's covariance and stores its
// inverse and log-determinant. It reports false for singular or
// non-positive-determinant matrices.
func (l *MixtureLikelihood) invertCovariance(c int, a, corr, d float64) bool {
	if !finite(a) || !finite(corr) || !finite(d) {
		return false
	}
	ad := a * d
	if ad < 0 {
		return false
	}
	b := math.Sqrt(ad) * corr
	l.sigma.Set(0, 0, a)
	l.sigma.Set(0, 1, b)
	l.sigma.Set(1, 0, b)
	l.sigma.Set(1, 1, d)

	l.lu.Factorize(l.sigma)
	if err := l.lu.SolveTo(&l.inv, false, l.eye); err != nil {
		return false
	}
	det := l.lu.Det()
	if det <= 0 || math.IsInf(det, 0) || math.IsNaN(det) {
		return false
	}
	l.inverse[c] = [4]float64{l.inv.At(0, 0), l.inv.At(0, 1), l.inv.At(1, 0), l.inv.At(1, 1)}
	l.logDet[c] = math.Log(det)
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
