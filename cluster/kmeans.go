package cluster

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

const streamKMeans = 0x6b6d65616e73

// unconvergedPenalty scales the confidence of runs stopped by the
// iteration cap.
const unconvergedPenalty = 0.8

// KMeans is Lloyd's algorithm with configurable seeding.
type KMeans struct{}

// KMeansFit is the raw result of FitKMeans.
type KMeansFit struct {
	// Labels holds the centroid index of every point.
	Labels []int
	// Centroids is k×D, one centroid per row.
	Centroids  *mat.Dense
	Iterations int
	Converged  bool
	// Inertia is the sum of squared distances to the assigned centroid.
	Inertia float64
}

// FitKMeans runs seeding and Lloyd iterations on values until the largest
// centroid displacement falls below params.Tolerance or the iteration cap
// is hit. A centroid that loses all its points keeps its position.
// params must already be validated.
func FitKMeans(values [][]float64, params model.Params) *KMeansFit {
	n := len(values)
	if n == 0 {
		return &KMeansFit{Converged: true}
	}
	dim := len(values[0])

	rng := newRand(params.Seed, streamKMeans)
	seeds := seedCentroids(values, params.K, params.Init, rng)
	k := len(seeds)

	cent := mat.NewDense(k, dim, nil)
	for c, i := range seeds {
		cent.SetRow(c, values[i])
	}
	next := mat.NewDense(k, dim, nil)
	counts := make([]int, k)
	labels := make([]int, n)

	fit := &KMeansFit{}
	for iter := 1; iter <= params.MaxIterations; iter++ {
		assignNearest(values, cent, labels)

		next.Zero()
		clear(counts)
		for i, l := range labels {
			floats.Add(next.RawRowView(l), values[i])
			counts[l]++
		}

		var shift float64
		for c := 0; c < k; c++ {
			row := next.RawRowView(c)
			if counts[c] == 0 {
				copy(row, cent.RawRowView(c))
				continue
			}
			floats.Scale(1/float64(counts[c]), row)
			shift = math.Max(shift, distance.L2(row, cent.RawRowView(c)))
		}
		cent, next = next, cent
		fit.Iterations = iter

		if shift < params.Tolerance {
			fit.Converged = true
			break
		}
	}

	fit.Inertia = assignNearest(values, cent, labels)
	fit.Labels = labels
	fit.Centroids = cent
	return fit
}

// assignNearest writes the nearest centroid row of every point into labels
// (ties to the lowest index) and returns the inertia.
func assignNearest(values [][]float64, cent *mat.Dense, labels []int) float64 {
	k, _ := cent.Dims()
	var inertia float64
	for i, v := range values {
		best, bestDist := 0, math.Inf(1)
		for c := 0; c < k; c++ {
			if d := distance.SquaredL2(v, cent.RawRowView(c)); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// Cluster implements Clusterer.
func (KMeans) Cluster(vectors []model.FeatureVector, params model.Params) (*Outcome, error) {
	params, values, err := prepare(vectors, params)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return emptyOutcome(), nil
	}
	if out, ok := reducedOutcome(vectors, values, params.K); ok {
		return out, nil
	}

	fit := FitKMeans(values, params)
	clusters := buildClusters(vectors, fit.Labels)

	return &Outcome{
		Clusters:   clusters,
		Iterations: fit.Iterations,
		Converged:  fit.Converged,
		Confidence: confidence(clusters, fit.Converged),
	}, nil
}

func confidence(clusters []model.Cluster, converged bool) float64 {
	c := clamp01(Quality(clusters))
	if !converged {
		c *= unconvergedPenalty
	}
	return c
}
