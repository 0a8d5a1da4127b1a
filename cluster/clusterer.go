// Package cluster implements the clustering algorithms behind one contract.
//
// Every algorithm takes L2-normalized feature vectors and a model.Params
// and returns clusters of document IDs. They share the failure semantics:
//
//   - an empty input yields an empty cluster list and no error;
//   - when the input has no more distinct points than the requested k,
//     every distinct point becomes its own cluster and duplicates join
//     their twin (the effective k is reduced);
//   - iterative loops stop at Params.MaxIterations, which is the only way
//     an algorithm is cancelled.
//
// Dense buffers (pairwise distances, centroids, covariances) are gonum
// matrices.
package cluster

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/hupe1980/docluster/model"
)

// ErrDimensionMismatch is returned when input vectors differ in length.
var ErrDimensionMismatch = errors.New("cluster: vectors have different dimensions")

// Outcome is what an algorithm produced.
type Outcome struct {
	Clusters   []model.Cluster
	Iterations int
	// Converged is false when the iteration cap stopped the algorithm.
	Converged bool
	// Confidence in [0,1] is the algorithm's own estimate of how well the
	// partition fits the data.
	Confidence float64
}

// Clusterer is implemented by every concrete algorithm.
type Clusterer interface {
	Cluster(vectors []model.FeatureVector, params model.Params) (*Outcome, error)
}

// New returns the Clusterer for alg. Hybrid is not a single algorithm and
// is rejected.
func New(alg model.Algorithm) (Clusterer, error) {
	switch alg {
	case model.KMeans:
		return KMeans{}, nil
	case model.DBSCAN:
		return DBSCAN{}, nil
	case model.Hierarchical:
		return Hierarchical{}, nil
	case model.GMM:
		return GMM{}, nil
	case model.Hybrid:
		return nil, &model.ConfigurationError{Field: "algorithm", Value: alg.String(), Reason: "hybrid runs several algorithms and has no clusterer of its own"}
	default:
		return nil, &model.ConfigurationError{Field: "algorithm", Value: alg.String(), Reason: "unknown algorithm"}
	}
}

// prepare fills defaults, validates and checks dimensions.
func prepare(vectors []model.FeatureVector, params model.Params) (model.Params, [][]float64, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return params, nil, err
	}
	values := make([][]float64, len(vectors))
	for i, v := range vectors {
		if i > 0 && len(v.Values) != len(values[0]) {
			return params, nil, fmt.Errorf("%w: %q has %d, expected %d", ErrDimensionMismatch, v.DocumentID, len(v.Values), len(values[0]))
		}
		values[i] = v.Values
	}
	return params, values, nil
}

// emptyOutcome is the result for an empty corpus.
func emptyOutcome() *Outcome {
	return &Outcome{Clusters: []model.Cluster{}, Converged: true}
}

// reducedOutcome handles inputs with no more distinct points than k: one
// cluster per distinct point. ok is false when the regular algorithm must
// run.
func reducedOutcome(vectors []model.FeatureVector, values [][]float64, k int) (*Outcome, bool) {
	groupOf, distinct := dedupe(values)
	if distinct > k {
		return nil, false
	}
	clusters := buildClusters(vectors, groupOf)
	return &Outcome{
		Clusters:   clusters,
		Converged:  true,
		Confidence: 1,
	}, true
}

func newRand(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), stream))
}
