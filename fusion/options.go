package fusion

import (
	"fmt"

	"github.com/hupe1980/docluster/model"
)

const (
	// DefaultMinClusterSize is the size below which fused clusters are
	// folded into a larger one.
	DefaultMinClusterSize = 3

	// DefaultJaccardThreshold is the member-set similarity a cluster must
	// exceed to be matched during cascade fusion.
	DefaultJaccardThreshold = 0.3
)

type options struct {
	universe         []string
	vectors          map[string][]float64
	characteristics  *model.DataCharacteristics
	minClusterSize   int
	jaccardThreshold float64
}

// Option configures Fuse.
type Option func(*options)

// WithUniverse sets the full document-ID set the fused partition must
// cover. Without it the universe is the union of all cluster members,
// noise included.
func WithUniverse(ids []string) Option {
	return func(o *options) {
		o.universe = ids
	}
}

// WithVectors supplies document vectors for centroids and for placing
// unassigned documents.
func WithVectors(vectors []model.FeatureVector) Option {
	return func(o *options) {
		o.vectors = make(map[string][]float64, len(vectors))
		for _, v := range vectors {
			o.vectors[v.DocumentID] = v.Values
		}
	}
}

// WithCharacteristics supplies the corpus characteristics Adaptive decides
// on.
func WithCharacteristics(c model.DataCharacteristics) Option {
	return func(o *options) {
		o.characteristics = &c
	}
}

// WithMinClusterSize sets the minimum size of a fused cluster.
func WithMinClusterSize(n int) Option {
	return func(o *options) {
		o.minClusterSize = n
	}
}

// WithJaccardThreshold sets the cascade matching threshold.
func WithJaccardThreshold(t float64) Option {
	return func(o *options) {
		o.jaccardThreshold = t
	}
}

func (o *options) validate() error {
	if o.minClusterSize < 1 {
		return &model.ConfigurationError{Field: "min_cluster_size", Value: fmt.Sprint(o.minClusterSize), Reason: "must be at least 1"}
	}
	if o.jaccardThreshold < 0 || o.jaccardThreshold >= 1 {
		return &model.ConfigurationError{Field: "jaccard_threshold", Value: fmt.Sprint(o.jaccardThreshold), Reason: "must be in [0,1)"}
	}
	return nil
}
