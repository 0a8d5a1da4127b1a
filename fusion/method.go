// Package fusion merges the results of several clustering runs into one
// consensus partition.
//
// Four methods are available:
//
//   - Ensemble aligns every run's clusters to the most confident run and
//     assigns each document by confidence-weighted vote.
//   - Cascade starts from the highest-quality run and lets matching clusters
//     of the other runs contribute documents that are still unassigned.
//   - Weighted scores every document against the anchor clusters by
//     confidence times Jaccard similarity and blends centroids the same way.
//   - Adaptive picks one of the above from the corpus characteristics.
//
// Whatever the method, the fused partition covers every document exactly
// once: undersized clusters are folded into their nearest larger cluster
// and leftover documents are placed by nearest centroid.
package fusion

import (
	"strings"

	"github.com/hupe1980/docluster/model"
)

// Method selects the fusion strategy.
type Method int

const (
	Ensemble Method = iota
	Cascade
	Weighted
	Adaptive
)

// AdaptiveSizeThreshold is the corpus size from which Adaptive prefers
// Ensemble regardless of complexity.
const AdaptiveSizeThreshold = 1000

func (m Method) String() string {
	switch m {
	case Ensemble:
		return "ensemble"
	case Cascade:
		return "cascade"
	case Weighted:
		return "weighted"
	case Adaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the declared methods.
func (m Method) Valid() bool {
	return m >= Ensemble && m <= Adaptive
}

// ParseMethod maps a method name to a Method. The empty string means
// Adaptive.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ensemble":
		return Ensemble, nil
	case "cascade":
		return Cascade, nil
	case "weighted":
		return Weighted, nil
	case "adaptive", "":
		return Adaptive, nil
	default:
		return 0, &model.ConfigurationError{Field: "fusion_method", Value: s, Reason: "unknown fusion method"}
	}
}

// Resolve returns the concrete method Adaptive stands for under c. Other
// methods resolve to themselves.
func (m Method) Resolve(c model.DataCharacteristics) Method {
	if m != Adaptive {
		return m
	}
	switch {
	case c.DomainComplexity == model.ComplexityHigh || c.Size >= AdaptiveSizeThreshold:
		return Ensemble
	case c.DomainComplexity == model.ComplexityMedium:
		return Weighted
	default:
		return Cascade
	}
}
