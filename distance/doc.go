// Package distance provides the metric library used by every clustering
// algorithm.
//
// # Supported Metrics
//
//   - Euclidean: L2 distance
//   - Cosine: 1 - cosine similarity
//   - Manhattan: L1 distance
//   - DomainWeighted: cosine distance scaled by DomainWeightFactor, which
//     penalizes weak matches between short or technical texts
//
// All metrics are pure and symmetric. The triangle inequality holds for
// Euclidean and Manhattan only. Cosine distance and DomainWeighted are not
// true metrics, so callers relying on metric-space pruning (for example
// triangle-inequality shortcuts in neighborhood queries) must not use them.
//
// # Usage
//
//	d := distance.Distance(a, b, distance.Cosine)
//	fn, _ := distance.Provider(distance.Euclidean)
//	m := distance.Pairwise(vectors, distance.Cosine)
//	m.At(0, 1)
package distance
