package model

import (
	"time"
)

// NoiseClusterID is the reserved ID of the DBSCAN noise pseudo-cluster.
const NoiseClusterID = -1

// Cluster is one group produced by a single algorithm run.
type Cluster struct {
	ID       int       `json:"id"`
	Members  []string  `json:"members"`
	Centroid []float64 `json:"centroid"`
	Quality  float64   `json:"quality"`
	Keywords []string  `json:"keywords,omitempty"`
	// Noise marks the reserved pseudo-cluster for points no dense region
	// claimed. Only DBSCAN produces one.
	Noise bool `json:"noise,omitempty"`
}

// Size returns the number of members.
func (c Cluster) Size() int { return len(c.Members) }

// AlgorithmResult is the output of one algorithm invocation.
type AlgorithmResult struct {
	Algorithm     Algorithm     `json:"algorithm"`
	Clusters      []Cluster     `json:"clusters"`
	Quality       float64       `json:"quality"`
	Confidence    float64       `json:"confidence"`
	ExecutionTime time.Duration `json:"execution_time"`
	Iterations    int           `json:"iterations"`
	// Converged is false when the iteration cap was hit before the
	// tolerance was reached.
	Converged bool `json:"converged"`
}

// Provenance records how a fused cluster came to be.
type Provenance struct {
	Method     string   `json:"method"`
	Algorithms []string `json:"algorithms"`
	// Agreement is the confidence-weighted share of algorithms that placed
	// the members together.
	Agreement float64 `json:"agreement"`
	// MergedFrom lists the IDs of undersized clusters folded into this one.
	MergedFrom []int `json:"merged_from,omitempty"`
}

// HybridCluster is one group of a fused result.
type HybridCluster struct {
	ID              int        `json:"id"`
	Members         []string   `json:"members"`
	Centroid        []float64  `json:"centroid"`
	SourceAlgorithm string     `json:"source_algorithm"`
	Confidence      float64    `json:"confidence"`
	Provenance      Provenance `json:"provenance"`
}

// ExpectedPerformance is the selector's qualitative estimate, each value
// in [0,1].
type ExpectedPerformance struct {
	Accuracy         float64 `json:"accuracy"`
	Speed            float64 `json:"speed"`
	Scalability      float64 `json:"scalability"`
	Interpretability float64 `json:"interpretability"`
}

// Strategy is the selector's decision for one run.
type Strategy struct {
	Primary   Algorithm             `json:"primary"`
	Fallbacks []Algorithm           `json:"fallbacks"`
	Scores    map[Algorithm]float64 `json:"scores,omitempty"`
	Params    Params                `json:"params"`
	// FusionMethod is used when Primary is Hybrid.
	FusionMethod string              `json:"fusion_method,omitempty"`
	Expected     ExpectedPerformance `json:"expected"`
}

// Candidates returns Primary followed by the fallbacks.
func (s Strategy) Candidates() []Algorithm {
	out := make([]Algorithm, 0, 1+len(s.Fallbacks))
	out = append(out, s.Primary)
	return append(out, s.Fallbacks...)
}

// Prediction is the performance estimate made before execution.
type Prediction struct {
	Duration    time.Duration `json:"duration"`
	MemoryBytes int64         `json:"memory_bytes"`
	Accuracy    float64       `json:"accuracy"`
}

// ActualPerformance is measured after execution.
type ActualPerformance struct {
	ClusterCount   int     `json:"cluster_count"`
	AvgClusterSize float64 `json:"avg_cluster_size"`
	// Uniformity is 1 minus the coefficient of variation of the cluster
	// sizes, clamped to [0,1]. Equal-sized clusters score 1.
	Uniformity    float64       `json:"uniformity"`
	Quality       float64       `json:"quality"`
	Confidence    float64       `json:"confidence"`
	Duration      time.Duration `json:"duration"`
	Executed      []Algorithm   `json:"executed"`
	FallbacksUsed int           `json:"fallbacks_used"`
	// Degraded is set when every algorithm failed and the result is the
	// single all-in-one cluster.
	Degraded bool     `json:"degraded,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Performance pairs the prediction with the measurement.
type Performance struct {
	Predicted Prediction        `json:"predicted"`
	Actual    ActualPerformance `json:"actual"`
}

// Result is the bundle returned by the orchestrator.
type Result struct {
	Clusters []Cluster `json:"clusters"`
	// Hybrid holds the fused clusters when more than one algorithm ran.
	// Clusters then mirrors Hybrid one-to-one.
	Hybrid          []HybridCluster     `json:"hybrid,omitempty"`
	Strategy        Strategy            `json:"strategy"`
	Characteristics DataCharacteristics `json:"characteristics"`
	Performance     Performance         `json:"performance"`
}

// EmptyResult returns the valid result for an empty corpus.
func EmptyResult() *Result {
	return &Result{Clusters: []Cluster{}}
}

// CacheKey identifies a result bundle for the persistence collaborator.
type CacheKey struct {
	Fingerprint string `json:"fingerprint"`
	TargetK     int    `json:"target_k"`
}
