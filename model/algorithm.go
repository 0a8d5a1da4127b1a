package model

import (
	"fmt"
	"strings"

	"github.com/hupe1980/docluster/distance"
)

// Algorithm is the closed set of clustering strategies.
type Algorithm int

const (
	KMeans Algorithm = iota
	DBSCAN
	Hierarchical
	GMM
	// Hybrid runs several concrete algorithms and fuses their output.
	Hybrid
)

// Algorithms lists every Algorithm in declaration order.
var Algorithms = []Algorithm{KMeans, DBSCAN, Hierarchical, GMM, Hybrid}

// ConcreteAlgorithms lists the algorithms that cluster on their own.
var ConcreteAlgorithms = []Algorithm{KMeans, DBSCAN, Hierarchical, GMM}

func (a Algorithm) String() string {
	switch a {
	case KMeans:
		return "kmeans"
	case DBSCAN:
		return "dbscan"
	case Hierarchical:
		return "hierarchical"
	case GMM:
		return "gmm"
	case Hybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// IsConcrete reports whether a runs on its own (everything except Hybrid).
func (a Algorithm) IsConcrete() bool {
	switch a {
	case KMeans, DBSCAN, Hierarchical, GMM:
		return true
	default:
		return false
	}
}

// Valid reports whether a is a declared algorithm.
func (a Algorithm) Valid() bool {
	return a.IsConcrete() || a == Hybrid
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(b []byte) error {
	v, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAlgorithm resolves an algorithm key. Unknown keys are configuration
// errors.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "kmeans", "k-means", "kmeans++":
		return KMeans, nil
	case "dbscan":
		return DBSCAN, nil
	case "hierarchical", "agglomerative", "hac":
		return Hierarchical, nil
	case "gmm", "gaussian-mixture", "em":
		return GMM, nil
	case "hybrid":
		return Hybrid, nil
	default:
		return 0, &ConfigurationError{Field: "algorithm", Value: name, Reason: "unknown algorithm"}
	}
}

// Linkage selects how the hierarchical algorithm measures cluster distance.
type Linkage string

const (
	LinkageSingle   Linkage = "single"
	LinkageComplete Linkage = "complete"
	LinkageAverage  Linkage = "average"
	LinkageWard     Linkage = "ward"
	LinkageCentroid Linkage = "centroid"
)

// Valid reports whether l is a known linkage.
func (l Linkage) Valid() bool {
	switch l {
	case LinkageSingle, LinkageComplete, LinkageAverage, LinkageWard, LinkageCentroid:
		return true
	default:
		return false
	}
}

// Init selects how iterative algorithms pick their starting centroids.
type Init string

const (
	// InitFarthest seeds the first centroid at random and every further
	// centroid at the point with the largest minimum distance to the
	// centroids chosen so far. Deterministic given the seed.
	InitFarthest Init = "farthest"
	// InitPlusPlus is probabilistic k-means++ (D² weighted sampling).
	InitPlusPlus Init = "plusplus"
	// InitRandom picks k distinct points uniformly at random.
	InitRandom Init = "random"
	// InitKMeans seeds a mixture model with a full k-means run.
	InitKMeans Init = "kmeans"
)

// Valid reports whether i is a known init method.
func (i Init) Valid() bool {
	switch i {
	case InitFarthest, InitPlusPlus, InitRandom, InitKMeans:
		return true
	default:
		return false
	}
}

// Default hyperparameters.
const (
	DefaultMaxIterations  = 200
	DefaultTolerance      = 1e-4
	DefaultEps            = 0.5
	DefaultMinPts         = 3
	DefaultRegularization = 1e-6
)

// Params are the hyperparameters shared by all algorithms. Each algorithm
// reads the fields it needs and ignores the rest.
type Params struct {
	// K is the requested number of clusters (k-means, hierarchical, GMM).
	K int `json:"k"`
	// MaxIterations caps iterative loops. It is the only cancellation
	// mechanism inside an algorithm.
	MaxIterations int `json:"max_iterations"`
	// Tolerance is the convergence threshold (centroid displacement for
	// k-means, log-likelihood gain for GMM).
	Tolerance float64 `json:"tolerance"`
	// Eps is the DBSCAN neighborhood radius in the units of Metric.
	Eps float64 `json:"eps"`
	// MinPts is the minimum neighborhood size of a DBSCAN core point.
	MinPts int `json:"min_pts"`
	// Linkage is the hierarchical merge criterion.
	Linkage Linkage `json:"linkage"`
	// Metric is the distance used by DBSCAN and non-ward linkages.
	Metric distance.Metric `json:"metric"`
	// Init selects the seeding method.
	Init Init `json:"init"`
	// Seed drives every random choice. Equal seeds give equal partitions.
	Seed int64 `json:"seed"`
	// Regularization is added to covariance diagonals (GMM).
	Regularization float64 `json:"regularization"`
}

// DefaultParams returns the parameter set used when nothing else is known.
func DefaultParams() Params {
	return Params{
		K:              2,
		MaxIterations:  DefaultMaxIterations,
		Tolerance:      DefaultTolerance,
		Eps:            DefaultEps,
		MinPts:         DefaultMinPts,
		Linkage:        LinkageWard,
		Metric:         distance.Cosine,
		Init:           InitFarthest,
		Seed:           1,
		Regularization: DefaultRegularization,
	}
}

// WithDefaults fills zero fields with DefaultParams values.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.K == 0 {
		p.K = d.K
	}
	if p.MaxIterations == 0 {
		p.MaxIterations = d.MaxIterations
	}
	if p.Tolerance == 0 {
		p.Tolerance = d.Tolerance
	}
	if p.Eps == 0 {
		p.Eps = d.Eps
	}
	if p.MinPts == 0 {
		p.MinPts = d.MinPts
	}
	if p.Linkage == "" {
		p.Linkage = d.Linkage
	}
	if p.Init == "" {
		p.Init = d.Init
	}
	if p.Regularization == 0 {
		p.Regularization = d.Regularization
	}
	return p
}

// Validate reports out-of-range parameters as *ConfigurationError.
func (p Params) Validate() error {
	switch {
	case p.K < 1:
		return &ConfigurationError{Field: "k", Value: fmt.Sprint(p.K), Reason: "must be at least 1"}
	case p.MaxIterations < 1:
		return &ConfigurationError{Field: "max_iterations", Value: fmt.Sprint(p.MaxIterations), Reason: "must be at least 1"}
	case p.Tolerance < 0:
		return &ConfigurationError{Field: "tolerance", Value: fmt.Sprint(p.Tolerance), Reason: "must not be negative"}
	case p.Eps <= 0:
		return &ConfigurationError{Field: "eps", Value: fmt.Sprint(p.Eps), Reason: "must be positive"}
	case p.MinPts < 1:
		return &ConfigurationError{Field: "min_pts", Value: fmt.Sprint(p.MinPts), Reason: "must be at least 1"}
	case !p.Linkage.Valid():
		return &ConfigurationError{Field: "linkage", Value: string(p.Linkage), Reason: "unknown linkage"}
	case !p.Metric.Valid():
		return &ConfigurationError{Field: "metric", Value: p.Metric.String(), Reason: "unknown metric"}
	case !p.Init.Valid():
		return &ConfigurationError{Field: "init", Value: string(p.Init), Reason: "unknown init method"}
	case p.Regularization < 0:
		return &ConfigurationError{Field: "regularization", Value: fmt.Sprint(p.Regularization), Reason: "must not be negative"}
	}
	return nil
}

// Values returns the numeric parameters as a key/value map for reporting.
func (p Params) Values() map[string]float64 {
	return map[string]float64{
		"k":              float64(p.K),
		"max_iterations": float64(p.MaxIterations),
		"tolerance":      p.Tolerance,
		"eps":            p.Eps,
		"min_pts":        float64(p.MinPts),
		"metric":         float64(p.Metric),
		"seed":           float64(p.Seed),
		"regularization": p.Regularization,
	}
}
