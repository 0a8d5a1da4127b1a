package distance

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// DomainWeightFactor scales cosine distance for the DomainWeighted metric.
const DomainWeightFactor = 1.5

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float64) float64 {
	return floats.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
func SquaredL2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L2 calculates the Euclidean distance between two vectors.
func L2(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// L1 calculates the Manhattan distance between two vectors.
func L1(a, b []float64) float64 {
	return floats.Distance(a, b, 1)
}

// CosineSimilarity returns the cosine of the angle between a and b.
// It is 0 when either vector has zero norm.
func CosineSimilarity(a, b []float64) float64 {
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / (na * nb)
	// Clamp rounding noise so 1-sim never goes negative.
	return math.Max(-1, math.Min(1, sim))
}

// CosineDistance returns 1 - CosineSimilarity(a, b).
func CosineDistance(a, b []float64) float64 {
	return 1 - CosineSimilarity(a, b)
}

// DomainWeightedDistance returns the cosine distance scaled by
// DomainWeightFactor.
func DomainWeightedDistance(a, b []float64) float64 {
	return CosineDistance(a, b) * DomainWeightFactor
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm, in which case v is left untouched.
func NormalizeL2InPlace(v []float64) bool {
	if len(v) == 0 {
		return false
	}
	norm := floats.Norm(v, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	floats.Scale(1/norm, v)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float64) ([]float64, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
// The zero value is Cosine.
type Metric int

const (
	Cosine Metric = iota
	Euclidean
	Manhattan
	DomainWeighted
)

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Cosine:
		return "cosine"
	case Manhattan:
		return "manhattan"
	case DomainWeighted:
		return "domain-weighted"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case Euclidean, Cosine, Manhattan, DomainWeighted:
		return true
	default:
		return false
	}
}

// IsMetricSpace reports whether the triangle inequality holds for m.
func (m Metric) IsMetricSpace() bool {
	return m == Euclidean || m == Manhattan
}

// MarshalText implements encoding.TextMarshaler.
func (m Metric) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Metric) UnmarshalText(b []byte) error {
	v, err := ParseMetric(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMetric resolves a metric by name.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "euclidean", "l2":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	case "manhattan", "l1":
		return Manhattan, nil
	case "domain-weighted", "domain_weighted", "domain":
		return DomainWeighted, nil
	default:
		return 0, fmt.Errorf("unsupported metric: %q", name)
	}
}

// Func is a function type for distance calculation.
type Func func(a, b []float64) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case Euclidean:
		return L2, nil
	case Cosine:
		return CosineDistance, nil
	case Manhattan:
		return L1, nil
	case DomainWeighted:
		return DomainWeightedDistance, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Distance computes the distance between a and b under m.
// Unknown metrics yield +Inf.
func Distance(a, b []float64, m Metric) float64 {
	fn, err := Provider(m)
	if err != nil {
		return math.Inf(1)
	}
	return fn(a, b)
}
