package model

import (
	"fmt"
	"strings"
)

// Document is a unit of input text. Documents are owned by the caller and
// never mutated by the engine.
type Document struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NewDocument builds a Document whose Text is the space-joined concatenation
// of the given text fields (title, body, tags, ...).
func NewDocument(id string, fields ...string) Document {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return Document{ID: id, Text: strings.Join(parts, " ")}
}

// VectorMetadata carries token statistics collected while vectorizing.
type VectorMetadata struct {
	// TokenCount is the number of tokens kept after filtering.
	TokenCount int `json:"token_count"`
	// UniqueTokenCount is the number of distinct kept terms.
	UniqueTokenCount int `json:"unique_token_count"`
	// AvgTokenLength is the mean rune length of the kept tokens.
	AvgTokenLength float64 `json:"avg_token_length"`
	// TextLength is the raw text length in runes.
	TextLength int `json:"text_length"`
	// RawTokenCount is the number of tokens before any filtering.
	RawTokenCount int `json:"raw_token_count"`
	// LowInfoTokenCount counts raw tokens classified as low-information
	// (stop words, very short tokens, pure numbers).
	LowInfoTokenCount int `json:"low_info_token_count"`
	// Terms are the normalized terms in document order.
	Terms []string `json:"terms,omitempty"`
}

// LowInfoRatio returns the fraction of raw tokens that carried little
// information. Zero for documents without tokens.
func (m VectorMetadata) LowInfoRatio() float64 {
	if m.RawTokenCount == 0 {
		return 0
	}
	return float64(m.LowInfoTokenCount) / float64(m.RawTokenCount)
}

// FeatureVector is the numeric representation of one document.
//
// Values is L2-normalized (‖v‖ ≈ 1) or all-zero for documents without
// usable terms.
type FeatureVector struct {
	DocumentID string         `json:"document_id"`
	Values     []float64      `json:"values"`
	Metadata   VectorMetadata `json:"metadata"`
}

// Dimension returns len(Values).
func (v FeatureVector) Dimension() int { return len(v.Values) }

// IsZero reports whether every component of the vector is zero.
func (v FeatureVector) IsZero() bool {
	for _, x := range v.Values {
		if x != 0 {
			return false
		}
	}
	return true
}

// Shape classifies the average pairwise similarity of a corpus.
type Shape int

const (
	ShapeMixed Shape = iota
	ShapeSpherical
	ShapeElongated
	ShapeIrregular
)

func (s Shape) String() string {
	switch s {
	case ShapeSpherical:
		return "spherical"
	case ShapeElongated:
		return "elongated"
	case ShapeIrregular:
		return "irregular"
	case ShapeMixed:
		return "mixed"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Shape) UnmarshalText(b []byte) error {
	switch string(b) {
	case "spherical":
		*s = ShapeSpherical
	case "elongated":
		*s = ShapeElongated
	case "irregular":
		*s = ShapeIrregular
	case "mixed":
		*s = ShapeMixed
	default:
		return fmt.Errorf("unknown shape %q", string(b))
	}
	return nil
}

// Distribution classifies the spread of pairwise similarities.
type Distribution int

const (
	DistributionMixed Distribution = iota
	DistributionUniform
	DistributionClustered
	DistributionSparse
)

func (d Distribution) String() string {
	switch d {
	case DistributionUniform:
		return "uniform"
	case DistributionClustered:
		return "clustered"
	case DistributionSparse:
		return "sparse"
	case DistributionMixed:
		return "mixed"
	default:
		return fmt.Sprintf("Distribution(%d)", int(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Distribution) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Distribution) UnmarshalText(b []byte) error {
	switch string(b) {
	case "uniform":
		*d = DistributionUniform
	case "clustered":
		*d = DistributionClustered
	case "sparse":
		*d = DistributionSparse
	case "mixed":
		*d = DistributionMixed
	default:
		return fmt.Errorf("unknown distribution %q", string(b))
	}
	return nil
}

// Complexity grades how domain-specific a corpus is.
type Complexity int

const (
	ComplexityLow Complexity = iota
	ComplexityMedium
	ComplexityHigh
)

func (c Complexity) String() string {
	switch c {
	case ComplexityLow:
		return "low"
	case ComplexityMedium:
		return "medium"
	case ComplexityHigh:
		return "high"
	default:
		return fmt.Sprintf("Complexity(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Complexity) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Complexity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*c = ComplexityLow
	case "medium":
		*c = ComplexityMedium
	case "high":
		*c = ComplexityHigh
	default:
		return fmt.Errorf("unknown complexity %q", string(b))
	}
	return nil
}

// DataCharacteristics summarizes the statistical shape of a vectorized
// corpus. It is computed fresh per run and never mutated afterwards.
type DataCharacteristics struct {
	Size              int          `json:"size"`
	Dimensionality    int          `json:"dimensionality"`
	Density           float64      `json:"density"`
	NoiseLevel        float64      `json:"noise_level"`
	ClusterShape      Shape        `json:"cluster_shape"`
	Distribution      Distribution `json:"distribution"`
	DomainComplexity  Complexity   `json:"domain_complexity"`
	AvgTextSimilarity float64      `json:"avg_text_similarity"`

	// SimilarityVariance is the variance of the sampled pairwise similarities.
	SimilarityVariance float64 `json:"similarity_variance"`
	// SampledPairs is the number of document pairs the similarity statistics
	// were computed from.
	SampledPairs int `json:"sampled_pairs"`
}
