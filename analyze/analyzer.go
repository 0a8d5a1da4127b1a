// Package analyze computes dataset-level statistics of a vectorized corpus.
//
// The Analyzer is read-only: it never mutates its input and holds no state
// between calls.
package analyze

import (
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/docluster/distance"
	"github.com/hupe1980/docluster/model"
)

// Thresholds of the shape and distribution classification.
const (
	SphericalSimilarity = 0.7
	ElongatedSimilarity = 0.4
	IrregularSimilarity = 0.2

	UniformVariance   = 0.1
	ClusteredVariance = 0.3
	SparseMean        = 0.3
)

// Defaults of the pairwise similarity sample.
const (
	DefaultExhaustiveLimit = 200
	DefaultSampleSize      = 2000
)

// DefaultDomainKeywords are technical words whose presence marks a corpus as
// domain-specific. Terms match by shared prefix so stems hit their words.
var DefaultDomainKeywords = []string{
	"algorithm", "architecture", "authentication", "blockchain", "cache",
	"cluster", "compiler", "concurrency", "consensus", "container",
	"database", "deployment", "distributed", "embedding", "encryption",
	"gradient", "index", "infrastructure", "kernel", "kubernetes",
	"latency", "ledger", "microservice", "network", "neural",
	"optimization", "protocol", "query", "replication", "schema",
	"semantic", "shard", "tensor", "throughput", "transaction", "vector",
}

const minKeywordPrefix = 4

type options struct {
	exhaustiveLimit int
	sampleSize      int
	seed            uint64
	keywords        []string
}

// Option configures an Analyzer.
type Option func(*options)

// WithExhaustiveLimit sets the corpus size up to which all pairs are compared.
func WithExhaustiveLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.exhaustiveLimit = n
		}
	}
}

// WithSampleSize sets the number of random pairs compared for larger corpora.
func WithSampleSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sampleSize = n
		}
	}
}

// WithSeed seeds the pair sampler.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = uint64(seed)
	}
}

// WithDomainKeywords replaces the domain keyword list.
func WithDomainKeywords(words ...string) Option {
	return func(o *options) {
		o.keywords = words
	}
}

// Analyzer computes DataCharacteristics.
type Analyzer struct {
	opts options
}

// New creates an Analyzer.
func New(optFns ...Option) *Analyzer {
	opts := options{
		exhaustiveLimit: DefaultExhaustiveLimit,
		sampleSize:      DefaultSampleSize,
		seed:            1,
		keywords:        DefaultDomainKeywords,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	keywords := make([]string, len(opts.keywords))
	for i, k := range opts.keywords {
		keywords[i] = strings.ToLower(k)
	}
	opts.keywords = keywords
	return &Analyzer{opts: opts}
}

// Analyze summarizes vectors.
func (a *Analyzer) Analyze(vectors []model.FeatureVector) model.DataCharacteristics {
	c := model.DataCharacteristics{Size: len(vectors)}
	if len(vectors) == 0 {
		return c
	}

	distinct := make(map[string]struct{})
	lengths := make([]float64, len(vectors))
	noise := make([]float64, len(vectors))
	for i, v := range vectors {
		for _, term := range v.Metadata.Terms {
			distinct[term] = struct{}{}
		}
		lengths[i] = float64(v.Metadata.TextLength)
		noise[i] = v.Metadata.LowInfoRatio()
	}
	c.Dimensionality = len(distinct)
	c.Density = stat.Mean(lengths, nil)
	c.NoiseLevel = stat.Mean(noise, nil)

	sims := a.similarities(vectors)
	c.SampledPairs = len(sims)
	if len(sims) > 0 {
		c.AvgTextSimilarity, c.SimilarityVariance = stat.PopMeanVariance(sims, nil)
	}
	c.ClusterShape = classifyShape(c.AvgTextSimilarity)
	c.Distribution = classifyDistribution(c.AvgTextSimilarity, c.SimilarityVariance)
	c.DomainComplexity = a.complexity(vectors)
	return c
}

// similarities returns cosine similarities of all pairs for small corpora,
// otherwise of a seeded random sample of distinct pairs.
func (a *Analyzer) similarities(vectors []model.FeatureVector) []float64 {
	n := len(vectors)
	if n < 2 {
		return nil
	}

	if n <= a.opts.exhaustiveLimit {
		sims := make([]float64, 0, n*(n-1)/2)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				sims = append(sims, distance.CosineSimilarity(vectors[i].Values, vectors[j].Values))
			}
		}
		return sims
	}

	rng := rand.New(rand.NewPCG(a.opts.seed, uint64(n)))
	sims := make([]float64, 0, a.opts.sampleSize)
	for len(sims) < a.opts.sampleSize {
		i, j := rng.IntN(n), rng.IntN(n)
		if i == j {
			continue
		}
		sims = append(sims, distance.CosineSimilarity(vectors[i].Values, vectors[j].Values))
	}
	return sims
}

func classifyShape(avg float64) model.Shape {
	switch {
	case avg > SphericalSimilarity:
		return model.ShapeSpherical
	case avg > ElongatedSimilarity:
		return model.ShapeElongated
	case avg > IrregularSimilarity:
		return model.ShapeIrregular
	default:
		return model.ShapeMixed
	}
}

func classifyDistribution(mean, variance float64) model.Distribution {
	switch {
	case variance < UniformVariance:
		return model.DistributionUniform
	case variance > ClusteredVariance:
		return model.DistributionClustered
	case mean < SparseMean:
		return model.DistributionSparse
	default:
		return model.DistributionMixed
	}
}

// complexity grades domain keyword hits: their diversity across the corpus
// and their mean count per document.
func (a *Analyzer) complexity(vectors []model.FeatureVector) model.Complexity {
	matched := make(map[string]struct{})
	var hits int
	for _, v := range vectors {
		for _, term := range v.Metadata.Terms {
			if kw, ok := a.keyword(term); ok {
				matched[kw] = struct{}{}
				hits++
			}
		}
	}
	mean := float64(hits) / float64(len(vectors))

	switch {
	case len(matched) >= 8 || mean >= 4:
		return model.ComplexityHigh
	case len(matched) >= 3 || mean >= 1:
		return model.ComplexityMedium
	default:
		return model.ComplexityLow
	}
}

func (a *Analyzer) keyword(term string) (string, bool) {
	for _, kw := range a.opts.keywords {
		if term == kw {
			return kw, true
		}
		if len(term) >= minKeywordPrefix && (strings.HasPrefix(kw, term) || strings.HasPrefix(term, kw)) {
			return kw, true
		}
	}
	return "", false
}
