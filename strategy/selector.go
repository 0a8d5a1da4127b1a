// Package strategy chooses and tunes clustering algorithms for a corpus and
// estimates what running them will cost.
package strategy

import (
	"cmp"
	"slices"

	"github.com/hupe1980/docluster/model"
)

// DefaultFusionMethod is the fusion method recorded in strategies whose
// primary is Hybrid.
const DefaultFusionMethod = "adaptive"

// Fallbacks is the number of fallback algorithms of a strategy.
const Fallbacks = 2

// Heuristic constants of the parameter derivation.
const (
	EpsBase      = 0.3
	EpsPerNoise  = 0.4
	MinPtsFloor  = 3
	MinPtsFactor = 0.01
)

// rule contributes weight*score to the fitness of one algorithm. score
// maps characteristics to [0,1].
type rule struct {
	name   string
	weight float64
	score  func(c model.DataCharacteristics) float64
}

var shapeScores = map[model.Algorithm]map[model.Shape]float64{
	model.KMeans:       {model.ShapeSpherical: 1, model.ShapeElongated: 0.6, model.ShapeIrregular: 0.3, model.ShapeMixed: 0.4},
	model.DBSCAN:       {model.ShapeSpherical: 0.2, model.ShapeElongated: 0.6, model.ShapeIrregular: 1, model.ShapeMixed: 0.7},
	model.Hierarchical: {model.ShapeSpherical: 0.6, model.ShapeElongated: 0.8, model.ShapeIrregular: 0.6, model.ShapeMixed: 0.5},
	model.GMM:          {model.ShapeSpherical: 0.9, model.ShapeElongated: 0.7, model.ShapeIrregular: 0.3, model.ShapeMixed: 0.5},
}

var distributionScores = map[model.Algorithm]map[model.Distribution]float64{
	model.KMeans: {model.DistributionClustered: 1, model.DistributionUniform: 0.5, model.DistributionMixed: 0.6, model.DistributionSparse: 0.4},
	model.DBSCAN: {model.DistributionClustered: 0.7, model.DistributionUniform: 0.3, model.DistributionMixed: 0.6, model.DistributionSparse: 0.8},
	model.Hybrid: {model.DistributionClustered: 0.3, model.DistributionUniform: 0.3, model.DistributionMixed: 0.8, model.DistributionSparse: 0.3},
}

func shapeRule(alg model.Algorithm, weight float64) rule {
	return rule{name: "shape", weight: weight, score: func(c model.DataCharacteristics) float64 {
		return shapeScores[alg][c.ClusterShape]
	}}
}

func distributionRule(alg model.Algorithm, weight float64) rule {
	return rule{name: "distribution", weight: weight, score: func(c model.DataCharacteristics) float64 {
		return distributionScores[alg][c.Distribution]
	}}
}

// step returns the value of the first threshold size does not exceed.
func step(size int, thresholds []int, values []float64) float64 {
	for i, t := range thresholds {
		if size <= t {
			return values[i]
		}
	}
	return values[len(values)-1]
}

// defaultRules is the fitness table.
var defaultRules = map[model.Algorithm][]rule{
	model.KMeans: {
		{name: "size", weight: 0.3, score: func(c model.DataCharacteristics) float64 {
			return step(c.Size, []int{1000, 5000}, []float64{1, 0.6, 0.3})
		}},
		shapeRule(model.KMeans, 0.3),
		distributionRule(model.KMeans, 0.2),
		{name: "noise", weight: 0.2, score: func(c model.DataCharacteristics) float64 {
			return clamp01(1 - c.NoiseLevel)
		}},
	},
	model.DBSCAN: {
		{name: "noise", weight: 0.35, score: func(c model.DataCharacteristics) float64 {
			return clamp01(2 * c.NoiseLevel)
		}},
		shapeRule(model.DBSCAN, 0.35),
		distributionRule(model.DBSCAN, 0.15),
		{name: "size", weight: 0.15, score: func(c model.DataCharacteristics) float64 {
			return step(c.Size, []int{5000}, []float64{0.8, 0.4})
		}},
	},
	model.Hierarchical: {
		{name: "size", weight: 0.45, score: func(c model.DataCharacteristics) float64 {
			return step(c.Size, []int{200, 1000, 5000}, []float64{1, 0.6, 0.2, 0.05})
		}},
		{name: "interpretability", weight: 0.25, score: func(model.DataCharacteristics) float64 {
			return profiles[model.Hierarchical].interpretability
		}},
		shapeRule(model.Hierarchical, 0.3),
	},
	model.GMM: {
		shapeRule(model.GMM, 0.4),
		{name: "size", weight: 0.35, score: func(c model.DataCharacteristics) float64 {
			return step(c.Size, []int{49, 2000}, []float64{0.4, 1, 0.5})
		}},
		{name: "dimensionality", weight: 0.25, score: func(c model.DataCharacteristics) float64 {
			return step(c.Dimensionality, []int{500}, []float64{0.8, 0.5})
		}},
	},
	model.Hybrid: {
		{name: "complexity", weight: 0.5, score: func(c model.DataCharacteristics) float64 {
			switch c.DomainComplexity {
			case model.ComplexityHigh:
				return 1
			case model.ComplexityMedium:
				return 0.5
			default:
				return 0.1
			}
		}},
		{name: "size", weight: 0.3, score: func(c model.DataCharacteristics) float64 {
			return step(c.Size, []int{199, 999}, []float64{0.1, 0.5, 1})
		}},
		distributionRule(model.Hybrid, 0.2),
	},
}

type options struct {
	seed         int64
	fusionMethod string
	rules        map[model.Algorithm][]rule
}

// Option configures a Selector.
type Option func(*options)

// WithSeed sets the seed placed into derived parameters.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithFusionMethod sets the fusion method of hybrid strategies.
func WithFusionMethod(method string) Option {
	return func(o *options) {
		if method != "" {
			o.fusionMethod = method
		}
	}
}

// Selector scores algorithms against characteristics.
type Selector struct {
	opts options
}

// NewSelector creates a Selector.
func NewSelector(optFns ...Option) *Selector {
	opts := options{
		seed:         1,
		fusionMethod: DefaultFusionMethod,
		rules:        defaultRules,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Selector{opts: opts}
}

// Scores returns the fitness of every algorithm in [0,1].
func (s *Selector) Scores(c model.DataCharacteristics) map[model.Algorithm]float64 {
	scores := make(map[model.Algorithm]float64, len(model.Algorithms))
	for _, alg := range model.Algorithms {
		var sum, weight float64
		for _, r := range s.opts.rules[alg] {
			sum += r.weight * clamp01(r.score(c))
			weight += r.weight
		}
		if weight > 0 {
			scores[alg] = sum / weight
		}
	}
	return scores
}

// Select picks the highest-scoring algorithm as primary and the next two
// concrete algorithms as fallbacks, and derives parameters. A positive
// targetK overrides the size heuristic.
func (s *Selector) Select(c model.DataCharacteristics, targetK int) model.Strategy {
	scores := s.Scores(c)
	ranked := rank(scores)
	return s.build(c, targetK, scores, ranked[0], ranked)
}

// SelectWith is Select with a forced primary algorithm. Fallbacks are still
// the best-scoring remaining concrete algorithms.
func (s *Selector) SelectWith(c model.DataCharacteristics, targetK int, primary model.Algorithm) model.Strategy {
	scores := s.Scores(c)
	return s.build(c, targetK, scores, primary, rank(scores))
}

func (s *Selector) build(c model.DataCharacteristics, targetK int, scores map[model.Algorithm]float64, primary model.Algorithm, ranked []model.Algorithm) model.Strategy {
	fallbacks := make([]model.Algorithm, 0, Fallbacks)
	for _, alg := range ranked {
		if len(fallbacks) == Fallbacks {
			break
		}
		if alg != primary && alg.IsConcrete() {
			fallbacks = append(fallbacks, alg)
		}
	}

	st := model.Strategy{
		Primary:   primary,
		Fallbacks: fallbacks,
		Scores:    scores,
		Params:    s.Params(c, targetK),
		Expected:  expected(primary, c),
	}
	if primary == model.Hybrid {
		st.FusionMethod = s.opts.fusionMethod
	}
	return st
}

// rank orders algorithms by descending score, ties in declaration order.
func rank(scores map[model.Algorithm]float64) []model.Algorithm {
	ranked := slices.Clone(model.Algorithms)
	slices.SortStableFunc(ranked, func(a, b model.Algorithm) int {
		return cmp.Compare(scores[b], scores[a])
	})
	return ranked
}

// Params derives hyperparameters from the characteristics.
func (s *Selector) Params(c model.DataCharacteristics, targetK int) model.Params {
	p := model.DefaultParams()
	p.Seed = s.opts.seed
	p.K = EstimateK(c.Size, targetK)
	p.Eps = EpsBase + c.NoiseLevel*EpsPerNoise
	p.MinPts = max(MinPtsFloor, int(MinPtsFactor*float64(c.Size)))
	p.Linkage = model.LinkageWard
	return p
}

// EstimateK is the step function of corpus size used when no target is
// given; a positive target wins. The result never exceeds size (and is at
// least 1).
func EstimateK(size, target int) int {
	k := target
	if k <= 0 {
		switch {
		case size <= 1:
			k = 1
		case size < 10:
			k = 2
		case size < 50:
			k = 3
		case size < 200:
			k = 5
		case size < 1000:
			k = 8
		case size < 5000:
			k = 12
		default:
			k = 20
		}
	}
	return max(1, min(k, size))
}
